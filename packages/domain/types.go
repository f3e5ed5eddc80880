// Package domain
package domain

import (
	"errors"
	"net/http"
	"time"
)

var ErrLeadNotFound = errors.New("lead not found")

type LeadStatus string

const (
	PendingScore LeadStatus = "pending_score"
	Scoring      LeadStatus = "scoring"
	Scored       LeadStatus = "scored"
	Failed       LeadStatus = "failed"
)

// WebsiteScore is the result of analyzing one business website.
// Category scores and Overall are always within [0,100]; BadnessScore is not clamped.
type WebsiteScore struct {
	Overall     int `json:"overall"`
	SEO         int `json:"seo"`
	Mobile      int `json:"mobile"`
	Security    int `json:"security"`
	Performance int `json:"performance"`
	Design      int `json:"design"`
	Content     int `json:"content"`
	Contact     int `json:"contact"`

	Issues               []string `json:"issues"`
	CriticalIssues       []string `json:"criticalIssues"`
	OutdatedTechnologies []string `json:"outdatedTechnologies"`
	LastUpdated          *string  `json:"lastUpdated,omitempty"`

	BadnessScore     int  `json:"badnessScore"`
	ImprovementScore *int `json:"improvementScore,omitempty"`

	EmailsFound []string `json:"emailsFound"`
	PhonesFound []string `json:"phonesFound"`
	Language    string   `json:"language,omitempty"`
	Strategy    string   `json:"strategy,omitempty"`
	URL         string   `json:"url"`
}

// Improvement returns ImprovementScore, or 100-Overall when it was never set.
func (s WebsiteScore) Improvement() int {
	if s.ImprovementScore != nil {
		return *s.ImprovementScore
	}
	return 100 - s.Overall
}

// HasCritical reports whether issue is among the critical issues.
func (s WebsiteScore) HasCritical(issue string) bool {
	for _, c := range s.CriticalIssues {
		if c == issue {
			return true
		}
	}
	return false
}

type FetchedPage struct {
	RequestedURL string
	FinalURL     string
	StatusCode   int
	Header       http.Header
	HTML         string
}

type Business struct {
	Name     string `json:"name"`
	Website  string `json:"website,omitempty"`
	Address  string `json:"address,omitempty"`
	Phone    string `json:"phone,omitempty"`
	PlaceID  string `json:"placeId,omitempty"`
	Industry string `json:"industry,omitempty"`
}

type Lead struct {
	ID string `json:"id"`
	Business
	WebsiteScore *WebsiteScore `json:"websiteScore,omitempty"`
	Status       LeadStatus    `json:"status"`
	ScoredAt     *time.Time    `json:"scoredAt,omitempty"`
}

type LeadJob struct {
	ID      string
	Website string
}

type ScoreUpdate struct {
	LeadID   string
	Score    WebsiteScore
	Status   LeadStatus
	ErrorMsg string
}
