package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	MinResults     = 5
	MaxResults     = 50
	DefaultResults = 20
)

type SearchQuery struct {
	Term     string `json:"term"`
	Location string `json:"location"`
	Industry string `json:"industry,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// Normalized returns a copy with trimmed fields and the limit clamped to [MinResults, MaxResults].
func (q SearchQuery) Normalized() SearchQuery {
	q.Term = strings.TrimSpace(q.Term)
	q.Location = strings.TrimSpace(q.Location)
	q.Industry = strings.TrimSpace(q.Industry)
	switch {
	case q.Limit == 0:
		q.Limit = DefaultResults
	case q.Limit < MinResults:
		q.Limit = MinResults
	case q.Limit > MaxResults:
		q.Limit = MaxResults
	}
	return q
}

// CacheKey is derived from the query parameters only, never from individual URLs.
func (q SearchQuery) CacheKey() string {
	n := q.Normalized()
	raw := fmt.Sprintf("%s|%s|%s|%d",
		strings.ToLower(n.Term), strings.ToLower(n.Location), strings.ToLower(n.Industry), n.Limit)
	sum := sha256.Sum256([]byte(raw))
	return "leads:v1:" + hex.EncodeToString(sum[:])
}
