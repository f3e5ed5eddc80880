// Package outreach turns a website score into a cold-email prompt for a language model.
package outreach

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sitesignal/packages/domain"

	"google.golang.org/genai"
)

const weakCategoryThreshold = 50

const SystemPrompt = "You write short, friendly cold emails from a small web design agency to local business owners. " +
	"Mention concrete problems with their website, never invent problems that were not listed, " +
	"and end with a single low-pressure call to action. Respond with the email body only."

var ErrEmptyResponse = errors.New("model returned an empty response")

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// BuildPrompt uses the overall score, the first two critical issues, the first
// outdated technology and every category below 50.
func BuildPrompt(b domain.Business, s domain.WebsiteScore) string {
	var sb strings.Builder

	name := b.Name
	if name == "" {
		name = "the business"
	}
	website := s.URL
	if website == "" {
		website = b.Website
	}

	fmt.Fprintf(&sb, "Write a cold email to %s", name)
	if b.Industry != "" {
		fmt.Fprintf(&sb, " (%s)", b.Industry)
	}
	fmt.Fprintf(&sb, " about their website %s.\n", website)
	fmt.Fprintf(&sb, "Our audit scored the website %d/100.\n", s.Overall)

	if n := min(2, len(s.CriticalIssues)); n > 0 {
		sb.WriteString("Most serious problems:\n")
		for _, issue := range s.CriticalIssues[:n] {
			fmt.Fprintf(&sb, "- %s\n", issue)
		}
	}
	if len(s.OutdatedTechnologies) > 0 {
		fmt.Fprintf(&sb, "Outdated technology: %s\n", s.OutdatedTechnologies[0])
	}

	if weak := WeakCategories(s); len(weak) > 0 {
		sb.WriteString("Weak areas: " + strings.Join(weak, ", ") + "\n")
	}
	sb.WriteString("Keep it under 150 words.")
	return sb.String()
}

// WeakCategories lists categories scoring below 50 in a fixed order, e.g. "SEO (20/100)".
func WeakCategories(s domain.WebsiteScore) []string {
	categories := []struct {
		name  string
		value int
	}{
		{"SEO", s.SEO},
		{"Mobile", s.Mobile},
		{"Security", s.Security},
		{"Performance", s.Performance},
		{"Design", s.Design},
		{"Content", s.Content},
		{"Contact", s.Contact},
	}
	var weak []string
	for _, c := range categories {
		if c.value < weakCategoryThreshold {
			weak = append(weak, fmt.Sprintf("%s (%d/100)", c.name, c.value))
		}
	}
	return weak
}

type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
	}
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
