// Package scorer fetches a business website and grades it with substring heuristics.
package scorer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sitesignal/packages/domain"
	"sitesignal/packages/metrics"
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*domain.FetchedPage, error)
}

type Strategy string

const (
	Heuristic Strategy = "heuristic"
	// DOM parses the document for the parser-sensitive signals. Opt-in.
	DOM Strategy = "dom"
)

// ParseStrategy falls back to Heuristic for unknown names.
func ParseStrategy(s string) Strategy {
	if Strategy(strings.ToLower(strings.TrimSpace(s))) == DOM {
		return DOM
	}
	return Heuristic
}

type Scorer struct {
	fetcher     Fetcher
	strategy    Strategy
	now         func() time.Time
	phoneRegion string
	logger      *slog.Logger
}

type Option func(*Scorer)

func WithStrategy(s Strategy) Option {
	return func(sc *Scorer) { sc.strategy = s }
}

// WithClock sets the time source used to judge copyright staleness.
func WithClock(now func() time.Time) Option {
	return func(sc *Scorer) { sc.now = now }
}

func WithPhoneRegion(region string) Option {
	return func(sc *Scorer) { sc.phoneRegion = region }
}

func WithLogger(l *slog.Logger) Option {
	return func(sc *Scorer) { sc.logger = l }
}

func New(f Fetcher, opts ...Option) *Scorer {
	s := &Scorer{
		fetcher:     f,
		strategy:    Heuristic,
		now:         time.Now,
		phoneRegion: "US",
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scorer) Strategy() Strategy { return s.strategy }

type Result struct {
	Score domain.WebsiteScore
	HTML  string
}

// Score never fails: fetch errors and analysis panics produce a degraded score
// with "Analysis Failed" as a critical issue and an empty HTML.
func (s *Scorer) Score(ctx context.Context, rawURL string) (res Result) {
	target := NormalizeURL(rawURL)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic while scoring website", "url", target, "panic", r)
			res = Result{Score: FailedScore(target, fmt.Errorf("panic: %v", r))}
		}
		outcome := "scored"
		if res.Score.HasCritical(AnalysisFailed) {
			outcome = "failed"
		}
		metrics.ScoresTotal.WithLabelValues(outcome).Inc()
		metrics.ScoreDuration.WithLabelValues(string(s.strategy)).Observe(time.Since(start).Seconds())
	}()

	page, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		metrics.FetchFailures.Inc()
		s.logger.Warn("Website fetch failed", "url", target, "error", err)
		return Result{Score: FailedScore(target, err)}
	}

	score := s.Analyze(page)
	score.URL = target
	s.logger.Debug("Website scored",
		"url", target,
		"overall", score.Overall,
		"badness", score.BadnessScore,
		"critical", len(score.CriticalIssues),
	)
	return Result{Score: score, HTML: page.HTML}
}

// Analyze scores an already fetched page.
func (s *Scorer) Analyze(page *domain.FetchedPage) domain.WebsiteScore {
	sig := Detect(page)
	var lang string
	if s.strategy == DOM {
		sig, lang = refineWithDOM(page.HTML, sig)
	}

	score := Evaluate(sig, s.now().Year())
	score.URL = page.RequestedURL
	score.EmailsFound = ExtractEmails(page.HTML)
	score.PhonesFound = ExtractPhones(page.HTML, s.phoneRegion)
	score.Language = lang
	score.Strategy = string(s.strategy)
	return score
}

// NormalizeURL prefixes https:// when no http or https scheme is present.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	lower := strings.ToLower(u)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return u
	}
	return "https://" + u
}

// FailedScore is the degraded score recorded when a website cannot be analyzed.
func FailedScore(url string, err error) domain.WebsiteScore {
	return domain.WebsiteScore{
		Issues:               []string{"Failed to analyze website", "Error: " + err.Error()},
		CriticalIssues:       []string{AnalysisFailed},
		OutdatedTechnologies: []string{},
		EmailsFound:          []string{},
		PhonesFound:          []string{},
		BadnessScore:         failedBadness,
		URL:                  url,
	}
}
