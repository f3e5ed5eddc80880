package scorer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sitesignal/packages/crawler"
	"sitesignal/packages/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	page *domain.FetchedPage
	err  error
	got  string
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (*domain.FetchedPage, error) {
	f.got = url
	if f.err != nil {
		return nil, f.err
	}
	p := *f.page
	p.RequestedURL = url
	return &p, nil
}

type panicFetcher struct{}

func (panicFetcher) Fetch(context.Context, string) (*domain.FetchedPage, error) {
	panic("boom")
}

func fixedClock(year int) func() time.Time {
	return func() time.Time { return time.Date(year, time.June, 1, 0, 0, 0, 0, time.UTC) }
}

func TestNormalizeURL(t *testing.T) {
	tests := map[string]string{
		"example.com":          "https://example.com",
		"http://example.com":   "http://example.com",
		"HTTPS://Example.com":  "HTTPS://Example.com",
		" www.example.com/a ":  "https://www.example.com/a",
		"ftp://example.com":    "https://ftp://example.com",
		"https://example.com/": "https://example.com/",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeURL(in), in)
	}
}

func TestScoreFetchFailure(t *testing.T) {
	f := &stubFetcher{err: context.DeadlineExceeded}
	res := New(f).Score(context.Background(), "example.com")

	assert.Equal(t, "https://example.com", f.got)
	assert.Equal(t, "", res.HTML)
	assert.Equal(t, 70, res.Score.BadnessScore)
	assert.Equal(t, []string{"Analysis Failed"}, res.Score.CriticalIssues)
	assert.Equal(t, []string{"Failed to analyze website", "Error: context deadline exceeded"}, res.Score.Issues)
	assert.Equal(t, "https://example.com", res.Score.URL)
	assert.Equal(t, 0, res.Score.Overall)
	assert.NotNil(t, res.Score.OutdatedTechnologies)
}

func TestScoreTimeoutWithRealFetcher(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	s := New(crawler.New(50*time.Millisecond, "test-agent", 0))
	res := s.Score(context.Background(), srv.URL)

	assert.Equal(t, 70, res.Score.BadnessScore)
	assert.True(t, res.Score.HasCritical(AnalysisFailed))
	assert.Equal(t, "", res.HTML)
}

func TestScoreRecoversFromPanic(t *testing.T) {
	res := New(panicFetcher{}).Score(context.Background(), "https://example.com")
	assert.Equal(t, 70, res.Score.BadnessScore)
	assert.Contains(t, res.Score.Issues, "Error: panic: boom")
}

func TestScoreEndToEnd(t *testing.T) {
	page := `<html><head><title>Acme</title></head><body>` +
		`<p>Write to contact@example.com or duplicate@example.com.</p>` +
		`<p>Again: duplicate@example.com <img src="logo@2x.png"></p>` +
		`<footer>Copyright © 2015 Acme</footer></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	s := New(crawler.New(time.Second, "test-agent", 0), WithClock(fixedClock(2025)))
	res := s.Score(context.Background(), srv.URL)

	assert.Equal(t, page, res.HTML)
	assert.Equal(t, srv.URL, res.Score.URL)
	assert.Equal(t, []string{"contact@example.com", "duplicate@example.com"}, res.Score.EmailsFound)
	// Plain http plus X-Frame-Options only.
	assert.Equal(t, 10, res.Score.Security)
	require.NotNil(t, res.Score.LastUpdated)
	assert.Equal(t, "2015", *res.Score.LastUpdated)
	assert.Contains(t, res.Score.OutdatedTechnologies, "Copyright last updated 10 years ago (2015)")
	assert.Equal(t, "heuristic", res.Score.Strategy)
	assert.Nil(t, res.Score.ImprovementScore)
}

func TestScoreIsIdempotent(t *testing.T) {
	f := &stubFetcher{page: &domain.FetchedPage{
		FinalURL: "https://example.com",
		HTML:     `<title>Acme</title><h1>Hi</h1><p>Call (201) 555-0123, Copyright 2012</p>`,
	}}
	s := New(f, WithClock(fixedClock(2025)))

	a := s.Score(context.Background(), "https://example.com")
	b := s.Score(context.Background(), "https://example.com")
	assert.Equal(t, a, b)
	assert.Equal(t, []string{"+12015550123"}, a.Score.PhonesFound)
}

func TestScoreDOMStrategy(t *testing.T) {
	f := &stubFetcher{page: &domain.FetchedPage{
		FinalURL: "https://example.com",
		HTML:     `<html><head><title>Acme Plumbing</title></head><body><p>` + englishParagraph + `</p></body></html>`,
	}}
	s := New(f, WithStrategy(ParseStrategy("DOM")), WithClock(fixedClock(2025)))
	res := s.Score(context.Background(), "example.com")

	assert.Equal(t, DOM, s.Strategy())
	assert.Equal(t, "dom", res.Score.Strategy)
	assert.Equal(t, "eng", res.Score.Language)
	assert.Equal(t, 15, res.Score.SEO)
}

func TestParseStrategy(t *testing.T) {
	assert.Equal(t, Heuristic, ParseStrategy(""))
	assert.Equal(t, Heuristic, ParseStrategy("lighthouse"))
	assert.Equal(t, DOM, ParseStrategy(" dom "))
}

func TestFailedScoreBadnessIsFixed(t *testing.T) {
	s := FailedScore("https://example.com", errors.New("dial tcp: no such host"))
	assert.Equal(t, 70, s.BadnessScore)
	assert.Equal(t, "Error: dial tcp: no such host", s.Issues[1])
}

func TestScoreRedirectToHTTPSCountsAsSecure(t *testing.T) {
	f := &stubFetcher{page: &domain.FetchedPage{FinalURL: "https://example.com/", StatusCode: 200, HTML: "<html></html>"}}
	res := New(f).Score(context.Background(), "http://example.com")

	assert.Equal(t, "http://example.com", res.Score.URL)
	assert.Equal(t, 50, res.Score.Security)
	assert.NotContains(t, res.Score.CriticalIssues, "No HTTPS encryption")
}
