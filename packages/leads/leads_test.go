package leads

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sitesignal/packages/domain"
	"sitesignal/packages/scorer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScorer struct {
	mu       sync.Mutex
	calls    []string
	badness  map[string]int
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (f *fakeScorer) Score(_ context.Context, url string) scorer.Result {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(f.delay)

	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()

	if url == "https://down.example" {
		return scorer.Result{Score: scorer.FailedScore(url, errors.New("timeout"))}
	}
	overall := 40
	return scorer.Result{
		Score: domain.WebsiteScore{Overall: overall, BadnessScore: f.badness[url], URL: url},
		HTML:  "<html></html>",
	}
}

type fakeCache struct {
	data    map[string][]domain.Lead
	getErr  error
	setKeys []string
}

func (c *fakeCache) Get(_ context.Context, key string) ([]domain.Lead, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	l, ok := c.data[key]
	return l, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, leads []domain.Lead) error {
	if c.data == nil {
		c.data = map[string][]domain.Lead{}
	}
	c.data[key] = leads
	c.setKeys = append(c.setKeys, key)
	return nil
}

type fakeStore struct {
	saved []domain.Lead
	err   error
}

func (s *fakeStore) SaveLeads(_ context.Context, leads []domain.Lead) error {
	s.saved = append(s.saved, leads...)
	return s.err
}

func TestScoreBusinessesRanksAndSetsImprovement(t *testing.T) {
	sc := &fakeScorer{badness: map[string]int{
		"https://a.example": 60,
		"https://b.example": 90,
	}}
	store := &fakeStore{}
	svc := NewService(sc, WithStore(store))

	leads, err := svc.ScoreBusinesses(context.Background(), domain.SearchQuery{Term: "plumber", Location: "austin"}, []domain.Business{
		{Name: "A", Website: "https://a.example"},
		{Name: "No site"},
		{Name: "B", Website: "https://b.example"},
	})
	require.NoError(t, err)
	require.Len(t, leads, 3)

	assert.Equal(t, "B", leads[0].Name)
	assert.Equal(t, "A", leads[1].Name)
	assert.Equal(t, "No site", leads[2].Name)
	assert.Nil(t, leads[2].WebsiteScore)
	assert.Equal(t, domain.PendingScore, leads[2].Status)

	require.NotNil(t, leads[0].WebsiteScore.ImprovementScore)
	assert.Equal(t, 60, *leads[0].WebsiteScore.ImprovementScore)
	assert.Equal(t, domain.Scored, leads[0].Status)
	assert.NotEmpty(t, leads[0].ID)
	assert.NotEqual(t, leads[0].ID, leads[1].ID)
	assert.Len(t, store.saved, 3)
}

func TestScoreBusinessesMarksFailedFetch(t *testing.T) {
	svc := NewService(&fakeScorer{})
	leads, err := svc.ScoreBusinesses(context.Background(), domain.SearchQuery{Term: "x"}, []domain.Business{
		{Name: "Down", Website: "https://down.example"},
	})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, domain.Failed, leads[0].Status)
	assert.Equal(t, 70, leads[0].WebsiteScore.BadnessScore)
}

func TestScoreBusinessesClampsToLimit(t *testing.T) {
	var businesses []domain.Business
	for i := 0; i < 80; i++ {
		businesses = append(businesses, domain.Business{Name: fmt.Sprint(i), Website: fmt.Sprintf("https://site%d.example", i)})
	}
	sc := &fakeScorer{}
	svc := NewService(sc)

	leads, err := svc.ScoreBusinesses(context.Background(), domain.SearchQuery{Term: "x", Limit: 500}, businesses)
	require.NoError(t, err)
	assert.Len(t, leads, domain.MaxResults)

	leads, err = svc.ScoreBusinesses(context.Background(), domain.SearchQuery{Term: "x", Limit: 2}, businesses)
	require.NoError(t, err)
	assert.Len(t, leads, domain.MinResults)
}

func TestScoreBusinessesBoundsConcurrency(t *testing.T) {
	var businesses []domain.Business
	for i := 0; i < 12; i++ {
		businesses = append(businesses, domain.Business{Website: fmt.Sprintf("https://site%d.example", i)})
	}
	sc := &fakeScorer{delay: 10 * time.Millisecond}
	svc := NewService(sc, WithConcurrency(3))

	_, err := svc.ScoreBusinesses(context.Background(), domain.SearchQuery{Term: "x"}, businesses)
	require.NoError(t, err)
	assert.Len(t, sc.calls, 12)
	assert.LessOrEqual(t, sc.peak.Load(), int32(3))
}

func TestScoreBusinessesUsesCache(t *testing.T) {
	q := domain.SearchQuery{Term: "Plumber", Location: "Austin", Limit: 10}
	cached := []domain.Lead{{ID: "cached", Business: domain.Business{Name: "Cached"}}}
	c := &fakeCache{data: map[string][]domain.Lead{q.CacheKey(): cached}}
	sc := &fakeScorer{}
	svc := NewService(sc, WithCache(c))

	leads, err := svc.ScoreBusinesses(context.Background(), q, []domain.Business{{Website: "https://a.example"}})
	require.NoError(t, err)
	assert.Equal(t, cached, leads)
	assert.Empty(t, sc.calls)
}

func TestScoreBusinessesFillsCacheOnMiss(t *testing.T) {
	c := &fakeCache{}
	q := domain.SearchQuery{Term: "plumber", Location: "austin"}
	svc := NewService(&fakeScorer{}, WithCache(c))

	_, err := svc.ScoreBusinesses(context.Background(), q, []domain.Business{{Website: "https://a.example"}})
	require.NoError(t, err)
	assert.Equal(t, []string{q.CacheKey()}, c.setKeys)
}

func TestScoreBusinessesIgnoresCacheAndStoreErrors(t *testing.T) {
	c := &fakeCache{getErr: errors.New("redis down")}
	store := &fakeStore{err: errors.New("db down")}
	svc := NewService(&fakeScorer{}, WithCache(c), WithStore(store))

	leads, err := svc.ScoreBusinesses(context.Background(), domain.SearchQuery{Term: "x"}, []domain.Business{{Website: "https://a.example"}})
	require.NoError(t, err)
	assert.Len(t, leads, 1)
}

func TestScoreBusinessesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sc := &fakeScorer{}

	_, err := NewService(sc).ScoreBusinesses(ctx, domain.SearchQuery{Term: "x"}, []domain.Business{{Website: "https://a.example"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sc.calls)
}

func TestDedupeByRegistrableDomain(t *testing.T) {
	got := Dedupe([]domain.Business{
		{Name: "1", Website: "https://www.acme.co.uk"},
		{Name: "2", Website: "acme.co.uk/contact"},
		{Name: "3", Website: "https://shop.acme.co.uk"},
		{Name: "4"},
		{Name: "5", Website: "http://other.com"},
		{Name: "6"},
	})
	var names []string
	for _, b := range got {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"1", "4", "5", "6"}, names)
}

func TestRegistrableDomain(t *testing.T) {
	assert.Equal(t, "acme.com", RegistrableDomain("https://WWW.Acme.com/about"))
	assert.Equal(t, "acme.com.au", RegistrableDomain("blog.acme.com.au"))
	assert.Equal(t, "localhost", RegistrableDomain("http://localhost:8080"))
}

func TestRankAndFilter(t *testing.T) {
	leads := []domain.Lead{
		{ID: "unscored"},
		{ID: "low", WebsiteScore: &domain.WebsiteScore{BadnessScore: 20}},
		{ID: "high", WebsiteScore: &domain.WebsiteScore{BadnessScore: 120}},
		{ID: "mid", WebsiteScore: &domain.WebsiteScore{BadnessScore: 70}},
	}
	Rank(leads)
	var ids []string
	for _, l := range leads {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"high", "mid", "low", "unscored"}, ids)

	filtered := FilterMinBadness(leads, 70)
	assert.Len(t, filtered, 2)
}
