// Package leads scores the businesses returned by a search and prepares them for outreach.
package leads

import (
	"context"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"sitesignal/packages/domain"
	"sitesignal/packages/scorer"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/errgroup"
)

type WebsiteScorer interface {
	Score(ctx context.Context, url string) scorer.Result
}

type Cache interface {
	Get(ctx context.Context, key string) ([]domain.Lead, bool, error)
	Set(ctx context.Context, key string, leads []domain.Lead) error
}

type Store interface {
	SaveLeads(ctx context.Context, leads []domain.Lead) error
}

type Service struct {
	scorer      WebsiteScorer
	cache       Cache
	store       Store
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
}

type Option func(*Service)

func WithCache(c Cache) Option { return func(s *Service) { s.cache = c } }

func WithStore(st Store) Option { return func(s *Service) { s.store = st } }

// WithConcurrency bounds the number of websites fetched at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

func NewService(sc WebsiteScorer, opts ...Option) *Service {
	s := &Service{
		scorer:      sc,
		concurrency: 5,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScoreBusinesses scores the websites of the given businesses and returns them as leads,
// ranked by badness. Results are cached under the query's parameters.
// Cache and store failures are logged, never returned.
func (s *Service) ScoreBusinesses(ctx context.Context, q domain.SearchQuery, businesses []domain.Business) ([]domain.Lead, error) {
	q = q.Normalized()
	key := q.CacheKey()

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("Lead cache lookup failed", "key", key, "error", err)
		} else if ok {
			s.logger.Debug("Lead cache hit", "key", key, "count", len(cached))
			return cached, nil
		}
	}

	unique := Dedupe(businesses)
	if len(unique) > q.Limit {
		unique = unique[:q.Limit]
	}

	leads := make([]domain.Lead, len(unique))
	for i, b := range unique {
		leads[i] = domain.Lead{ID: uuid.NewString(), Business: b, Status: domain.PendingScore}
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range leads {
		if leads[i].Website == "" {
			continue
		}
		i := i
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			res := s.scorer.Score(gCtx, leads[i].Website)
			score := res.Score
			if score.ImprovementScore == nil {
				improvement := score.Improvement()
				score.ImprovementScore = &improvement
			}
			scoredAt := s.now().UTC()
			leads[i].WebsiteScore = &score
			leads[i].ScoredAt = &scoredAt
			leads[i].Status = domain.Scored
			if score.HasCritical(scorer.AnalysisFailed) {
				leads[i].Status = domain.Failed
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	Rank(leads)
	s.logger.Info("Scored businesses", "term", q.Term, "location", q.Location, "count", len(leads))

	if s.store != nil {
		if err := s.store.SaveLeads(ctx, leads); err != nil {
			s.logger.Error("Failed to persist leads", "count", len(leads), "error", err)
		}
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, leads); err != nil {
			s.logger.Warn("Failed to cache leads", "key", key, "error", err)
		}
	}
	return leads, nil
}

// Dedupe drops businesses whose website shares a registrable domain with an earlier one.
// Businesses without a website are always kept.
func Dedupe(businesses []domain.Business) []domain.Business {
	seen := make(map[string]struct{})
	out := make([]domain.Business, 0, len(businesses))
	for _, b := range businesses {
		if b.Website == "" {
			out = append(out, b)
			continue
		}
		d := RegistrableDomain(b.Website)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, b)
	}
	return out
}

// RegistrableDomain returns the eTLD+1 of a website, or its lowercased host
// when the public suffix list cannot answer.
func RegistrableDomain(website string) string {
	u, err := url.Parse(scorer.NormalizeURL(website))
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(strings.TrimSpace(website))
	}
	host := strings.ToLower(u.Hostname())
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

// Rank orders leads by badness, worst websites first. Unscored leads go last.
func Rank(leads []domain.Lead) {
	sort.SliceStable(leads, func(i, j int) bool {
		a, b := leads[i].WebsiteScore, leads[j].WebsiteScore
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.BadnessScore > b.BadnessScore
		}
	})
}

// FilterMinBadness keeps scored leads whose badness is at least threshold.
func FilterMinBadness(leads []domain.Lead, threshold int) []domain.Lead {
	out := make([]domain.Lead, 0, len(leads))
	for _, l := range leads {
		if l.WebsiteScore != nil && l.WebsiteScore.BadnessScore >= threshold {
			out = append(out, l)
		}
	}
	return out
}
