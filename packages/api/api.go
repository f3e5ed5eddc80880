// Package api exposes the scorer, lead scoring, the scoring queue and outreach over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"sitesignal/packages/domain"
	leadsvc "sitesignal/packages/leads"
	"sitesignal/packages/outreach"
	"sitesignal/packages/scorer"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

type WebsiteScorer interface {
	Score(ctx context.Context, url string) scorer.Result
}

type LeadScorer interface {
	ScoreBusinesses(ctx context.Context, q domain.SearchQuery, businesses []domain.Business) ([]domain.Lead, error)
}

type LeadReader interface {
	GetLead(ctx context.Context, id string) (domain.Lead, error)
}

type Enqueuer interface {
	EnqueueWebsites(ctx context.Context, businesses []domain.Business, newID func() string) (int, error)
}

var (
	errMissingURL       = errors.New("url is required")
	errNoBusinesses     = errors.New("at least one business is required")
	errNoWebsites       = errors.New("at least one website is required")
	errLeadsDisabled    = errors.New("lead scoring is not configured")
	errQueueDisabled    = errors.New("scoring queue is not configured")
	errStorageDisabled  = errors.New("lead storage is not configured")
	errOutreachDisabled = errors.New("email generation is not configured")
)

type Server struct {
	scorers     map[scorer.Strategy]WebsiteScorer
	defaultStrt scorer.Strategy
	leads       LeadScorer
	queue       Enqueuer
	reader      LeadReader
	generator   outreach.Generator
	limiter     *ipLimiter
	trustProxy  bool
	logger      *slog.Logger
}

type Option func(*Server)

// WithStrategy registers the scorer used when a request asks for strategy s.
func WithStrategy(s scorer.Strategy, sc WebsiteScorer) Option {
	return func(srv *Server) { srv.scorers[s] = sc }
}

func WithLeads(l LeadScorer) Option { return func(s *Server) { s.leads = l } }

func WithQueue(q Enqueuer) Option { return func(s *Server) { s.queue = q } }

func WithLeadReader(r LeadReader) Option { return func(s *Server) { s.reader = r } }

func WithGenerator(g outreach.Generator) Option { return func(s *Server) { s.generator = g } }

// WithRateLimit allows perSecond requests per client IP with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) { s.limiter = newIPLimiter(perSecond, burst, time.Now) }
}

// WithTrustedProxyHeaders takes the client IP from X-Forwarded-For and X-Real-IP.
// Only enable it behind a proxy that overwrites those headers.
func WithTrustedProxyHeaders() Option { return func(s *Server) { s.trustProxy = true } }

func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// New builds a server whose default scorer handles requests without a known strategy.
func New(defaultStrategy scorer.Strategy, sc WebsiteScorer, opts ...Option) *Server {
	s := &Server{
		scorers:     map[scorer.Strategy]WebsiteScorer{defaultStrategy: sc},
		defaultStrt: defaultStrategy,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	if s.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.healthz)

	r.Route("/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.middleware)
		}
		r.Post("/score", s.scoreWebsite)
		r.Post("/leads/score", s.scoreLeads)
		r.Post("/leads/enqueue", s.enqueueLeads)
		r.Get("/leads/{id}", s.getLead)
		r.Post("/outreach/prompt", s.outreachPrompt)
		r.Post("/outreach/email", s.outreachEmail)
	})
	return r
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type scoreRequest struct {
	URL      string `json:"url"`
	Strategy string `json:"strategy,omitempty"`
}

func (s *Server) scoreWebsite(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, errMissingURL)
		return
	}

	sc := s.scorerFor(req.Strategy)
	res := sc.Score(r.Context(), req.URL)
	writeJSON(w, http.StatusOK, res.Score)
}

func (s *Server) scorerFor(name string) WebsiteScorer {
	if name != "" {
		if sc, ok := s.scorers[scorer.ParseStrategy(name)]; ok {
			return sc
		}
	}
	return s.scorers[s.defaultStrt]
}

type leadsRequest struct {
	Query      domain.SearchQuery `json:"query"`
	Businesses []domain.Business  `json:"businesses"`
	MinBadness int                `json:"minBadness,omitempty"`
}

type leadsResponse struct {
	Leads []domain.Lead `json:"leads"`
	Count int           `json:"count"`
}

func (s *Server) scoreLeads(w http.ResponseWriter, r *http.Request) {
	if s.leads == nil {
		writeError(w, http.StatusNotImplemented, errLeadsDisabled)
		return
	}
	var req leadsRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Businesses) == 0 {
		writeError(w, http.StatusBadRequest, errNoBusinesses)
		return
	}

	leads, err := s.leads.ScoreBusinesses(r.Context(), req.Query, req.Businesses)
	if err != nil {
		s.logger.Error("Lead scoring failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if req.MinBadness > 0 {
		leads = leadsvc.FilterMinBadness(leads, req.MinBadness)
	}
	writeJSON(w, http.StatusOK, leadsResponse{Leads: leads, Count: len(leads)})
}

type enqueueRequest struct {
	Websites   []string          `json:"websites"`
	Businesses []domain.Business `json:"businesses,omitempty"`
}

func (s *Server) enqueueLeads(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		writeError(w, http.StatusNotImplemented, errQueueDisabled)
		return
	}
	var req enqueueRequest
	if !decode(w, r, &req) {
		return
	}

	businesses := make([]domain.Business, 0, len(req.Websites)+len(req.Businesses))
	for _, site := range req.Websites {
		if site = strings.TrimSpace(site); site != "" {
			businesses = append(businesses, domain.Business{Website: site})
		}
	}
	for _, b := range req.Businesses {
		if strings.TrimSpace(b.Website) != "" {
			businesses = append(businesses, b)
		}
	}
	if len(businesses) == 0 {
		writeError(w, http.StatusBadRequest, errNoWebsites)
		return
	}

	n, err := s.queue.EnqueueWebsites(r.Context(), businesses, uuid.NewString)
	if err != nil {
		s.logger.Error("Failed to enqueue websites", "count", len(businesses), "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"enqueued": n})
}

func (s *Server) getLead(w http.ResponseWriter, r *http.Request) {
	if s.reader == nil {
		writeError(w, http.StatusNotImplemented, errStorageDisabled)
		return
	}
	lead, err := s.reader.GetLead(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrLeadNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.logger.Error("Failed to load lead", "id", chi.URLParam(r, "id"), "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

type outreachRequest struct {
	Business domain.Business     `json:"business"`
	Score    domain.WebsiteScore `json:"score"`
}

func (s *Server) outreachPrompt(w http.ResponseWriter, r *http.Request) {
	var req outreachRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"prompt": outreach.BuildPrompt(req.Business, req.Score)})
}

func (s *Server) outreachEmail(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		writeError(w, http.StatusNotImplemented, errOutreachDisabled)
		return
	}
	var req outreachRequest
	if !decode(w, r, &req) {
		return
	}

	prompt := outreach.BuildPrompt(req.Business, req.Score)
	email, err := s.generator.Generate(r.Context(), prompt)
	if err != nil {
		s.logger.Error("Email generation failed", "business", req.Business.Name, "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"prompt": prompt, "email": email})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"remote", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body: "+err.Error()))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
