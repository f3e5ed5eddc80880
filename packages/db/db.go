// Package db
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sitesignal/packages/domain"
	"sitesignal/packages/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = domain.ErrLeadNotFound

type Storage struct {
	DB          *pgxpool.Pool
	cfg         Config
	resultQueue chan domain.ScoreUpdate
	writerDone  chan struct{}
}

type Config struct {
	JobTimeout          time.Duration
	ResultWriteInterval time.Duration
	ResultQueueSize     int
}

func New(ctx context.Context, databaseURL string, cfg Config) (*Storage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	s := &Storage{
		DB:          pool,
		cfg:         cfg,
		resultQueue: make(chan domain.ScoreUpdate, cfg.ResultQueueSize),
		writerDone:  make(chan struct{}),
	}

	go s.resultWriter(ctx)
	slog.Info("Result writer goroutine started")

	return s, nil
}

// Close drains pending results before closing the pool.
func (s *Storage) Close() {
	close(s.resultQueue)
	<-s.writerDone
	s.DB.Close()
}

func (s *Storage) WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}

func observe(name string) func() {
	start := time.Now()
	return func() {
		metrics.DBQueryDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

const upsertLeadSQL = `
INSERT INTO leads (
    id, business_name, website, address, phone, place_id, industry, status,
    overall, seo, mobile, security, performance, design, content, contact,
    badness_score, improvement_score, issues, critical_issues, outdated_technologies,
    emails_found, phones_found, last_updated, language, scored_at
) VALUES (
    $1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8,
    $9, $10, $11, $12, $13, $14, $15, $16,
    $17, $18, $19, $20, $21,
    $22, $23, $24, $25, $26
)
ON CONFLICT (website) DO UPDATE SET
    business_name = EXCLUDED.business_name,
    address = EXCLUDED.address,
    phone = EXCLUDED.phone,
    place_id = EXCLUDED.place_id,
    industry = EXCLUDED.industry,
    status = EXCLUDED.status,
    overall = EXCLUDED.overall,
    seo = EXCLUDED.seo,
    mobile = EXCLUDED.mobile,
    security = EXCLUDED.security,
    performance = EXCLUDED.performance,
    design = EXCLUDED.design,
    content = EXCLUDED.content,
    contact = EXCLUDED.contact,
    badness_score = EXCLUDED.badness_score,
    improvement_score = EXCLUDED.improvement_score,
    issues = EXCLUDED.issues,
    critical_issues = EXCLUDED.critical_issues,
    outdated_technologies = EXCLUDED.outdated_technologies,
    emails_found = EXCLUDED.emails_found,
    phones_found = EXCLUDED.phones_found,
    last_updated = EXCLUDED.last_updated,
    language = EXCLUDED.language,
    scored_at = EXCLUDED.scored_at`

// SaveLeads upserts leads by website. Leads without a website are always inserted.
func (s *Storage) SaveLeads(ctx context.Context, leads []domain.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	defer observe("save_leads")()

	return s.WithTransaction(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, l := range leads {
			args := []any{l.ID, l.Name, l.Website, l.Address, l.Phone, l.PlaceID, l.Industry, string(l.Status)}
			args = append(args, scoreArgs(l.WebsiteScore)...)
			args = append(args, l.ScoredAt)
			batch.Queue(upsertLeadSQL, args...)
		}
		br := tx.SendBatch(ctx, batch)
		for range leads {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("failed to upsert lead: %w", err)
			}
		}
		return br.Close()
	})
}

// EnqueueWebsites inserts businesses as pending leads, skipping websites already known.
func (s *Storage) EnqueueWebsites(ctx context.Context, businesses []domain.Business, newID func() string) (int, error) {
	defer observe("enqueue_websites")()

	inserted := 0
	err := s.WithTransaction(ctx, func(tx pgx.Tx) error {
		for _, b := range businesses {
			if b.Website == "" {
				continue
			}
			tag, err := tx.Exec(ctx, `
				INSERT INTO leads (id, business_name, website, address, phone, place_id, industry, status)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (website) DO NOTHING`,
				newID(), b.Name, b.Website, b.Address, b.Phone, b.PlaceID, b.Industry, string(domain.PendingScore))
			if err != nil {
				return fmt.Errorf("failed to enqueue %s: %w", b.Website, err)
			}
			inserted += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// LockJobs claims up to limit leads in fromStatus and moves them to toStatus.
func (s *Storage) LockJobs(ctx context.Context, fromStatus, toStatus domain.LeadStatus, limit int) ([]domain.LeadJob, error) {
	defer observe("lock_jobs")()

	rows, err := s.DB.Query(ctx, `
		UPDATE leads SET status = $2, locked_at = now()
		WHERE id IN (
			SELECT id FROM leads
			WHERE status = $1 AND website IS NOT NULL
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, website`,
		string(fromStatus), string(toStatus), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to lock jobs: %w", err)
	}

	var jobs []domain.LeadJob
	var job domain.LeadJob
	if _, err := pgx.ForEachRow(rows, []any{&job.ID, &job.Website}, func() error {
		jobs = append(jobs, job)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to read locked jobs: %w", err)
	}
	return jobs, nil
}

// ReleaseJobs returns claimed leads to the queue without recording a score.
func (s *Storage) ReleaseJobs(ctx context.Context, ids []string) error {
	defer observe("release_jobs")()

	_, err := s.DB.Exec(ctx, `
		UPDATE leads SET status = $1, locked_at = NULL
		WHERE id = ANY($2) AND status = $3`,
		string(domain.PendingScore), ids, string(domain.Scoring))
	if err != nil {
		return fmt.Errorf("failed to release jobs: %w", err)
	}
	return nil
}

// GetLead loads one lead with its score, if it has one.
func (s *Storage) GetLead(ctx context.Context, id string) (domain.Lead, error) {
	defer observe("get_lead")()

	var (
		l                                            domain.Lead
		website, lastUpdated, language               *string
		status                                       string
		overall, seo, mobile, security, perf, design *int
		content, contact, badness, improvement       *int
		issues, critical, outdated, emails, phones   string
	)
	err := s.DB.QueryRow(ctx, `
		SELECT id, business_name, website, address, phone, place_id, industry, status,
		       overall, seo, mobile, security, performance, design, content, contact,
		       badness_score, improvement_score, issues, critical_issues, outdated_technologies,
		       emails_found, phones_found, last_updated, language, scored_at
		FROM leads WHERE id = $1`, id).Scan(
		&l.ID, &l.Name, &website, &l.Address, &l.Phone, &l.PlaceID, &l.Industry, &status,
		&overall, &seo, &mobile, &security, &perf, &design, &content, &contact,
		&badness, &improvement, &issues, &critical, &outdated,
		&emails, &phones, &lastUpdated, &language, &l.ScoredAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return l, ErrNotFound
	}
	if err != nil {
		return l, fmt.Errorf("failed to load lead %s: %w", id, err)
	}

	l.Status = domain.LeadStatus(status)
	if website != nil {
		l.Website = *website
	}
	if overall == nil {
		return l, nil
	}

	score := domain.WebsiteScore{
		Overall:              *overall,
		SEO:                  deref(seo),
		Mobile:               deref(mobile),
		Security:             deref(security),
		Performance:          deref(perf),
		Design:               deref(design),
		Content:              deref(content),
		Contact:              deref(contact),
		BadnessScore:         deref(badness),
		ImprovementScore:     improvement,
		Issues:               decodeList(issues),
		CriticalIssues:       decodeList(critical),
		OutdatedTechnologies: decodeList(outdated),
		EmailsFound:          decodeList(emails),
		PhonesFound:          decodeList(phones),
		LastUpdated:          lastUpdated,
		URL:                  l.Website,
	}
	if language != nil {
		score.Language = *language
	}
	l.WebsiteScore = &score
	return l, nil
}

// EnqueueResult hands a score to the batched writer without blocking.
func (s *Storage) EnqueueResult(update domain.ScoreUpdate) {
	select {
	case s.resultQueue <- update:
	default:
		metrics.ResultsDropped.Inc()
		slog.Warn("Result queue is full. Dropping score.", "lead_id", update.LeadID)
	}
}

func (s *Storage) ResetStalledJobs(ctx context.Context) error {
	defer observe("reset_stalled_jobs")()

	interval := pgtype.Interval{
		Microseconds: s.cfg.JobTimeout.Microseconds(),
		Valid:        true,
	}
	tag, err := s.DB.Exec(ctx, `
		UPDATE leads SET status = $1, locked_at = NULL
		WHERE status = $2 AND locked_at < now() - $3::interval`,
		string(domain.PendingScore), string(domain.Scoring), interval)
	if err != nil {
		return fmt.Errorf("failed to reset stalled jobs: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		slog.Info("Reaper: Reset stalled jobs", "count", n)
	}
	return nil
}

// RequeueStaleScores sends leads scored longer than olderThan ago back to the queue.
func (s *Storage) RequeueStaleScores(ctx context.Context, olderThan time.Duration) (int64, error) {
	defer observe("requeue_stale_scores")()

	interval := pgtype.Interval{Microseconds: olderThan.Microseconds(), Valid: true}
	tag, err := s.DB.Exec(ctx, `
		UPDATE leads SET status = $1
		WHERE status IN ($2, $3) AND scored_at < now() - $4::interval`,
		string(domain.PendingScore), string(domain.Scored), string(domain.Failed), interval)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stale scores: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Storage) RefreshPendingCount(ctx context.Context) error {
	defer observe("refresh_pending_count")()

	var count int64
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM leads WHERE status = $1`, string(domain.PendingScore)).Scan(&count); err != nil {
		return fmt.Errorf("failed to count pending leads: %w", err)
	}
	metrics.PendingLeads.Set(float64(count))
	return nil
}

func (s *Storage) resultWriter(ctx context.Context) {
	defer close(s.writerDone)
	ticker := time.NewTicker(s.cfg.ResultWriteInterval)
	defer ticker.Stop()
	var pending []domain.ScoreUpdate

	for {
		select {
		case <-ctx.Done():
			pending = append(pending, drain(s.resultQueue)...)
			if len(pending) > 0 {
				slog.Info("Result writer: Final write on shutdown...", "count", len(pending))
				s.writeResults(context.Background(), pending)
			}
			slog.Info("Result writer: Shutdown.")
			return
		case update, ok := <-s.resultQueue:
			if !ok {
				if len(pending) > 0 {
					s.writeResults(context.Background(), pending)
				}
				slog.Info("Result writer: Queue closed, exiting.")
				return
			}
			pending = append(pending, update)
		case <-ticker.C:
			if len(pending) > 0 {
				s.writeResults(ctx, pending)
				pending = nil
			}
		}
	}
}

func drain(ch chan domain.ScoreUpdate) []domain.ScoreUpdate {
	var out []domain.ScoreUpdate
	for {
		select {
		case u, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, u)
		default:
			return out
		}
	}
}

const updateScoreSQL = `
UPDATE leads SET
    status = $2,
    overall = $3, seo = $4, mobile = $5, security = $6, performance = $7,
    design = $8, content = $9, contact = $10,
    badness_score = $11, improvement_score = $12,
    issues = $13, critical_issues = $14, outdated_technologies = $15,
    emails_found = $16, phones_found = $17, last_updated = $18, language = $19,
    error_msg = $20, scored_at = now(), locked_at = NULL
WHERE id = $1`

func (s *Storage) writeResults(ctx context.Context, updates []domain.ScoreUpdate) {
	defer observe("write_results")()

	err := s.WithTransaction(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, u := range updates {
			score := u.Score
			args := []any{u.LeadID, string(u.Status)}
			args = append(args, scoreArgs(&score)...)
			args = append(args, nullable(u.ErrorMsg))
			batch.Queue(updateScoreSQL, args...)
		}
		br := tx.SendBatch(ctx, batch)
		for range updates {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("failed to update score: %w", err)
			}
		}
		return br.Close()
	})

	if err != nil {
		slog.Error("Result writer: Transaction failed", "count", len(updates), "error", err)
	} else {
		slog.Info("Result writer: Successfully committed batch", "count", len(updates))
	}
}

// scoreArgs returns the 17 score column values, all NULL for an unscored lead.
func scoreArgs(s *domain.WebsiteScore) []any {
	if s == nil {
		return []any{nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, "[]", "[]", "[]", "[]", "[]", nil, nil}
	}
	improvement := s.Improvement()
	return []any{
		s.Overall, s.SEO, s.Mobile, s.Security, s.Performance, s.Design, s.Content, s.Contact,
		s.BadnessScore, improvement,
		encodeList(s.Issues), encodeList(s.CriticalIssues), encodeList(s.OutdatedTechnologies),
		encodeList(s.EmailsFound), encodeList(s.PhonesFound),
		s.LastUpdated, nullable(s.Language),
	}
}

// encodeList stores string lists as JSON text; readers treat the column as opaque.
func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeList(raw string) []string {
	items := []string{}
	if raw == "" {
		return items
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		slog.Warn("Stored list is not valid JSON", "value", raw, "error", err)
		return []string{}
	}
	return items
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
