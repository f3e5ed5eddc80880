// Package worker
package worker

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"sitesignal/packages/domain"
	"sitesignal/packages/scorer"

	"golang.org/x/sync/errgroup"
)

type JobStore interface {
	LockJobs(ctx context.Context, fromStatus, toStatus domain.LeadStatus, limit int) ([]domain.LeadJob, error)
	ReleaseJobs(ctx context.Context, ids []string) error
	EnqueueResult(update domain.ScoreUpdate)
}

const releaseTimeout = 5 * time.Second

type WebsiteScorer interface {
	Score(ctx context.Context, url string) scorer.Result
}

type Config struct {
	BatchSize  int
	MaxWorkers int
}

type Worker struct {
	cfg     Config
	storage JobStore
	scorer  WebsiteScorer
}

func New(cfg Config, storage JobStore, sc WebsiteScorer) *Worker {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	return &Worker{
		cfg:     cfg,
		storage: storage,
		scorer:  sc,
	}
}

// ProcessJobs claims one batch of pending leads and scores them. It returns the batch size.
func (w *Worker) ProcessJobs(ctx context.Context) int {
	jobsList, err := w.storage.LockJobs(ctx, domain.PendingScore, domain.Scoring, w.cfg.BatchSize)
	if err != nil {
		slog.Error("Failed to lock jobs", "error", err)
		return 0
	}

	if len(jobsList) == 0 {
		return 0
	}

	slog.Info("Locked and dispatched jobs", "count", len(jobsList))

	var (
		mu          sync.Mutex
		interrupted []string
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.MaxWorkers)

	for _, job := range jobsList {
		currentJob := job
		g.Go(func() error {
			if gCtx.Err() == nil {
				update := w.scoreJob(gCtx, currentJob)
				// A fetch cut short by shutdown says nothing about the website.
				if gCtx.Err() == nil {
					w.storage.EnqueueResult(update)
					return nil
				}
			}
			mu.Lock()
			interrupted = append(interrupted, currentJob.ID)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(interrupted) > 0 {
		w.release(ctx, interrupted)
	}
	slog.Info("Finished processing batch", "count", len(jobsList), "interrupted", len(interrupted))
	return len(jobsList)
}

// release puts interrupted jobs back in the queue. If that fails the reaper
// resets them once they exceed the job timeout.
func (w *Worker) release(ctx context.Context, ids []string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := w.storage.ReleaseJobs(releaseCtx, ids); err != nil {
		slog.Error("Failed to release interrupted jobs", "count", len(ids), "error", err)
		return
	}
	slog.Info("Released interrupted jobs", "count", len(ids))
}

func (w *Worker) scoreJob(ctx context.Context, job domain.LeadJob) domain.ScoreUpdate {
	res := w.scorer.Score(ctx, job.Website)
	update := domain.ScoreUpdate{LeadID: job.ID, Score: res.Score, Status: domain.Scored}

	if res.Score.HasCritical(scorer.AnalysisFailed) {
		update.Status = domain.Failed
		update.ErrorMsg = fetchError(res.Score.Issues)
		slog.Warn("Task failed", "job_id", job.ID, "url", job.Website, "error", update.ErrorMsg)
	}
	return update
}

func fetchError(issues []string) string {
	for _, issue := range issues {
		if msg, ok := strings.CutPrefix(issue, "Error: "); ok {
			return msg
		}
	}
	return scorer.AnalysisFailed
}
