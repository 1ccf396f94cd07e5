package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/dishcover/internal/metrics"
	"github.com/kalambet/dishcover/internal/storage"
)

// JobType is the job queue type for summary refreshes.
const JobType = "summary_refresh"

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
}

// Enqueuer adds jobs to the queue. Implemented by storage.Store.
type Enqueuer interface {
	HasPendingJob(jobType, payload string) (bool, error)
	EnqueueJob(job storage.Job) error
}

// Refresher recomputes one user's summary.
type Refresher interface {
	Refresh(userID string) (Result, error)
}

type refreshPayload struct {
	UserID string `json:"user_id"`
}

// Enqueue schedules a summary refresh for userID unless one is already
// pending. It reports whether a job was added.
func Enqueue(q Enqueuer, userID string) (bool, error) {
	payload, err := json.Marshal(refreshPayload{UserID: userID})
	if err != nil {
		return false, err
	}
	pending, err := q.HasPendingJob(JobType, string(payload))
	if err != nil {
		return false, fmt.Errorf("checking pending jobs: %w", err)
	}
	if pending {
		return false, nil
	}
	if err := q.EnqueueJob(storage.Job{ID: uuid.New().String(), Type: JobType, PayloadJSON: string(payload)}); err != nil {
		return false, fmt.Errorf("enqueueing summary refresh: %w", err)
	}
	return true, nil
}

// Worker processes summary_refresh jobs from the SQLite job queue.
type Worker struct {
	store     JobStore
	refresher Refresher
	poll      time.Duration
	logger    *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 1s.
func NewWorker(store JobStore, refresher Refresher, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Worker{
		store:     store,
		refresher: refresher,
		poll:      pollInterval,
		logger:    slog.Default().With("component", "summary_worker"),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single summary_refresh job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		metrics.JobsProcessed.WithLabelValues(JobType, "failure").Inc()
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	metrics.JobsProcessed.WithLabelValues(JobType, "success").Inc()
	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(job *storage.Job) error {
	var payload refreshPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	if payload.UserID == "" {
		return fmt.Errorf("payload has no user_id")
	}
	res, err := w.refresher.Refresh(payload.UserID)
	if err != nil {
		return err
	}
	w.logger.Debug("summary refreshed", "user_id", payload.UserID, "persisted", res.Persisted)
	return nil
}
