package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/openmusic/internal/domain"
)

// result is what processing one message produced
type result struct {
	jobID    string
	attempts int
	err      error
}

// processMessage runs one export attempt. The job status is always read
// fresh from the store, the message only identifies the job.
func (w *Worker) processMessage(ctx context.Context, body []byte) result {
	msg, err := decodeMessage(body)
	if err != nil {
		return result{err: err}
	}

	res := result{jobID: msg.JobID}

	// Step 1: Load current job state
	job, err := w.store.GetJob(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			res.err = fmt.Errorf("%w: %w", domain.ErrIntegrityFault, err)
			return res
		}
		res.err = domain.NewTransientFailure(fmt.Errorf("failed to load job: %w", err))
		return res
	}
	res.attempts = job.Attempts

	// Step 2: Already delivered or given up, nothing to do
	if job.IsTerminal() {
		w.logger.Info("Export job already terminal, skipping",
			slog.String("job_id", job.ID),
			slog.String("status", job.Status),
		)
		res.err = domain.ErrJobTerminal
		return res
	}

	// Step 3: Claim the attempt (pending|processing -> processing, attempts+1)
	job, err = w.store.BeginAttempt(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobTerminal) {
			res.err = err
			return res
		}
		res.err = domain.NewTransientFailure(fmt.Errorf("failed to begin attempt: %w", err))
		return res
	}
	res.attempts = job.Attempts

	// A previous attempt hit the cap but could not record it
	if job.Attempts > w.maxAttempts {
		res.err = w.fail(ctx, job, errors.New("export attempts exhausted"))
		return res
	}

	// Step 4: Read playlist and songs
	export, err := w.store.GetPlaylistExport(ctx, job.PlaylistID)
	if err != nil {
		if errors.Is(err, domain.ErrPlaylistNotFound) {
			res.err = w.fail(ctx, job, err)
			return res
		}
		res.err = domain.NewTransientFailure(fmt.Errorf("failed to read playlist: %w", err))
		return res
	}

	mail, err := renderExport(job.RequesterEmail, export)
	if err != nil {
		res.err = w.fail(ctx, job, err)
		return res
	}

	// Step 5: Deliver
	if err := w.mailer.Send(ctx, mail); err != nil {
		res.err = w.mailFailed(ctx, job, err)
		return res
	}

	// Step 6: Record success. A failed write leaves the job processing and the
	// message is redelivered, which may send the mail again.
	if err := w.store.MarkCompleted(ctx, job.ID); err != nil {
		if errors.Is(err, domain.ErrJobTerminal) {
			res.err = err
			return res
		}
		res.err = domain.NewTransientFailure(fmt.Errorf("failed to mark job completed: %w", err))
		return res
	}

	w.logger.Info("Playlist export delivered",
		slog.String("job_id", job.ID),
		slog.String("playlist_id", job.PlaylistID),
		slog.Int("songs", len(export.Playlist.Songs)),
		slog.Int("attempts", job.Attempts),
	)

	return res
}

// mailFailed applies the retry policy to a failed send
func (w *Worker) mailFailed(ctx context.Context, job *domain.ExportJob, sendErr error) error {
	cause := fmt.Errorf("failed to send export mail: %w", sendErr)

	if !retryExhausted(job.Attempts, w.maxAttempts) {
		if err := w.store.RecordError(ctx, job.ID, cause.Error()); err != nil {
			w.logger.Warn("Failed to record export error",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
		return domain.NewTransientFailure(cause)
	}

	return w.fail(ctx, job, cause)
}

// fail marks the job failed and returns a permanent failure. If the status
// cannot be written the message is retried instead.
func (w *Worker) fail(ctx context.Context, job *domain.ExportJob, cause error) error {
	if err := w.store.MarkFailed(ctx, job.ID, cause.Error()); err != nil {
		if errors.Is(err, domain.ErrJobTerminal) {
			return err
		}
		return domain.NewTransientFailure(fmt.Errorf("failed to mark job failed: %w", err))
	}

	return domain.NewPermanentFailure(cause, job.Attempts)
}
