package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/openmusic/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const contentTypeJSON = "application/json"

// JobRepository persists new export jobs
type JobRepository interface {
	CreateJob(ctx context.Context, job *domain.ExportJob) error
}

// Publisher delivers export messages to the broker
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Producer records export requests and hands them to the broker
type Producer struct {
	jobs      JobRepository
	publisher Publisher
	validate  *validator.Validate
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// New creates a Producer
func New(jobs JobRepository, publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		jobs:      jobs,
		publisher: publisher,
		validate:  validator.New(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// Submit writes a pending job and publishes a message pointing at it.
//
// The job row is written first so the consumer always finds it. When the
// publish fails the job id is still returned alongside ErrQueueUnavailable;
// the row stays pending until reconcile republishes it.
func (p *Producer) Submit(ctx context.Context, playlistID, requesterEmail string) (string, error) {
	if strings.TrimSpace(playlistID) == "" {
		return "", fmt.Errorf("%w: playlist id is required", domain.ErrInvalidExportRequest)
	}
	if err := p.validate.Var(requesterEmail, "required,email"); err != nil {
		return "", fmt.Errorf("%w: target email is invalid", domain.ErrInvalidExportRequest)
	}

	job := domain.NewExportJob(p.newID(), playlistID, requesterEmail, p.now())

	if err := p.jobs.CreateJob(ctx, job); err != nil {
		p.logger.Error("Failed to record export job",
			slog.String("playlist_id", playlistID),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	if err := p.publish(ctx, job); err != nil {
		return job.ID, err
	}

	p.logger.Info("Export job submitted",
		slog.String("job_id", job.ID),
		slog.String("playlist_id", playlistID),
	)

	return job.ID, nil
}

// Republish publishes a message for an existing pending job
func (p *Producer) Republish(ctx context.Context, job *domain.ExportJob) error {
	if job.Status != domain.JobStatusPending {
		return fmt.Errorf("job %s is %s, only pending jobs can be republished", job.ID, job.Status)
	}
	return p.publish(ctx, job)
}

func (p *Producer) publish(ctx context.Context, job *domain.ExportJob) error {
	body, err := json.Marshal(domain.ExportMessage{
		JobID:      job.ID,
		PlaylistID: job.PlaylistID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal export message: %w", err)
	}

	if err := p.publisher.PublishWithRetry(ctx, body, contentTypeJSON); err != nil {
		p.logger.Error("Failed to publish export message, job left pending",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, domain.ErrQueueUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
	}

	return nil
}
