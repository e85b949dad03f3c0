package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/openmusic/internal/domain"
	"github.com/cuongbtq/openmusic/shared/mailer"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrConsumerLost is returned by Start when the delivery channel closed and
// the worker could not subscribe again
var ErrConsumerLost = errors.New("export consumer lost")

// JobStore is the worker's view of the job and catalog tables
type JobStore interface {
	GetJob(ctx context.Context, jobID string) (*domain.ExportJob, error)
	BeginAttempt(ctx context.Context, jobID string) (*domain.ExportJob, error)
	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID, reason string) error
	RecordError(ctx context.Context, jobID, reason string) error
	GetPlaylistExport(ctx context.Context, playlistID string) (*domain.PlaylistExport, error)
}

// Mailer sends rendered exports
type Mailer interface {
	Send(ctx context.Context, msg *mailer.Message) error
}

// Broker is the consuming side of the message broker
type Broker interface {
	Qos(prefetchCount int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
	CancelConsumer(consumerTag string) error
	PublishDeadLetter(ctx context.Context, body []byte, headers amqp.Table) error
}

// Reporter receives faults that need operator attention
type Reporter interface {
	Capture(err error, tags map[string]string)
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Store         JobStore
	Mailer        Mailer
	Broker        Broker
	Reporter      Reporter
	Concurrency   int
	PrefetchCount int
	JobTimeout    time.Duration
	MaxAttempts   int
	ConsumerTag   string

	// ResubscribeAttempts and ResubscribeDelay bound how long the worker
	// tries to consume again after the broker closed the delivery channel
	ResubscribeAttempts int
	ResubscribeDelay    time.Duration
}

// Worker consumes export messages and mails playlist exports
type Worker struct {
	logger        *slog.Logger
	store         JobStore
	mailer        Mailer
	broker        Broker
	reporter      Reporter
	concurrency   int
	prefetchCount int
	jobTimeout    time.Duration
	maxAttempts   int
	consumerTag   string
	resubAttempts int
	resubDelay    time.Duration
	wg            sync.WaitGroup
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}
	resubAttempts := cfg.ResubscribeAttempts
	if resubAttempts <= 0 {
		resubAttempts = 5
	}
	resubDelay := cfg.ResubscribeDelay
	if resubDelay <= 0 {
		resubDelay = 2 * time.Second
	}

	return &Worker{
		logger:        cfg.Logger,
		store:         cfg.Store,
		mailer:        cfg.Mailer,
		broker:        cfg.Broker,
		reporter:      cfg.Reporter,
		concurrency:   concurrency,
		prefetchCount: prefetch,
		jobTimeout:    cfg.JobTimeout,
		maxAttempts:   cfg.MaxAttempts,
		consumerTag:   cfg.ConsumerTag,
		resubAttempts: resubAttempts,
		resubDelay:    resubDelay,
		stopChan:      make(chan struct{}),
	}
}

// Start subscribes to the export queue and runs the worker pool until ctx is
// canceled or Stop is called. When the broker closes the delivery channel the
// worker subscribes again; if that keeps failing Start returns ErrConsumerLost.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
		slog.Int("max_attempts", w.maxAttempts),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	for {
		poolDone := w.spawnWorkerPool(ctx, deliveries)

		select {
		case <-ctx.Done():
			w.logger.Info("Worker context canceled, stopping...")
			return nil
		case <-w.stopChan:
			return nil
		case <-poolDone:
		}

		if w.stopping() {
			return nil
		}

		w.logger.Warn("Delivery channel closed, subscribing again",
			slog.String("consumer_tag", w.consumerTag),
		)

		deliveries, err = w.resubscribe(ctx)
		if err != nil {
			return err
		}
	}
}

// resubscribe retries setupConsumer until it succeeds, the worker stops or
// the attempts run out
func (w *Worker) resubscribe(ctx context.Context) (<-chan amqp.Delivery, error) {
	var lastErr error
	for attempt := 1; attempt <= w.resubAttempts; attempt++ {
		deliveries, err := w.setupConsumer()
		if err == nil {
			w.logger.Info("Export consumer subscribed again",
				slog.Int("attempt", attempt),
			)
			return deliveries, nil
		}

		lastErr = err
		w.logger.Error("Failed to subscribe export consumer",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", w.resubAttempts),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrConsumerLost, ctx.Err())
		case <-w.stopChan:
			return nil, fmt.Errorf("%w: worker stopped", ErrConsumerLost)
		case <-time.After(w.resubDelay):
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrConsumerLost, w.resubAttempts, lastErr)
}

func (w *Worker) stopping() bool {
	select {
	case <-w.stopChan:
		return true
	default:
		return false
	}
}

// Stop cancels the consumer and waits for in-flight messages to be settled
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")

		if err := w.broker.CancelConsumer(w.consumerTag); err != nil {
			w.logger.Warn("Failed to cancel consumer",
				slog.String("consumer_tag", w.consumerTag),
				slog.String("error", err.Error()),
			)
		}

		close(w.stopChan)
		w.wg.Wait()
		w.logger.Info("Worker stopped")
	})
}
