package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/openmusic/internal/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Headers attached to dead-lettered export messages
const (
	headerJobID    = "x-export-job-id"
	headerReason   = "x-export-reason"
	headerAttempts = "x-export-attempts"
)

// setupConsumer sets QoS and returns the manual-ack delivery channel
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	if err := w.broker.Qos(w.prefetchCount); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	w.logger.Info("RabbitMQ QoS configured",
		slog.Int("prefetch_count", w.prefetchCount),
	)

	deliveries, err := w.broker.Consume(w.consumerTag)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	return deliveries, nil
}

// decodeMessage parses and checks an export message body
func decodeMessage(body []byte) (*domain.ExportMessage, error) {
	var msg domain.ExportMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if _, err := uuid.Parse(msg.JobID); err != nil {
		return nil, fmt.Errorf("%w: jobId is not a UUID", domain.ErrMalformedMessage)
	}

	return &msg, nil
}

// handleDelivery processes one delivery and settles it exactly once.
// The parent context only carries values: processing runs to completion
// under the job timeout even while the worker is shutting down.
func (w *Worker) handleDelivery(ctx context.Context, d amqp.Delivery) {
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.jobTimeout)
	defer cancel()

	res := w.processMessage(jobCtx, d.Body)
	outcome := decideOutcome(res.err)

	logAttrs := []any{
		slog.String("job_id", res.jobID),
		slog.Uint64("delivery_tag", d.DeliveryTag),
		slog.String("outcome", outcome.String()),
		slog.Int("attempts", res.attempts),
	}
	if res.err != nil {
		logAttrs = append(logAttrs, slog.String("error", res.err.Error()))
	}

	switch outcome {
	case OutcomeAck:
		w.logger.Info("Export message settled", logAttrs...)
	case OutcomeRequeue:
		w.logger.Warn("Export message requeued", logAttrs...)
	default:
		w.logger.Error("Export message rejected", logAttrs...)
	}

	if shouldReport(res.err) {
		w.report(res)
	}

	w.settle(jobCtx, d, outcome, res)
}

// settle acknowledges d according to outcome
func (w *Worker) settle(ctx context.Context, d amqp.Delivery, outcome Outcome, res result) {
	var err error

	switch outcome {
	case OutcomeAck:
		err = d.Ack(false)
	case OutcomeRequeue:
		err = d.Nack(false, true)
	case OutcomeDiscard:
		err = d.Nack(false, false)
	case OutcomeDeadLetter:
		headers := amqp.Table{
			headerJobID:    res.jobID,
			headerReason:   res.err.Error(),
			headerAttempts: int32(res.attempts),
		}
		if pubErr := w.broker.PublishDeadLetter(ctx, d.Body, headers); pubErr != nil {
			// the queue's dead-letter exchange takes the rejected message instead
			w.logger.Error("Failed to publish to dead-letter exchange, rejecting message",
				slog.String("job_id", res.jobID),
				slog.String("error", pubErr.Error()),
			)
			err = d.Nack(false, false)
			break
		}
		err = d.Ack(false)
	}

	if err != nil {
		w.logger.Error("Failed to settle export message",
			slog.String("job_id", res.jobID),
			slog.Uint64("delivery_tag", d.DeliveryTag),
			slog.String("outcome", outcome.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (w *Worker) report(res result) {
	if w.reporter == nil {
		return
	}
	w.reporter.Capture(res.err, map[string]string{
		"job_id":   res.jobID,
		"attempts": fmt.Sprint(res.attempts),
	})
}
