package worker

import (
	"errors"

	"github.com/cuongbtq/openmusic/internal/domain"
)

// Outcome is how a delivery is settled with the broker
type Outcome int

const (
	// OutcomeAck removes the message, the job reached a final state or was already done
	OutcomeAck Outcome = iota
	// OutcomeRequeue returns the message to the queue for another attempt
	OutcomeRequeue
	// OutcomeDeadLetter moves the message to the dead-letter queue
	OutcomeDeadLetter
	// OutcomeDiscard rejects the message without requeue
	OutcomeDiscard
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAck:
		return "ack"
	case OutcomeRequeue:
		return "requeue"
	case OutcomeDeadLetter:
		return "dead_letter"
	case OutcomeDiscard:
		return "discard"
	}
	return "unknown"
}

// decideOutcome maps the result of processing a message to its settlement
func decideOutcome(err error) Outcome {
	if err == nil {
		return OutcomeAck
	}

	var permanent *domain.PermanentProcessingFailure
	var transient *domain.TransientProcessingFailure

	switch {
	case errors.Is(err, domain.ErrMalformedMessage):
		return OutcomeDiscard
	case errors.Is(err, domain.ErrIntegrityFault):
		return OutcomeDiscard
	case errors.Is(err, domain.ErrJobTerminal):
		return OutcomeAck
	case errors.As(err, &permanent):
		return OutcomeDeadLetter
	case errors.As(err, &transient):
		return OutcomeRequeue
	}

	// unclassified errors come from the store or the broker and are retried
	return OutcomeRequeue
}

// retryExhausted reports whether a failed attempt was the last one allowed
func retryExhausted(attempts, maxAttempts int) bool {
	return attempts >= maxAttempts
}

// shouldReport reports whether err needs operator attention
func shouldReport(err error) bool {
	if err == nil {
		return false
	}
	var permanent *domain.PermanentProcessingFailure
	return errors.Is(err, domain.ErrIntegrityFault) || errors.As(err, &permanent)
}
