package domain

import "errors"

var (
	// ErrStorageUnavailable is returned when the job store cannot be reached
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrQueueUnavailable is returned when a message cannot be published
	ErrQueueUnavailable = errors.New("queue unavailable")

	// ErrIntegrityFault marks a message that references state which does not exist
	ErrIntegrityFault = errors.New("integrity fault")

	// ErrJobNotFound is returned when an export job cannot be found
	ErrJobNotFound = errors.New("export job not found")

	// ErrJobTerminal is returned when a job already reached completed or failed
	ErrJobTerminal = errors.New("export job already in terminal status")

	// ErrPlaylistNotFound is returned when the playlist to export no longer exists
	ErrPlaylistNotFound = errors.New("playlist not found")

	// ErrMalformedMessage is returned when a broker message cannot be decoded
	ErrMalformedMessage = errors.New("malformed export message")

	// ErrInvalidExportRequest is returned for a bad playlist id or email address
	ErrInvalidExportRequest = errors.New("invalid export request")

	// ErrAlbumNotFound is returned when liking an album that does not exist
	ErrAlbumNotFound = errors.New("album not found")

	// ErrAlreadyLiked is returned when a user likes the same album twice
	ErrAlreadyLiked = errors.New("album already liked")
)

// TransientProcessingFailure wraps a failure that should be retried by requeueing
type TransientProcessingFailure struct {
	Err error
}

func (e *TransientProcessingFailure) Error() string {
	return "transient processing failure: " + e.Err.Error()
}

func (e *TransientProcessingFailure) Unwrap() error {
	return e.Err
}

// NewTransientFailure wraps err as a TransientProcessingFailure
func NewTransientFailure(err error) error {
	return &TransientProcessingFailure{Err: err}
}

// PermanentProcessingFailure wraps a failure that exhausted retries or cannot succeed
type PermanentProcessingFailure struct {
	Err      error
	Attempts int
}

func (e *PermanentProcessingFailure) Error() string {
	return "permanent processing failure: " + e.Err.Error()
}

func (e *PermanentProcessingFailure) Unwrap() error {
	return e.Err
}

// NewPermanentFailure wraps err as a PermanentProcessingFailure
func NewPermanentFailure(err error, attempts int) error {
	return &PermanentProcessingFailure{Err: err, Attempts: attempts}
}
