package domain

import (
	"fmt"
	"time"
)

// Export job status constants
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// ExportQueueName is the durable queue export jobs are consumed from
const ExportQueueName = "export:playlist"

// ExportJob is the durable record of one playlist export request
type ExportJob struct {
	ID             string    `db:"id"`
	PlaylistID     string    `db:"playlist_id"`
	RequesterEmail string    `db:"requester_email"`
	Status         string    `db:"status"`
	Attempts       int       `db:"attempts"`
	LastError      string    `db:"last_error"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// NewExportJob returns a pending job with zero attempts
func NewExportJob(id, playlistID, requesterEmail string, now time.Time) *ExportJob {
	return &ExportJob{
		ID:             id,
		PlaylistID:     playlistID,
		RequesterEmail: requesterEmail,
		Status:         JobStatusPending,
		Attempts:       0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsTerminal reports whether the job has reached completed or failed
func (j *ExportJob) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

// IsTerminalStatus reports whether status is completed or failed
func IsTerminalStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}

// ValidStatus reports whether status is one of the known job statuses
func ValidStatus(status string) bool {
	switch status {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// ExportMessage is the broker message body. It only points at the job record,
// the consumer always reads current state from the store.
type ExportMessage struct {
	JobID      string `json:"jobId"`
	PlaylistID string `json:"playlistId"`
}

// Validate checks both references are present
func (m ExportMessage) Validate() error {
	if m.JobID == "" {
		return fmt.Errorf("%w: jobId is empty", ErrMalformedMessage)
	}
	if m.PlaylistID == "" {
		return fmt.Errorf("%w: playlistId is empty", ErrMalformedMessage)
	}
	return nil
}
