package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/openmusic/internal/domain"
	"github.com/jmoiron/sqlx"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// GetJob retrieves an export job by its ID
func (s *Storage) GetJob(ctx context.Context, jobID string) (*domain.ExportJob, error) {
	query := `
		SELECT id, playlist_id, requester_email, status, attempts, last_error, created_at, updated_at
		FROM export_jobs
		WHERE id = $1
	`

	var job domain.ExportJob
	if err := s.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get export job: %w", err)
	}

	return &job, nil
}

// BeginAttempt moves a job into processing and counts the attempt in one
// statement. Jobs already completed or failed are left untouched and
// ErrJobTerminal is returned.
func (s *Storage) BeginAttempt(ctx context.Context, jobID string) (*domain.ExportJob, error) {
	query := `
		UPDATE export_jobs
		SET status = $1,
		    attempts = attempts + 1,
		    updated_at = NOW()
		WHERE id = $2
		  AND status IN ($3, $4)
		RETURNING id, playlist_id, requester_email, status, attempts, last_error, created_at, updated_at
	`

	var job domain.ExportJob
	err := s.db.GetContext(ctx, &job, query,
		domain.JobStatusProcessing, jobID, domain.JobStatusPending, domain.JobStatusProcessing,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Export job not claimable, already terminal",
				slog.String("job_id", jobID),
			)
			return nil, domain.ErrJobTerminal
		}
		return nil, fmt.Errorf("failed to begin export attempt: %w", err)
	}

	s.logger.Debug("Export attempt started",
		slog.String("job_id", jobID),
		slog.Int("attempts", job.Attempts),
	)

	return &job, nil
}

// MarkCompleted records a successful export
func (s *Storage) MarkCompleted(ctx context.Context, jobID string) error {
	query := `
		UPDATE export_jobs
		SET status = $1,
		    last_error = '',
		    updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	return s.transition(ctx, query, jobID, domain.JobStatusCompleted, jobID, domain.JobStatusProcessing)
}

// MarkFailed records a job as permanently failed with reason
func (s *Storage) MarkFailed(ctx context.Context, jobID, reason string) error {
	query := `
		UPDATE export_jobs
		SET status = $1,
		    last_error = $2,
		    updated_at = NOW()
		WHERE id = $3 AND status IN ($4, $5)
	`

	return s.transition(ctx, query, jobID,
		domain.JobStatusFailed, reason, jobID, domain.JobStatusPending, domain.JobStatusProcessing,
	)
}

// RecordError keeps the latest failure text on a job that will be retried
func (s *Storage) RecordError(ctx context.Context, jobID, reason string) error {
	query := `
		UPDATE export_jobs
		SET last_error = $1,
		    updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	if _, err := s.db.ExecContext(ctx, query, reason, jobID, domain.JobStatusProcessing); err != nil {
		return fmt.Errorf("failed to record export error: %w", err)
	}
	return nil
}

func (s *Storage) transition(ctx context.Context, query, jobID string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update export job status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrJobTerminal
	}

	s.logger.Info("Export job status updated",
		slog.String("job_id", jobID),
		slog.Any("status", args[0]),
	)

	return nil
}

// GetPlaylistExport loads a playlist with its songs. ErrPlaylistNotFound is
// returned when the playlist no longer exists.
func (s *Storage) GetPlaylistExport(ctx context.Context, playlistID string) (*domain.PlaylistExport, error) {
	var playlist domain.ExportedPlaylist
	err := s.db.GetContext(ctx, &playlist, `SELECT id, name FROM playlists WHERE id = $1`, playlistID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPlaylistNotFound
		}
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}

	query := `
		SELECT s.id, s.title, s.performer
		FROM songs s
		JOIN playlist_songs ps ON ps.song_id = s.id
		WHERE ps.playlist_id = $1
		ORDER BY s.title, s.id
	`

	songs := []domain.Song{}
	if err := s.db.SelectContext(ctx, &songs, query, playlistID); err != nil {
		return nil, fmt.Errorf("failed to get playlist songs: %w", err)
	}
	playlist.Songs = songs

	return &domain.PlaylistExport{Playlist: playlist}, nil
}
