package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/openmusic/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations
const uniqueViolation = "23505"

// Storage handles the database operations of the API service
type Storage struct {
	db *sqlx.DB
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{
		db: db,
	}
}

// CreateJob inserts a new export job
func (s *Storage) CreateJob(ctx context.Context, job *domain.ExportJob) error {
	query := `
		INSERT INTO export_jobs (
			id, playlist_id, requester_email, status,
			attempts, last_error, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.PlaylistID,
		job.RequesterEmail,
		job.Status,
		job.Attempts,
		job.LastError,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create export job: %w", err)
	}

	return nil
}

// GetJobByID retrieves an export job by its ID
func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*domain.ExportJob, error) {
	var job domain.ExportJob
	query := `
		SELECT
			id, playlist_id, requester_email, status,
			attempts, last_error, created_at, updated_at
		FROM export_jobs
		WHERE id = $1
	`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get export job: %w", err)
	}

	return &job, nil
}

// JobFilter narrows ListJobs
type JobFilter struct {
	Status   string
	PageSize int
	Cursor   *JobCursor
}

// ListJobs lists export jobs newest first. One row more than PageSize is
// fetched so the caller can tell whether another page exists.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]domain.ExportJob, error) {
	query := `
		SELECT
			id, playlist_id, requester_email, status,
			attempts, last_error, created_at, updated_at
		FROM export_jobs
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []domain.ExportJob
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list export jobs: %w", err)
	}

	return jobs, nil
}

// ListStalePendingJobs returns pending jobs created before olderThan, oldest first.
// These are jobs whose publish failed or whose message was lost.
func (s *Storage) ListStalePendingJobs(ctx context.Context, olderThan time.Time, limit int) ([]domain.ExportJob, error) {
	query := `
		SELECT
			id, playlist_id, requester_email, status,
			attempts, last_error, created_at, updated_at
		FROM export_jobs
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3
	`

	var jobs []domain.ExportJob
	if err := s.db.SelectContext(ctx, &jobs, query, domain.JobStatusPending, olderThan, limit); err != nil {
		return nil, fmt.Errorf("failed to list stale pending jobs: %w", err)
	}

	return jobs, nil
}

// GetPlaylistOwner returns the owner of a playlist
func (s *Storage) GetPlaylistOwner(ctx context.Context, playlistID string) (string, error) {
	var owner string
	err := s.db.GetContext(ctx, &owner, `SELECT owner FROM playlists WHERE id = $1`, playlistID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrPlaylistNotFound
		}
		return "", fmt.Errorf("failed to get playlist owner: %w", err)
	}

	return owner, nil
}

// AlbumExists reports whether the album exists
func (s *Storage) AlbumExists(ctx context.Context, albumID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM albums WHERE id = $1)`, albumID)
	if err != nil {
		return false, fmt.Errorf("failed to check album: %w", err)
	}

	return exists, nil
}

// CountAlbumLikes returns the number of likes of an album
func (s *Storage) CountAlbumLikes(ctx context.Context, albumID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM user_album_likes WHERE album_id = $1`, albumID)
	if err != nil {
		return 0, fmt.Errorf("failed to count album likes: %w", err)
	}

	return count, nil
}

// AddLike records that userID likes albumID
func (s *Storage) AddLike(ctx context.Context, userID, albumID string) error {
	query := `
		INSERT INTO user_album_likes (id, user_id, album_id)
		VALUES ($1, $2, $3)
	`

	_, err := s.db.ExecContext(ctx, query, "like-"+uuid.NewString(), userID, albumID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrAlreadyLiked
		}
		return fmt.Errorf("failed to add like: %w", err)
	}

	return nil
}

// RemoveLike deletes the like of userID on albumID. Removing a missing like is not an error.
func (s *Storage) RemoveLike(ctx context.Context, userID, albumID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_album_likes WHERE user_id = $1 AND album_id = $2`,
		userID, albumID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove like: %w", err)
	}

	return nil
}
