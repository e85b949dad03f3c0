package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cuongbtq/openmusic/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jobColumns = []string{
	"id", "playlist_id", "requester_email", "status",
	"attempts", "last_error", "created_at", "updated_at",
}

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStorage(sqlx.NewDb(db, "postgres")), mock
}

func TestStorage_CreateJob(t *testing.T) {
	s, mock := newMockStorage(t)
	now := time.Now().UTC()
	job := domain.NewExportJob("job-1", "playlist-42", "a@b.com", now)

	mock.ExpectExec("INSERT INTO export_jobs").
		WithArgs("job-1", "playlist-42", "a@b.com", domain.JobStatusPending, 0, "", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.CreateJob(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_CreateJob_Error(t *testing.T) {
	s, mock := newMockStorage(t)
	job := domain.NewExportJob("job-1", "playlist-42", "a@b.com", time.Now())

	mock.ExpectExec("INSERT INTO export_jobs").WillReturnError(sql.ErrConnDone)

	err := s.CreateJob(context.Background(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestStorage_GetJobByID(t *testing.T) {
	s, mock := newMockStorage(t)
	now := time.Now().UTC()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM export_jobs WHERE id = \\$1").
			WithArgs("job-1").
			WillReturnRows(sqlmock.NewRows(jobColumns).
				AddRow("job-1", "playlist-42", "a@b.com", "completed", 1, "", now, now))

		job, err := s.GetJobByID(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusCompleted, job.Status)
		assert.Equal(t, 1, job.Attempts)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM export_jobs").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := s.GetJobByID(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_ListJobs(t *testing.T) {
	s, mock := newMockStorage(t)
	now := time.Now().UTC()
	cursor := &JobCursor{CreatedAt: now, JobID: "job-9"}

	mock.ExpectQuery("AND status = \\$1 AND \\(created_at, id\\) < \\(\\$2, \\$3\\) ORDER BY created_at DESC, id DESC LIMIT \\$4").
		WithArgs("pending", now, "job-9", 3).
		WillReturnRows(sqlmock.NewRows(jobColumns).
			AddRow("job-8", "p", "a@b.com", "pending", 0, "", now, now))

	jobs, err := s.ListJobs(context.Background(), JobFilter{Status: "pending", PageSize: 2, Cursor: cursor})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_ListStalePendingJobs(t *testing.T) {
	s, mock := newMockStorage(t)
	cutoff := time.Now().Add(-10 * time.Minute)

	mock.ExpectQuery("WHERE status = \\$1 AND created_at < \\$2").
		WithArgs(domain.JobStatusPending, cutoff, 50).
		WillReturnRows(sqlmock.NewRows(jobColumns).
			AddRow("job-1", "p", "a@b.com", "pending", 0, "", cutoff, cutoff))

	jobs, err := s.ListStalePendingJobs(context.Background(), cutoff, 50)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "job-1", jobs[0].ID)
}

func TestStorage_GetPlaylistOwner(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectQuery("SELECT owner FROM playlists").
		WithArgs("playlist-1").
		WillReturnRows(sqlmock.NewRows([]string{"owner"}).AddRow("user-1"))
	mock.ExpectQuery("SELECT owner FROM playlists").
		WithArgs("playlist-2").
		WillReturnError(sql.ErrNoRows)

	owner, err := s.GetPlaylistOwner(context.Background(), "playlist-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", owner)

	_, err = s.GetPlaylistOwner(context.Background(), "playlist-2")
	assert.ErrorIs(t, err, domain.ErrPlaylistNotFound)
}

func TestStorage_Likes(t *testing.T) {
	s, mock := newMockStorage(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("album-7").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM user_album_likes").
		WithArgs("album-7").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(15))
	mock.ExpectExec("INSERT INTO user_album_likes").
		WithArgs(sqlmock.AnyArg(), "user-1", "album-7").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_album_likes").
		WithArgs(sqlmock.AnyArg(), "user-1", "album-7").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectExec("DELETE FROM user_album_likes").
		WithArgs("user-1", "album-7").
		WillReturnResult(sqlmock.NewResult(0, 0))

	exists, err := s.AlbumExists(ctx, "album-7")
	require.NoError(t, err)
	assert.True(t, exists)

	count, err := s.CountAlbumLikes(ctx, "album-7")
	require.NoError(t, err)
	assert.Equal(t, 15, count)

	require.NoError(t, s.AddLike(ctx, "user-1", "album-7"))

	err = s.AddLike(ctx, "user-1", "album-7")
	assert.True(t, errors.Is(err, domain.ErrAlreadyLiked))

	assert.NoError(t, s.RemoveLike(ctx, "user-1", "album-7"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobCursor_RoundTrip(t *testing.T) {
	cursor := &JobCursor{CreatedAt: time.Unix(1700000000, 123).UTC(), JobID: "job-1"}

	decoded, err := DecodeJobCursor(EncodeJobCursor(cursor))
	require.NoError(t, err)
	assert.Equal(t, cursor, decoded)

	empty, err := DecodeJobCursor("")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = DecodeJobCursor("!!!")
	assert.Error(t, err)
}
