package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/openmusic/internal/api/dto"
	"github.com/cuongbtq/openmusic/internal/api/storage"
	"github.com/cuongbtq/openmusic/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ExportPlaylist handles POST /api/v1/export/playlists/:playlist_id
// Queues an export of the playlist to the given email address
func (h *ExportHandler) ExportPlaylist(c *gin.Context) {
	playlistID := c.Param("playlist_id")
	userID := c.GetString(UserIDKey)

	h.logger.Info("ExportPlaylist called",
		slog.String("playlist_id", playlistID),
		slog.String("user_id", userID),
	)

	var req dto.ExportPlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid export request body", slog.String("error", err.Error()))
		fail(c, http.StatusBadRequest, "targetEmail must be a valid email address")
		return
	}

	owner, err := h.catalog.GetPlaylistOwner(c.Request.Context(), playlistID)
	if err != nil {
		if errors.Is(err, domain.ErrPlaylistNotFound) {
			fail(c, http.StatusNotFound, "Playlist not found")
			return
		}
		h.logger.Error("Failed to look up playlist", slog.String("error", err.Error()))
		fail(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
		return
	}

	if owner != userID {
		fail(c, http.StatusForbidden, "You are not entitled to access this resource")
		return
	}

	jobID, err := h.exporter.Submit(c.Request.Context(), playlistID, req.TargetEmail)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidExportRequest):
		fail(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, domain.ErrQueueUnavailable):
		c.JSON(http.StatusServiceUnavailable, dto.Response{
			Status:  "error",
			Message: "Export recorded but could not be queued, it will be retried",
			Data:    dto.ExportAcceptedData{JobID: jobID},
		})
		return
	default:
		h.logger.Error("Failed to submit export", slog.String("error", err.Error()))
		fail(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
		return
	}

	c.JSON(http.StatusCreated, dto.Response{
		Status:  "success",
		Message: "Your export request is being processed",
		Data:    dto.ExportAcceptedData{JobID: jobID},
	})
}

// GetJob handles GET /api/v1/export/jobs/:job_id
func (h *ExportHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		fail(c, http.StatusBadRequest, "job_id must be a valid UUID")
		return
	}

	job, err := h.catalog.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			fail(c, http.StatusNotFound, "Export job not found")
			return
		}
		h.logger.Error("Failed to get export job", slog.String("error", err.Error()))
		fail(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
		return
	}

	c.JSON(http.StatusOK, dto.Response{Status: "success", Data: toJobDTO(job)})
}

// ListJobs handles GET /api/v1/export/jobs
// Lists export jobs with optional status filter and cursor pagination
func (h *ExportHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	if req.Status != "" && !domain.ValidStatus(req.Status) {
		fail(c, http.StatusBadRequest, "Invalid status filter")
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := storage.DecodeJobCursor(req.Cursor)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid cursor")
		return
	}

	jobs, err := h.catalog.ListJobs(c.Request.Context(), storage.JobFilter{
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list export jobs", slog.String("error", err.Error()))
		fail(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	resp := dto.ListJobsResponse{Jobs: make([]dto.JobDTO, len(jobs))}
	for i := range jobs {
		resp.Jobs[i] = toJobDTO(&jobs[i])
	}

	if hasMore {
		last := jobs[len(jobs)-1]
		resp.NextCursor = storage.EncodeJobCursor(&storage.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.ID,
		})
	}

	c.JSON(http.StatusOK, dto.Response{Status: "success", Data: resp})
}

func toJobDTO(job *domain.ExportJob) dto.JobDTO {
	return dto.JobDTO{
		JobID:          job.ID,
		PlaylistID:     job.PlaylistID,
		RequesterEmail: job.RequesterEmail,
		Status:         job.Status,
		Attempts:       job.Attempts,
		LastError:      job.LastError,
		CreatedAt:      job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      job.UpdatedAt.Format(time.RFC3339),
	}
}
