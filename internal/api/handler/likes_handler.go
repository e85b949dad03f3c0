package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/openmusic/internal/api/dto"
	"github.com/cuongbtq/openmusic/internal/domain"
	"github.com/cuongbtq/openmusic/internal/likes"
	"github.com/gin-gonic/gin"
)

// DataSourceHeader marks responses served from the cache
const DataSourceHeader = "X-Data-Source"

// GetLikes handles GET /api/v1/albums/:album_id/likes
func (h *LikesHandler) GetLikes(c *gin.Context) {
	albumID := c.Param("album_id")

	count, source, err := h.likes.GetLikes(c.Request.Context(), albumID)
	if err != nil {
		h.logger.Error("Failed to get album likes",
			slog.String("album_id", albumID),
			slog.String("error", err.Error()),
		)
		fail(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
		return
	}

	if source == likes.SourceCache {
		c.Header(DataSourceHeader, string(likes.SourceCache))
	}

	c.JSON(http.StatusOK, dto.Response{
		Status: "success",
		Data:   dto.LikesData{Likes: count},
	})
}

// LikeAlbum handles POST /api/v1/albums/:album_id/likes
func (h *LikesHandler) LikeAlbum(c *gin.Context) {
	albumID := c.Param("album_id")

	err := h.likes.Like(c.Request.Context(), c.GetString(UserIDKey), albumID)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, dto.Response{Status: "success", Message: "Album liked"})
	case errors.Is(err, domain.ErrAlbumNotFound):
		fail(c, http.StatusNotFound, "Album not found")
	case errors.Is(err, domain.ErrAlreadyLiked):
		fail(c, http.StatusBadRequest, "Album already liked")
	default:
		h.logger.Error("Failed to like album",
			slog.String("album_id", albumID),
			slog.String("error", err.Error()),
		)
		fail(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
	}
}

// UnlikeAlbum handles DELETE /api/v1/albums/:album_id/likes
func (h *LikesHandler) UnlikeAlbum(c *gin.Context) {
	albumID := c.Param("album_id")

	if err := h.likes.Unlike(c.Request.Context(), c.GetString(UserIDKey), albumID); err != nil {
		h.logger.Error("Failed to unlike album",
			slog.String("album_id", albumID),
			slog.String("error", err.Error()),
		)
		fail(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
		return
	}

	c.JSON(http.StatusOK, dto.Response{Status: "success", Message: "Album unliked"})
}
