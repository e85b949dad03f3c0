package router

import (
	"github.com/cuongbtq/openmusic/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	healthHandler := handler.NewHealthHandler(deps)
	exportHandler := handler.NewExportHandler(deps)
	likesHandler := handler.NewLikesHandler(deps)

	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		export := v1.Group("/export")
		{
			// POST /api/v1/export/playlists/:playlist_id - Queue a playlist export
			export.POST("/playlists/:playlist_id", UserIdentityMiddleware(), exportHandler.ExportPlaylist)

			// GET /api/v1/export/jobs - List export jobs
			export.GET("/jobs", exportHandler.ListJobs)

			// GET /api/v1/export/jobs/:job_id - Get export job status
			export.GET("/jobs/:job_id", exportHandler.GetJob)
		}

		albums := v1.Group("/albums")
		{
			// GET /api/v1/albums/:album_id/likes - Like count, cache-aside
			albums.GET("/:album_id/likes", likesHandler.GetLikes)

			// POST /api/v1/albums/:album_id/likes - Like an album
			albums.POST("/:album_id/likes", UserIdentityMiddleware(), likesHandler.LikeAlbum)

			// DELETE /api/v1/albums/:album_id/likes - Unlike an album
			albums.DELETE("/:album_id/likes", UserIdentityMiddleware(), likesHandler.UnlikeAlbum)
		}
	}

	return r
}
