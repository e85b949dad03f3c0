package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/openmusic/internal/api/dto"
	"github.com/cuongbtq/openmusic/internal/api/storage"
	"github.com/cuongbtq/openmusic/internal/domain"
	"github.com/cuongbtq/openmusic/internal/likes"
	"github.com/gin-gonic/gin"
)

// UserIDKey is the gin context key holding the caller's user id
const UserIDKey = "user_id"

// Exporter submits playlist export jobs
type Exporter interface {
	Submit(ctx context.Context, playlistID, requesterEmail string) (string, error)
}

// Catalog answers the ownership and job lookups handlers need
type Catalog interface {
	GetPlaylistOwner(ctx context.Context, playlistID string) (string, error)
	GetJobByID(ctx context.Context, jobID string) (*domain.ExportJob, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]domain.ExportJob, error)
}

// LikesService serves album like counts
type LikesService interface {
	GetLikes(ctx context.Context, albumID string) (int, likes.Source, error)
	Like(ctx context.Context, userID, albumID string) error
	Unlike(ctx context.Context, userID, albumID string) error
}

// HealthChecker reports whether a backing service is usable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// BrokerStatus reports the broker connection state
type BrokerStatus interface {
	IsConnected() bool
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	ServiceName string
	Exporter    Exporter
	Catalog     Catalog
	Likes       LikesService
	DB          HealthChecker
	Broker      BrokerStatus
}

// ExportHandler handles export-related HTTP requests
type ExportHandler struct {
	logger   *slog.Logger
	exporter Exporter
	catalog  Catalog
}

// NewExportHandler creates a new ExportHandler instance
func NewExportHandler(deps *Dependencies) *ExportHandler {
	return &ExportHandler{
		logger:   deps.Logger,
		exporter: deps.Exporter,
		catalog:  deps.Catalog,
	}
}

// LikesHandler handles album like requests
type LikesHandler struct {
	logger *slog.Logger
	likes  LikesService
}

// NewLikesHandler creates a new LikesHandler instance
func NewLikesHandler(deps *Dependencies) *LikesHandler {
	return &LikesHandler{
		logger: deps.Logger,
		likes:  deps.Likes,
	}
}

// HealthHandler reports service health
type HealthHandler struct {
	serviceName string
	db          HealthChecker
	broker      BrokerStatus
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(deps *Dependencies) *HealthHandler {
	return &HealthHandler{
		serviceName: deps.ServiceName,
		db:          deps.DB,
		broker:      deps.Broker,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"database": "ok", "rabbitmq": "ok"}
	healthy := true

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		}
	}
	if h.broker != nil && !h.broker.IsConnected() {
		checks["rabbitmq"] = "disconnected"
		healthy = false
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":  status,
		"service": h.serviceName,
		"checks":  checks,
	})
}

func fail(c *gin.Context, code int, message string) {
	status := "fail"
	if code >= http.StatusInternalServerError {
		status = "error"
	}
	c.JSON(code, dto.Response{Status: status, Message: message})
}
