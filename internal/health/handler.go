// Package health provides service info and health check endpoint handlers.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/code_janitor/internal/database/database"
)

// ServiceName is reported by the info endpoint.
const ServiceName = "SonarQube Code Janitor API"

// Handler handles health check requests.
type Handler struct {
	db      *gorm.DB
	version string
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// New creates a new health handler instance.
func New(db *gorm.DB, version string, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		db:      db,
		version: version,
		logger:  logger,
		now:     time.Now,
	}
}

// Response represents health check response.
type Response struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
}

// InfoResponse represents the service info response.
type InfoResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Metrics string `json:"metrics"`
}

// Info handles GET / request.
func (h *Handler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, InfoResponse{
		Message: ServiceName,
		Version: h.version,
		Metrics: "/metrics",
	})
}

// Check handles GET /health request.
func (h *Handler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	timestamp := h.now().UTC().Format(time.RFC3339)
	if err := database.HealthCheck(ctx, h.db); err != nil {
		h.logger.Warnw("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, Response{
			Status:    "unhealthy",
			Database:  "unreachable",
			Timestamp: timestamp,
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Status:    "healthy",
		Database:  "connected",
		Timestamp: timestamp,
	})
}
