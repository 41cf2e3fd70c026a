package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/rarecare-backend/pkg/api"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// Check probes one dependency
type Check func(ctx context.Context) error

// SystemHandler implements the health check and API description endpoints
type SystemHandler struct {
	database     Check
	cache        Check
	modelEnabled bool
	version      string
	doc          *openapi3.T
	logger       *zap.Logger
}

// NewSystemHandler creates a new SystemHandler. cache may be nil when no cache is configured.
func NewSystemHandler(database, cache Check, modelEnabled bool, version string, doc *openapi3.T, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{
		database:     database,
		cache:        cache,
		modelEnabled: modelEnabled,
		version:      version,
		doc:          doc,
		logger:       logger,
	}
}

// Health reports the state of the service and its dependencies.
// Only the database is required; a failing cache degrades the service.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	resp := api.HealthResponse{
		Status:   "healthy",
		Database: "up",
		Model:    "disabled",
		Service:  "rarecare-backend",
		Version:  h.version,
	}
	status := http.StatusOK

	if err := h.database(ctx); err != nil {
		h.logger.Error("database health check failed", zap.Error(err))
		resp.Status = "unhealthy"
		resp.Database = "down"
		status = http.StatusServiceUnavailable
	}

	if h.cache != nil {
		resp.Cache = "up"
		if err := h.cache(ctx); err != nil {
			h.logger.Warn("cache health check failed", zap.Error(err))
			resp.Cache = "down"
			if status == http.StatusOK {
				resp.Status = "degraded"
			}
		}
	}

	if h.modelEnabled {
		resp.Model = "enabled"
	}

	c.JSON(status, resp)
}

// OpenAPI serves the API description as JSON
func (h *SystemHandler) OpenAPI(c *gin.Context) {
	c.JSON(http.StatusOK, h.doc)
}
