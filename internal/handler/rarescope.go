package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/rarecare-backend/internal/middleware"
	"github.com/vcscsvcscs/rarecare-backend/internal/service"
	"github.com/vcscsvcscs/rarecare-backend/pkg/api"
	"go.uber.org/zap"
)

// RarescopeHandler implements the Rarescope questionnaire endpoints
type RarescopeHandler struct {
	service *service.RarescopeService
	logger  *zap.Logger
}

// NewRarescopeHandler creates a new RarescopeHandler
func NewRarescopeHandler(service *service.RarescopeService, logger *zap.Logger) *RarescopeHandler {
	return &RarescopeHandler{
		service: service,
		logger:  logger,
	}
}

// Questions returns the questionnaire in ?lang or the Accept-Language language
func (h *RarescopeHandler) Questions(c *gin.Context) {
	lang := c.Query("lang")
	if lang == "" {
		lang = c.GetHeader("Accept-Language")
	}
	ok(c, http.StatusOK, api.Envelope{Data: h.service.Questions(lang)})
}

// Get returns the patient's answers
func (h *RarescopeHandler) Get(c *gin.Context) {
	resp, err := h.service.Get(c.Request.Context(), middleware.PatientID(c))
	if err != nil {
		respondError(c, h.logger, "Failed to get rarescope response", err)
		return
	}
	ok(c, http.StatusOK, api.Envelope{Data: resp})
}

// Save stores the patient's answers
func (h *RarescopeHandler) Save(c *gin.Context) {
	var req api.RarescopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	resp, err := h.service.Save(c.Request.Context(), middleware.PatientID(c), req.Answers, req.Language, req.Completed)
	if err != nil {
		respondError(c, h.logger, "Failed to save rarescope response", err)
		return
	}
	ok(c, http.StatusOK, api.Envelope{Message: "Rarescope response saved", Data: resp})
}

// Delete removes the patient's answers
func (h *RarescopeHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.PatientID(c)); err != nil {
		respondError(c, h.logger, "Failed to delete rarescope response", err)
		return
	}
	ok(c, http.StatusOK, api.Envelope{Message: "Rarescope response deleted"})
}
