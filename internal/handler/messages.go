package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/rarecare-backend/internal/middleware"
	"github.com/vcscsvcscs/rarecare-backend/internal/service"
	"github.com/vcscsvcscs/rarecare-backend/pkg/api"
	"go.uber.org/zap"
)

const defaultMessageLimit = 100

// MessageHandler implements the patient message thread endpoints
type MessageHandler struct {
	service *service.MessageService
	logger  *zap.Logger
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(service *service.MessageService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{
		service: service,
		logger:  logger,
	}
}

// List returns the newest messages in chronological order
func (h *MessageHandler) List(c *gin.Context) {
	var params api.MessageListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		badRequest(c, "Invalid query parameters", err)
		return
	}
	limit := defaultMessageLimit
	if params.Limit != nil {
		limit = *params.Limit
	}

	messages, err := h.service.List(c.Request.Context(), middleware.PatientID(c), limit)
	if err != nil {
		respondError(c, h.logger, "Failed to list messages", err)
		return
	}
	ok(c, http.StatusOK, api.Envelope{Data: messages})
}

// Create posts a message
func (h *MessageHandler) Create(c *gin.Context) {
	var req api.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	msg, err := h.service.Create(c.Request.Context(), middleware.PatientID(c), req.Role, req.Content)
	if err != nil {
		respondError(c, h.logger, "Failed to create message", err)
		return
	}
	ok(c, http.StatusCreated, api.Envelope{Message: "Message created", Data: msg})
}

// Delete removes a message
func (h *MessageHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.PatientID(c), c.Param("messageId")); err != nil {
		respondError(c, h.logger, "Failed to delete message", err)
		return
	}
	ok(c, http.StatusOK, api.Envelope{Message: "Message deleted"})
}
