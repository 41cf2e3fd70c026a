package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/rarecare-backend/internal/middleware"
	"github.com/vcscsvcscs/rarecare-backend/internal/service"
	"github.com/vcscsvcscs/rarecare-backend/pkg/api"
	"go.uber.org/zap"
)

// NoteHandler implements the patient note endpoints
type NoteHandler struct {
	service *service.NoteService
	logger  *zap.Logger
}

// NewNoteHandler creates a new NoteHandler
func NewNoteHandler(service *service.NoteService, logger *zap.Logger) *NoteHandler {
	return &NoteHandler{
		service: service,
		logger:  logger,
	}
}

// List returns the patient's notes, newest first
func (h *NoteHandler) List(c *gin.Context) {
	notes, err := h.service.List(c.Request.Context(), middleware.PatientID(c))
	if err != nil {
		respondError(c, h.logger, "Failed to list notes", err)
		return
	}
	ok(c, http.StatusOK, api.Envelope{Data: notes})
}

// Create adds a note
func (h *NoteHandler) Create(c *gin.Context) {
	var req api.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	note, err := h.service.Create(c.Request.Context(), middleware.PatientID(c), req.Title, req.Content, req.Tags)
	if err != nil {
		respondError(c, h.logger, "Failed to create note", err)
		return
	}
	ok(c, http.StatusCreated, api.Envelope{Message: "Note created", Data: note})
}

// Get returns one note
func (h *NoteHandler) Get(c *gin.Context) {
	note, err := h.service.Get(c.Request.Context(), middleware.PatientID(c), c.Param("noteId"))
	if err != nil {
		respondError(c, h.logger, "Failed to get note", err)
		return
	}
	ok(c, http.StatusOK, api.Envelope{Data: note})
}

// Update replaces a note
func (h *NoteHandler) Update(c *gin.Context) {
	var req api.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	note, err := h.service.Update(c.Request.Context(), middleware.PatientID(c), c.Param("noteId"), req.Title, req.Content, req.Tags)
	if err != nil {
		respondError(c, h.logger, "Failed to update note", err)
		return
	}
	ok(c, http.StatusOK, api.Envelope{Message: "Note updated", Data: note})
}

// Delete removes a note
func (h *NoteHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.PatientID(c), c.Param("noteId")); err != nil {
		respondError(c, h.logger, "Failed to delete note", err)
		return
	}
	ok(c, http.StatusOK, api.Envelope{Message: "Note deleted"})
}
