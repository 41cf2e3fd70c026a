package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/rarecare-backend/internal/middleware"
	"github.com/vcscsvcscs/rarecare-backend/internal/service"
	"github.com/vcscsvcscs/rarecare-backend/pkg/api"
	"go.uber.org/zap"
)

// PatientHandler implements the patient-wide erasure and portability endpoints
type PatientHandler struct {
	service *service.PatientDataService
	logger  *zap.Logger
}

// NewPatientHandler creates a new PatientHandler
func NewPatientHandler(service *service.PatientDataService, logger *zap.Logger) *PatientHandler {
	return &PatientHandler{
		service: service,
		logger:  logger,
	}
}

// DeleteData handles patient data deletion requests (right to be forgotten)
// DELETE /api/v1/patients/:patientToken
func (h *PatientHandler) DeleteData(c *gin.Context) {
	patientID := middleware.PatientID(c)

	h.logger.Info("processing patient data deletion request",
		zap.String("patient_id", patientID),
		zap.String("ip", c.ClientIP()),
	)

	result, err := h.service.DeletePatientData(c.Request.Context(), patientID)
	if err != nil {
		respondError(c, h.logger, "Failed to delete patient data", err)
		return
	}

	ok(c, http.StatusOK, api.Envelope{
		Message: "Patient data deleted successfully",
		Data: api.DeletionResponse{
			PatientID: stringToUUID(patientID),
			Deleted: map[string]int64{
				"tracking_records":    result.TrackingRecords,
				"notes":               result.Notes,
				"messages":            result.Messages,
				"rarescope_responses": result.RarescopeResponses,
				"archived_imports":    int64(result.ArchivedImports),
			},
		},
	})
}

// ExportData handles patient data export requests (right to data portability)
// GET /api/v1/patients/:patientToken/export
func (h *PatientHandler) ExportData(c *gin.Context) {
	patientID := middleware.PatientID(c)

	jsonData, err := h.service.ExportPatientDataJSON(c.Request.Context(), patientID)
	if err != nil {
		respondError(c, h.logger, "Failed to export patient data", err)
		return
	}

	h.logger.Info("patient data exported",
		zap.String("patient_id", patientID),
		zap.Int("data_size_bytes", len(jsonData)),
	)

	// Return JSON file as download
	filename := fmt.Sprintf("patient_data_%s.json", patientID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/json", jsonData)
}
