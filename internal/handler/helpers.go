package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime/types"
	"github.com/vcscsvcscs/rarecare-backend/internal/middleware"
	"github.com/vcscsvcscs/rarecare-backend/internal/service"
	"github.com/vcscsvcscs/rarecare-backend/internal/tracking"
	"github.com/vcscsvcscs/rarecare-backend/pkg/api"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
	"go.uber.org/zap"
)

// Helper functions for type conversions between API types and internal models

// stringPtr creates a pointer to a string
func stringPtr(s string) *string {
	return &s
}

// stringToUUID converts string to types.UUID, the zero UUID when s is not one
func stringToUUID(s string) types.UUID {
	u, err := uuid.Parse(s)
	if err != nil {
		return types.UUID{}
	}
	return types.UUID(u)
}

// dateToTime converts types.Date to time.Time
func dateToTime(d types.Date) time.Time {
	return d.Time
}

// timeToDate converts time.Time to types.Date
func timeToDate(t time.Time) types.Date {
	return types.Date{Time: t}
}

// ok writes a successful envelope
func ok(c *gin.Context, status int, body api.Envelope) {
	body.Success = true
	c.JSON(status, body)
}

// badRequest writes a VALIDATION_ERROR response
func badRequest(c *gin.Context, message string, err error) {
	resp := api.ErrorResponse{
		Code:    api.CodeValidation,
		Message: message,
	}
	if err != nil {
		resp.Details = stringPtr(err.Error())
	}
	c.JSON(http.StatusBadRequest, resp)
}

// respondError maps a service error to a status code and error body. Internal
// errors are logged and their details are not returned to the client.
func respondError(c *gin.Context, logger *zap.Logger, message string, err error) {
	status, code := http.StatusInternalServerError, api.CodeInternal

	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, tracking.ErrUnsupportedFormat),
		errors.Is(err, tracking.ErrInvalidCondition),
		errors.Is(err, tracking.ErrInvalidRange),
		errors.Is(err, service.ErrInvalidInput):
		status, code = http.StatusBadRequest, api.CodeValidation
	case errors.Is(err, tracking.ErrRecordNotFound),
		errors.Is(err, tracking.ErrEntryNotFound),
		errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrNoArchive):
		status, code = http.StatusNotFound, api.CodeNotFound
	case errors.Is(err, tracking.ErrDuplicateEntry):
		status, code = http.StatusConflict, api.CodeConflict
	case errors.As(err, &maxBytesErr):
		status, code = http.StatusRequestEntityTooLarge, api.CodeTooLarge
	}

	resp := api.ErrorResponse{Code: code, Message: message}
	if status == http.StatusInternalServerError {
		logger.Error(message,
			zap.Error(err),
			zap.String("patient_id", middleware.PatientID(c)),
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		)
		_ = c.Error(err)
	} else {
		resp.Details = stringPtr(err.Error())
	}
	c.JSON(status, resp)
}

// conditionParam parses the :condition path parameter, writing a 400 when it is unknown
func conditionParam(c *gin.Context) (model.ConditionType, bool) {
	condition, err := model.ParseConditionType(c.Param("condition"))
	if err != nil {
		badRequest(c, "Unknown condition type", err)
		return "", false
	}
	return condition, true
}
