package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime/types"
	"github.com/vcscsvcscs/rarecare-backend/internal/middleware"
	"github.com/vcscsvcscs/rarecare-backend/internal/service"
	"github.com/vcscsvcscs/rarecare-backend/internal/tracking"
	"github.com/vcscsvcscs/rarecare-backend/pkg/api"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
	"go.uber.org/zap"
)

// TrackingHandler implements the condition tracking endpoints
type TrackingHandler struct {
	service        *service.TrackingService
	reports        *service.ReportService
	maxImportBytes int64
	logger         *zap.Logger
}

// NewTrackingHandler creates a new TrackingHandler
func NewTrackingHandler(trackingService *service.TrackingService, reports *service.ReportService, maxImportBytes int64, logger *zap.Logger) *TrackingHandler {
	return &TrackingHandler{
		service:        trackingService,
		reports:        reports,
		maxImportBytes: maxImportBytes,
		logger:         logger,
	}
}

// ListRecords returns every tracking record of the patient with its statistics
func (h *TrackingHandler) ListRecords(c *gin.Context) {
	patientID := middleware.PatientID(c)

	summaries, err := h.service.ListRecords(c.Request.Context(), patientID)
	if err != nil {
		respondError(c, h.logger, "Failed to list tracking records", err)
		return
	}

	data := make([]api.RecordSummary, 0, len(summaries))
	for _, s := range summaries {
		data = append(data, api.RecordSummary{Record: s.Record, Stats: s.Stats})
	}
	ok(c, http.StatusOK, api.Envelope{Data: data})
}

// DeletePatientRecords removes every tracking record of the patient
func (h *TrackingHandler) DeletePatientRecords(c *gin.Context) {
	patientID := middleware.PatientID(c)

	n, err := h.service.DeletePatientRecords(c.Request.Context(), patientID)
	if err != nil {
		respondError(c, h.logger, "Failed to delete tracking records", err)
		return
	}

	ok(c, http.StatusOK, api.Envelope{
		Message: fmt.Sprintf("Deleted %d tracking records", n),
		Data:    gin.H{"deleted": n},
	})
}

// GetRecord returns one tracking record with its statistics
func (h *TrackingHandler) GetRecord(c *gin.Context) {
	condition, valid := conditionParam(c)
	if !valid {
		return
	}
	patientID := middleware.PatientID(c)

	record, err := h.service.GetRecord(c.Request.Context(), patientID, condition)
	if err != nil {
		respondError(c, h.logger, "Failed to get tracking record", err)
		return
	}
	stats, err := h.service.Statistics(c.Request.Context(), patientID, condition)
	if err != nil {
		respondError(c, h.logger, "Failed to calculate statistics", err)
		return
	}

	ok(c, http.StatusOK, api.Envelope{Data: record, Stats: stats})
}

// DeleteRecord removes one tracking record
func (h *TrackingHandler) DeleteRecord(c *gin.Context) {
	condition, valid := conditionParam(c)
	if !valid {
		return
	}

	if err := h.service.DeleteRecord(c.Request.Context(), middleware.PatientID(c), condition); err != nil {
		respondError(c, h.logger, "Failed to delete tracking record", err)
		return
	}

	ok(c, http.StatusOK, api.Envelope{Message: "Tracking record deleted"})
}

// Import accepts a raw JSON document, either as the request body or as a multipart "file" field
func (h *TrackingHandler) Import(c *gin.Context) {
	condition, valid := conditionParam(c)
	if !valid {
		return
	}
	patientID := middleware.PatientID(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxImportBytes)

	raw, filename, err := h.readImport(c)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			c.JSON(http.StatusRequestEntityTooLarge, api.ErrorResponse{
				Code:    api.CodeTooLarge,
				Message: fmt.Sprintf("Import exceeds %d bytes", h.maxImportBytes),
			})
			return
		}
		badRequest(c, "Invalid import", err)
		return
	}
	if !json.Valid(raw) {
		badRequest(c, "Import is not valid JSON", nil)
		return
	}

	result, err := h.service.Import(c.Request.Context(), service.ImportRequest{
		PatientID: patientID,
		Condition: condition,
		Raw:       raw,
		Filename:  filename,
		Hint:      c.Query("source"),
	})
	if err != nil {
		respondError(c, h.logger, "Failed to import tracking data", err)
		return
	}

	h.logger.Info("tracking data imported",
		zap.String("patient_id", patientID),
		zap.String("condition_type", string(condition)),
		zap.Int("added", result.Added),
	)

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	ok(c, status, api.Envelope{
		Message: fmt.Sprintf("Imported %d entries, skipped %d duplicates", result.Added, result.Skipped),
		Data: api.ImportResponse{
			ConditionType: condition,
			Source:        result.Record.Metadata.Source,
			Added:         result.Added,
			Skipped:       result.Skipped,
			Created:       result.Created,
			TotalEntries:  len(result.Record.Entries),
			ArchivePath:   result.Record.Metadata.ArchivePath,
		},
	})
}

func (h *TrackingHandler) readImport(c *gin.Context) ([]byte, string, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return nil, "", fmt.Errorf("multipart field \"file\": %w", err)
		}
		f, err := fileHeader.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		raw, err := io.ReadAll(f)
		return raw, fileHeader.Filename, err
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, "", err
	}
	if len(raw) == 0 {
		return nil, "", errors.New("request body is empty")
	}
	return raw, c.Query("filename"), nil
}

// OriginalImport serves the archived payload of the last import
func (h *TrackingHandler) OriginalImport(c *gin.Context) {
	condition, valid := conditionParam(c)
	if !valid {
		return
	}

	data, filename, err := h.service.OriginalImport(c.Request.Context(), middleware.PatientID(c), condition)
	if err != nil {
		respondError(c, h.logger, "Failed to get original import", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/json", data)
}

// AddEntry appends a manual entry
func (h *TrackingHandler) AddEntry(c *gin.Context) {
	condition, valid := conditionParam(c)
	if !valid {
		return
	}

	var req api.EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	entry, err := entryFromRequest(req)
	if err != nil {
		badRequest(c, "Invalid entry", err)
		return
	}

	record, err := h.service.AddEntry(c.Request.Context(), middleware.PatientID(c), condition, entry)
	if err != nil {
		respondError(c, h.logger, "Failed to add entry", err)
		return
	}

	ok(c, http.StatusCreated, api.Envelope{
		Message: "Entry added",
		Data:    record,
	})
}

func entryFromRequest(req api.EntryRequest) (model.TrackingEntry, error) {
	date, parsed := tracking.ParseDate(req.Date)
	if !parsed {
		return model.TrackingEntry{}, fmt.Errorf("unparseable date %q", req.Date)
	}

	entry := model.TrackingEntry{
		Date:     date,
		Type:     strings.TrimSpace(req.Type),
		Duration: req.Duration,
		Severity: req.Severity,
		Value:    req.Value,
		Triggers: req.Triggers,
		Notes:    req.Notes,
	}
	if entry.Triggers == nil {
		entry.Triggers = []string{}
	}

	for key, value := range req.CustomFields {
		if key == "seizureTracker" {
			var fields model.SeizureTrackerFields
			if err := json.Unmarshal(value, &fields); err != nil {
				return model.TrackingEntry{}, fmt.Errorf("customFields.seizureTracker: %w", err)
			}
			entry.CustomFields.SeizureTracker = &fields
			continue
		}
		if entry.CustomFields.Extra == nil {
			entry.CustomFields.Extra = make(map[string]json.RawMessage)
		}
		entry.CustomFields.Extra[key] = value
	}

	return entry, nil
}

// DeleteEntry removes the entry at :timestamp (epoch milliseconds or RFC 3339)
func (h *TrackingHandler) DeleteEntry(c *gin.Context) {
	condition, valid := conditionParam(c)
	if !valid {
		return
	}

	ts, parsed := tracking.ParseDate(c.Param("timestamp"))
	if !parsed {
		badRequest(c, "Invalid timestamp", fmt.Errorf("unparseable timestamp %q", c.Param("timestamp")))
		return
	}

	if err := h.service.DeleteEntry(c.Request.Context(), middleware.PatientID(c), condition, ts); err != nil {
		respondError(c, h.logger, "Failed to delete entry", err)
		return
	}

	ok(c, http.StatusOK, api.Envelope{Message: "Entry deleted"})
}

// DeleteRange removes every entry dated between ?from and ?to, both inclusive
func (h *TrackingHandler) DeleteRange(c *gin.Context) {
	condition, valid := conditionParam(c)
	if !valid {
		return
	}

	var params api.RangeDeleteParams
	for _, p := range []struct {
		name   string
		target *types.Date
	}{{"from", &params.From}, {"to", &params.To}} {
		value := c.Query(p.name)
		if value == "" {
			badRequest(c, "Missing query parameter "+p.name, nil)
			return
		}
		t, err := time.Parse(types.DateFormat, value)
		if err != nil {
			badRequest(c, "Invalid query parameter "+p.name, err)
			return
		}
		*p.target = timeToDate(t)
	}

	deleted, err := h.service.DeleteRange(c.Request.Context(), middleware.PatientID(c), condition,
		dateToTime(params.From), dateToTime(params.To))
	if err != nil {
		respondError(c, h.logger, "Failed to delete entries", err)
		return
	}

	ok(c, http.StatusOK, api.Envelope{
		Message: fmt.Sprintf("Deleted %d entries", deleted),
		Data: api.RangeDeleteResponse{
			From:    params.From,
			To:      params.To,
			Deleted: deleted,
		},
	})
}

// Statistics returns the statistics of one record
func (h *TrackingHandler) Statistics(c *gin.Context) {
	condition, valid := conditionParam(c)
	if !valid {
		return
	}

	stats, err := h.service.Statistics(c.Request.Context(), middleware.PatientID(c), condition)
	if err != nil {
		respondError(c, h.logger, "Failed to calculate statistics", err)
		return
	}

	ok(c, http.StatusOK, api.Envelope{Stats: stats})
}

// GenerateInsights returns insights for one record, reusing fresh cached ones unless ?refresh=true
func (h *TrackingHandler) GenerateInsights(c *gin.Context) {
	condition, valid := conditionParam(c)
	if !valid {
		return
	}

	var params api.InsightsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		badRequest(c, "Invalid query parameters", err)
		return
	}
	lang := c.GetHeader("Accept-Language")
	if params.Lang != nil {
		lang = *params.Lang
	}
	refresh := params.Refresh != nil && *params.Refresh

	result, err := h.service.GenerateInsights(c.Request.Context(), middleware.PatientID(c), condition, lang, refresh)
	if err != nil {
		respondError(c, h.logger, "Failed to generate insights", err)
		return
	}

	c.JSON(http.StatusOK, api.InsightsResponse{
		Success:     true,
		Insights:    result.Insights,
		Source:      result.Source,
		Language:    result.Language,
		Cached:      result.Cached,
		GeneratedAt: result.GeneratedAt.UTC().Format(time.RFC3339),
	})
}

// ReportPDF downloads the record as a PDF report
func (h *TrackingHandler) ReportPDF(c *gin.Context) {
	condition, valid := conditionParam(c)
	if !valid {
		return
	}

	lang := c.Query("lang")
	if lang == "" {
		lang = c.GetHeader("Accept-Language")
	}

	report, err := h.reports.TrackingPDF(c.Request.Context(), middleware.PatientID(c), condition, lang)
	if err != nil {
		respondError(c, h.logger, "Failed to generate report", err)
		return
	}
	sendReport(c, report)
}

// ExportXLSX downloads the record as a spreadsheet
func (h *TrackingHandler) ExportXLSX(c *gin.Context) {
	condition, valid := conditionParam(c)
	if !valid {
		return
	}

	report, err := h.reports.TrackingXLSX(c.Request.Context(), middleware.PatientID(c), condition)
	if err != nil {
		respondError(c, h.logger, "Failed to export spreadsheet", err)
		return
	}
	sendReport(c, report)
}

func sendReport(c *gin.Context, report *service.Report) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename))
	c.Data(http.StatusOK, report.ContentType, report.Data)
}
