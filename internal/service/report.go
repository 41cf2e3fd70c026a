package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vcscsvcscs/rarecare-backend/internal/audit"
	"github.com/vcscsvcscs/rarecare-backend/internal/pdf"
	"github.com/vcscsvcscs/rarecare-backend/internal/spreadsheet"
	"github.com/vcscsvcscs/rarecare-backend/internal/tracking"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
	"go.uber.org/zap"
)

// ReportService renders tracking records as downloadable PDF and XLSX files
type ReportService struct {
	tracking *TrackingService
	pdfGen   *pdf.PDFGenerator
	audit    AuditLogger
	now      func() time.Time
	logger   *zap.Logger
}

// NewReportService creates a new ReportService
func NewReportService(trackingService *TrackingService, pdfGen *pdf.PDFGenerator, auditLogger AuditLogger, logger *zap.Logger) *ReportService {
	return &ReportService{
		tracking: trackingService,
		pdfGen:   pdfGen,
		audit:    auditLogger,
		now:      time.Now,
		logger:   logger,
	}
}

// Report is a rendered file
type Report struct {
	Filename    string
	ContentType string
	Data        []byte
}

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// TrackingPDF renders a record with its statistics and insights as a PDF
func (s *ReportService) TrackingPDF(ctx context.Context, patientID string, condition model.ConditionType, lang string) (*Report, error) {
	lang = tracking.NormalizeLanguage(lang)

	record, stats, err := s.load(ctx, patientID, condition)
	if err != nil {
		return nil, err
	}

	data, err := s.pdfGen.Generate(&pdf.ReportData{
		Record:      record,
		Stats:       stats,
		Insights:    reportInsights(record, stats, lang),
		Language:    lang,
		GeneratedAt: s.now().UTC(),
	})
	if err != nil {
		s.logger.Error("failed to generate PDF",
			zap.Error(err),
			zap.String("patient_id", patientID),
			zap.String("condition_type", string(condition)),
		)
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	s.exported(ctx, patientID, condition, "pdf", len(data))
	return &Report{
		Filename:    s.filename(condition, "pdf"),
		ContentType: ContentTypePDF,
		Data:        data,
	}, nil
}

// TrackingXLSX renders a record with its statistics as a workbook
func (s *ReportService) TrackingXLSX(ctx context.Context, patientID string, condition model.ConditionType) (*Report, error) {
	record, stats, err := s.load(ctx, patientID, condition)
	if err != nil {
		return nil, err
	}

	data, err := spreadsheet.GenerateTrackingWorkbook(record, stats)
	if err != nil {
		s.logger.Error("failed to generate workbook",
			zap.Error(err),
			zap.String("patient_id", patientID),
			zap.String("condition_type", string(condition)),
		)
		return nil, fmt.Errorf("failed to generate workbook: %w", err)
	}

	s.exported(ctx, patientID, condition, "xlsx", len(data))
	return &Report{
		Filename:    s.filename(condition, "xlsx"),
		ContentType: ContentTypeXLSX,
		Data:        data,
	}, nil
}

func (s *ReportService) load(ctx context.Context, patientID string, condition model.ConditionType) (*model.TrackingRecord, model.Statistics, error) {
	record, err := s.tracking.GetRecord(ctx, patientID, condition)
	if err != nil {
		return nil, model.Statistics{}, err
	}
	stats, err := s.tracking.Statistics(ctx, patientID, condition)
	if err != nil {
		return nil, model.Statistics{}, err
	}
	return record, stats, nil
}

func (s *ReportService) filename(condition model.ConditionType, ext string) string {
	return fmt.Sprintf("%s-tracking-%s.%s", condition, s.now().UTC().Format("20060102"), ext)
}

func (s *ReportService) exported(ctx context.Context, patientID string, condition model.ConditionType, format string, size int) {
	s.logger.Info("tracking report generated",
		zap.String("patient_id", patientID),
		zap.String("condition_type", string(condition)),
		zap.String("format", format),
		zap.Int("size_bytes", size),
	)
	logAudit(ctx, s.audit, s.logger, audit.Entry{
		PatientID:      patientID,
		OperationType:  audit.OperationExport,
		ResourceType:   audit.ResourceReport,
		ResourceID:     string(condition),
		AdditionalData: map[string]any{"format": format},
	})
}

// reportInsights reuses stored insights in the report language and otherwise renders the
// deterministic set, so a report never calls the model
func reportInsights(record *model.TrackingRecord, stats model.Statistics, lang string) []model.Insight {
	if len(record.Insights) > 0 && record.InsightsLanguage == lang {
		return record.Insights
	}
	return tracking.FallbackInsights(stats, record.ConditionType, lang)
}
