package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vcscsvcscs/rarecare-backend/internal/audit"
	"github.com/vcscsvcscs/rarecare-backend/internal/azure"
	"github.com/vcscsvcscs/rarecare-backend/internal/cache"
	"github.com/vcscsvcscs/rarecare-backend/internal/repository"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
	"go.uber.org/zap"
)

const exportAuditLimit = 1000

// PatientDataRepositoryInterface deletes everything stored for a patient
type PatientDataRepositoryInterface interface {
	DeleteAll(ctx context.Context, patientID string) (repository.DeletionCounts, error)
}

// AuditHistory reads a patient's audit trail
type AuditHistory interface {
	ForPatient(ctx context.Context, patientID string, limit int) ([]audit.Entry, error)
}

// PatientDataService handles the right to erasure and the right to data portability
type PatientDataService struct {
	data      PatientDataRepositoryInterface
	tracking  TrackingRepositoryInterface
	notes     NoteRepositoryInterface
	messages  MessageRepositoryInterface
	rarescope RarescopeRepositoryInterface
	archive   azure.ImportArchive
	cache     cache.StatsCache
	audit     AuditLogger
	history   AuditHistory
	logger    *zap.Logger
}

// PatientDataStores groups the stores read and cleared by PatientDataService
type PatientDataStores struct {
	Data      PatientDataRepositoryInterface
	Tracking  TrackingRepositoryInterface
	Notes     NoteRepositoryInterface
	Messages  MessageRepositoryInterface
	Rarescope RarescopeRepositoryInterface
}

// NewPatientDataService creates a new PatientDataService. archive, statsCache and history may be nil.
func NewPatientDataService(
	stores PatientDataStores,
	archive azure.ImportArchive,
	statsCache cache.StatsCache,
	auditLogger AuditLogger,
	history AuditHistory,
	logger *zap.Logger,
) *PatientDataService {
	if statsCache == nil {
		statsCache = cache.NopStatsCache{}
	}
	return &PatientDataService{
		data:      stores.Data,
		tracking:  stores.Tracking,
		notes:     stores.Notes,
		messages:  stores.Messages,
		rarescope: stores.Rarescope,
		archive:   archive,
		cache:     statsCache,
		audit:     auditLogger,
		history:   history,
		logger:    logger,
	}
}

// DeletionResult reports what a patient-wide delete removed
type DeletionResult struct {
	repository.DeletionCounts
	ArchivedImports int `json:"archived_imports"`
}

// DeletePatientData removes all data of a patient. Rows are deleted in one transaction;
// archived imports and cached statistics are cleared afterwards. The audit trail is kept.
func (s *PatientDataService) DeletePatientData(ctx context.Context, patientID string) (*DeletionResult, error) {
	s.logger.Info("Starting patient data deletion", zap.String("patient_id", patientID))

	counts, err := s.data.DeleteAll(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete patient data: %w", err)
	}
	result := &DeletionResult{DeletionCounts: counts}

	if s.archive != nil {
		n, err := s.archive.DeletePatientImports(ctx, patientID)
		if err != nil {
			s.logger.Error("Failed to delete archived imports", zap.Error(err), zap.String("patient_id", patientID))
		}
		result.ArchivedImports = n
	}

	if err := s.cache.Invalidate(ctx, patientID); err != nil {
		s.logger.Warn("failed to invalidate statistics cache", zap.Error(err), zap.String("patient_id", patientID))
	}

	logAudit(ctx, s.audit, s.logger, audit.Entry{
		PatientID:     patientID,
		OperationType: audit.OperationDelete,
		ResourceType:  audit.ResourcePatient,
		ResourceID:    patientID,
		AdditionalData: map[string]any{
			"tracking_records":    counts.TrackingRecords,
			"notes":               counts.Notes,
			"messages":            counts.Messages,
			"rarescope_responses": counts.RarescopeResponses,
			"archived_imports":    result.ArchivedImports,
		},
	})

	s.logger.Info("Patient data deletion completed",
		zap.String("patient_id", patientID),
		zap.Int64("rows", counts.Total()),
	)
	return result, nil
}

// AuditRecord is an audit entry in an export bundle
type AuditRecord struct {
	OperationType  audit.OperationType `json:"operation_type"`
	ResourceType   audit.ResourceType  `json:"resource_type"`
	ResourceID     string              `json:"resource_id,omitempty"`
	Timestamp      time.Time           `json:"timestamp"`
	AdditionalData map[string]any      `json:"additional_data,omitempty"`
}

// PatientDataExport represents all data of a patient for export
type PatientDataExport struct {
	PatientID       string                   `json:"patient_id"`
	TrackingRecords []model.TrackingRecord   `json:"tracking_records"`
	Notes           []model.Note             `json:"notes"`
	Messages        []model.Message          `json:"messages"`
	Rarescope       *model.RarescopeResponse `json:"rarescope,omitempty"`
	AuditLog        []AuditRecord            `json:"audit_log"`
	ExportedAt      time.Time                `json:"exported_at"`
}

// ExportPatientData collects all data of a patient into one bundle
func (s *PatientDataService) ExportPatientData(ctx context.Context, patientID string) (*PatientDataExport, error) {
	export := &PatientDataExport{
		PatientID:  patientID,
		AuditLog:   []AuditRecord{},
		ExportedAt: time.Now().UTC(),
	}

	var err error
	if export.TrackingRecords, err = s.tracking.FindByPatient(ctx, patientID); err != nil {
		return nil, fmt.Errorf("failed to export tracking records: %w", err)
	}
	if export.Notes, err = s.notes.FindByPatient(ctx, patientID); err != nil {
		return nil, fmt.Errorf("failed to export notes: %w", err)
	}
	if export.Messages, err = s.messages.FindByPatient(ctx, patientID, 0); err != nil {
		return nil, fmt.Errorf("failed to export messages: %w", err)
	}

	rarescope, err := s.rarescope.FindByPatient(ctx, patientID)
	switch {
	case err == nil:
		export.Rarescope = rarescope
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to export rarescope response: %w", err)
	}

	if s.history != nil {
		entries, err := s.history.ForPatient(ctx, patientID, exportAuditLimit)
		if err != nil {
			s.logger.Error("Failed to read audit log for export", zap.Error(err), zap.String("patient_id", patientID))
		}
		for _, e := range entries {
			export.AuditLog = append(export.AuditLog, AuditRecord{
				OperationType:  e.OperationType,
				ResourceType:   e.ResourceType,
				ResourceID:     e.ResourceID,
				Timestamp:      e.Timestamp,
				AdditionalData: e.AdditionalData,
			})
		}
	}

	logAudit(ctx, s.audit, s.logger, audit.Entry{
		PatientID:     patientID,
		OperationType: audit.OperationExport,
		ResourceType:  audit.ResourcePatient,
		ResourceID:    patientID,
	})

	s.logger.Info("Patient data export completed",
		zap.String("patient_id", patientID),
		zap.Int("tracking_records", len(export.TrackingRecords)),
		zap.Int("notes", len(export.Notes)),
		zap.Int("messages", len(export.Messages)),
	)
	return export, nil
}

// ExportPatientDataJSON returns the export bundle as indented JSON
func (s *PatientDataService) ExportPatientDataJSON(ctx context.Context, patientID string) ([]byte, error) {
	export, err := s.ExportPatientData(ctx, patientID)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}
	return data, nil
}
