package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vcscsvcscs/rarecare-backend/internal/audit"
	"github.com/vcscsvcscs/rarecare-backend/internal/azure"
	"github.com/vcscsvcscs/rarecare-backend/internal/cache"
	"github.com/vcscsvcscs/rarecare-backend/internal/repository"
	"github.com/vcscsvcscs/rarecare-backend/internal/tracking"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
	"go.uber.org/zap"
)

// TrackingRepositoryInterface defines the interface for tracking record storage
type TrackingRepositoryInterface interface {
	FindOne(ctx context.Context, patientID string, condition model.ConditionType) (*model.TrackingRecord, error)
	FindByPatient(ctx context.Context, patientID string) ([]model.TrackingRecord, error)
	Save(ctx context.Context, record *model.TrackingRecord) error
	Delete(ctx context.Context, patientID string, condition model.ConditionType) (bool, error)
	DeleteByPatient(ctx context.Context, patientID string) (int64, error)
}

// AuditLogger records the audit trail
type AuditLogger interface {
	Log(ctx context.Context, entry audit.Entry) error
}

// TrackingService handles imports, manual entries, statistics and insights of tracking records.
// Every mutation is a read-modify-write of the whole record; concurrent writers to the
// same (patient, condition) record race and the last save wins.
type TrackingService struct {
	repo       TrackingRepositoryInterface
	cache      cache.StatsCache
	archive    azure.ImportArchive
	generator  *InsightGenerator
	audit      AuditLogger
	insightTTL time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NewTrackingService creates a new TrackingService. archive may be nil to skip archiving raw imports.
func NewTrackingService(
	repo TrackingRepositoryInterface,
	statsCache cache.StatsCache,
	archive azure.ImportArchive,
	generator *InsightGenerator,
	auditLogger AuditLogger,
	insightTTL time.Duration,
	logger *zap.Logger,
) *TrackingService {
	if statsCache == nil {
		statsCache = cache.NopStatsCache{}
	}
	return &TrackingService{
		repo:       repo,
		cache:      statsCache,
		archive:    archive,
		generator:  generator,
		audit:      auditLogger,
		insightTTL: insightTTL,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// RecordSummary pairs a record with its statistics
type RecordSummary struct {
	Record *model.TrackingRecord
	Stats  model.Statistics
}

// ImportRequest is a raw import for one (patient, condition)
type ImportRequest struct {
	PatientID string
	Condition model.ConditionType
	Raw       []byte
	Filename  string
	Hint      string
}

// ImportResult is the record after an import and what the import changed
type ImportResult struct {
	Record *model.TrackingRecord
	tracking.MergeResult
}

// InsightsResult is a generated or cached insight set
type InsightsResult struct {
	Insights    []model.Insight
	Source      model.InsightSource
	Language    string
	GeneratedAt time.Time
	Cached      bool
}

// GetRecord returns the record of a (patient, condition) pair
func (s *TrackingService) GetRecord(ctx context.Context, patientID string, condition model.ConditionType) (*model.TrackingRecord, error) {
	record, err := s.repo.FindOne(ctx, patientID, condition)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", condition, tracking.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get tracking record: %w", err)
	}
	return record, nil
}

// ListRecords returns every record of a patient with its statistics
func (s *TrackingService) ListRecords(ctx context.Context, patientID string) ([]RecordSummary, error) {
	records, err := s.repo.FindByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracking records: %w", err)
	}

	now := s.now()
	summaries := make([]RecordSummary, 0, len(records))
	for i := range records {
		summaries = append(summaries, RecordSummary{
			Record: &records[i],
			Stats:  tracking.CalculateStatistics(records[i].Entries, now),
		})
	}
	return summaries, nil
}

// Import parses a raw payload, archives it and merges it into the stored record
func (s *TrackingService) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	parsed, err := tracking.ParseImport(req.Raw, req.Hint)
	if err != nil {
		return nil, err
	}
	parsed.PatientID = req.PatientID
	parsed.ConditionType = req.Condition
	parsed.Metadata.OriginalFilename = req.Filename

	if s.archive != nil {
		// best effort
		path, err := s.archive.UploadImport(ctx, req.PatientID, string(req.Condition), req.Filename, req.Raw)
		if err != nil {
			s.logger.Warn("failed to archive raw import",
				zap.Error(err),
				zap.String("patient_id", req.PatientID),
				zap.String("condition_type", string(req.Condition)),
			)
		} else {
			parsed.Metadata.ArchivePath = path
		}
	}

	existing, err := s.findExisting(ctx, req.PatientID, req.Condition)
	if err != nil {
		return nil, err
	}

	record, result := tracking.MergeImport(existing, parsed, s.now())
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save tracking record: %w", err)
	}
	s.invalidate(ctx, req.PatientID, req.Condition)

	s.logger.Info("tracking import merged",
		zap.String("patient_id", req.PatientID),
		zap.String("condition_type", string(req.Condition)),
		zap.String("source", record.Metadata.Source),
		zap.Int("added", result.Added),
		zap.Int("skipped", result.Skipped),
		zap.Int("entry_count", len(record.Entries)),
	)
	s.record(ctx, audit.Entry{
		PatientID:     req.PatientID,
		OperationType: audit.OperationImport,
		ResourceType:  audit.ResourceTrackingRecord,
		ResourceID:    string(req.Condition),
		AdditionalData: map[string]any{
			"source":   record.Metadata.Source,
			"added":    result.Added,
			"skipped":  result.Skipped,
			"created":  result.Created,
			"filename": req.Filename,
		},
	})

	return &ImportResult{Record: record, MergeResult: result}, nil
}

// AddEntry appends a manual entry, creating the record on first use
func (s *TrackingService) AddEntry(ctx context.Context, patientID string, condition model.ConditionType, entry model.TrackingEntry) (*model.TrackingRecord, error) {
	if entry.Date.IsZero() {
		return nil, fmt.Errorf("%w: entry date is required", ErrInvalidInput)
	}
	if entry.Severity != nil && (*entry.Severity < 1 || *entry.Severity > 10) {
		return nil, fmt.Errorf("%w: severity must be between 1 and 10", ErrInvalidInput)
	}
	if entry.Duration != nil && *entry.Duration < 0 {
		return nil, fmt.Errorf("%w: duration must not be negative", ErrInvalidInput)
	}

	record, err := s.findExisting(ctx, patientID, condition)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if record == nil {
		record = &model.TrackingRecord{
			PatientID:     patientID,
			ConditionType: condition,
			Entries:       []model.TrackingEntry{},
			Medications:   []model.Medication{},
			Metadata:      model.ImportMetadata{Source: "manual"},
			CreatedAt:     now,
		}
	}

	if err := tracking.AddEntry(record, entry, now); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save tracking record: %w", err)
	}
	s.invalidate(ctx, patientID, condition)

	s.record(ctx, audit.Entry{
		PatientID:     patientID,
		OperationType: audit.OperationCreate,
		ResourceType:  audit.ResourceTrackingEntry,
		ResourceID:    fmt.Sprintf("%s/%d", condition, entry.Date.UnixMilli()),
	})
	return record, nil
}

// DeleteEntry removes the entry at an exact timestamp
func (s *TrackingService) DeleteEntry(ctx context.Context, patientID string, condition model.ConditionType, ts time.Time) error {
	record, err := s.GetRecord(ctx, patientID, condition)
	if err != nil {
		return err
	}

	if err := tracking.RemoveEntry(record, ts, s.now()); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, record); err != nil {
		return fmt.Errorf("failed to save tracking record: %w", err)
	}
	s.invalidate(ctx, patientID, condition)

	s.record(ctx, audit.Entry{
		PatientID:     patientID,
		OperationType: audit.OperationDelete,
		ResourceType:  audit.ResourceTrackingEntry,
		ResourceID:    fmt.Sprintf("%s/%d", condition, ts.UnixMilli()),
	})
	return nil
}

// DeleteRange removes entries dated from..to (inclusive calendar days) and returns how many were removed
func (s *TrackingService) DeleteRange(ctx context.Context, patientID string, condition model.ConditionType, from, to time.Time) (int, error) {
	if to.Before(from) {
		return 0, fmt.Errorf("%w: %s is before %s", tracking.ErrInvalidRange, to.Format(time.DateOnly), from.Format(time.DateOnly))
	}

	record, err := s.GetRecord(ctx, patientID, condition)
	if err != nil {
		return 0, err
	}

	removed := tracking.RemoveRange(record, from, to, s.now())
	if removed == 0 {
		return 0, nil
	}
	if err := s.repo.Save(ctx, record); err != nil {
		return 0, fmt.Errorf("failed to save tracking record: %w", err)
	}
	s.invalidate(ctx, patientID, condition)

	s.record(ctx, audit.Entry{
		PatientID:     patientID,
		OperationType: audit.OperationDelete,
		ResourceType:  audit.ResourceTrackingEntry,
		ResourceID:    string(condition),
		AdditionalData: map[string]any{
			"from":    from.Format(time.DateOnly),
			"to":      to.Format(time.DateOnly),
			"removed": removed,
		},
	})
	return removed, nil
}

// DeleteRecord removes the record of a (patient, condition) pair
func (s *TrackingService) DeleteRecord(ctx context.Context, patientID string, condition model.ConditionType) error {
	deleted, err := s.repo.Delete(ctx, patientID, condition)
	if err != nil {
		return fmt.Errorf("failed to delete tracking record: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%s: %w", condition, tracking.ErrRecordNotFound)
	}
	s.invalidate(ctx, patientID, condition)

	s.record(ctx, audit.Entry{
		PatientID:     patientID,
		OperationType: audit.OperationDelete,
		ResourceType:  audit.ResourceTrackingRecord,
		ResourceID:    string(condition),
	})
	return nil
}

// DeletePatientRecords removes every tracking record of a patient
func (s *TrackingService) DeletePatientRecords(ctx context.Context, patientID string) (int64, error) {
	n, err := s.repo.DeleteByPatient(ctx, patientID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tracking records: %w", err)
	}
	s.invalidate(ctx, patientID)

	s.record(ctx, audit.Entry{
		PatientID:      patientID,
		OperationType:  audit.OperationDelete,
		ResourceType:   audit.ResourceTrackingRecord,
		ResourceID:     "*",
		AdditionalData: map[string]any{"deleted": n},
	})
	return n, nil
}

// Statistics returns the statistics of a record, served from the cache when possible
func (s *TrackingService) Statistics(ctx context.Context, patientID string, condition model.ConditionType) (model.Statistics, error) {
	cached, err := s.cache.Get(ctx, patientID, condition)
	if err == nil {
		return *cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("statistics cache unavailable", zap.Error(err))
	}

	record, err := s.GetRecord(ctx, patientID, condition)
	if err != nil {
		return model.Statistics{}, err
	}

	stats := tracking.CalculateStatistics(record.Entries, s.now())
	if err := s.cache.Set(ctx, patientID, condition, stats); err != nil {
		s.logger.Warn("failed to cache statistics", zap.Error(err))
	}
	return stats, nil
}

// GenerateInsights returns insights for a record, reusing a fresh cached set in the same
// language unless refresh is set. New insights are stored on the record.
func (s *TrackingService) GenerateInsights(ctx context.Context, patientID string, condition model.ConditionType, lang string, refresh bool) (*InsightsResult, error) {
	lang = tracking.NormalizeLanguage(lang)

	record, err := s.GetRecord(ctx, patientID, condition)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !refresh && tracking.InsightsFresh(record, now, s.insightTTL, lang) {
		return &InsightsResult{
			Insights:    record.Insights,
			Source:      record.InsightsSource,
			Language:    lang,
			GeneratedAt: *record.InsightsGeneratedAt,
			Cached:      true,
		}, nil
	}

	stats := tracking.CalculateStatistics(record.Entries, now)
	insights, source := s.generator.Generate(ctx, record, stats, lang)

	record.Insights = insights
	record.InsightsGeneratedAt = &now
	record.InsightsLanguage = lang
	record.InsightsSource = source
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save insights: %w", err)
	}

	s.logger.Info("insights generated",
		zap.String("patient_id", patientID),
		zap.String("condition_type", string(condition)),
		zap.String("source", string(source)),
		zap.String("language", lang),
		zap.Int("insight_count", len(insights)),
	)

	return &InsightsResult{
		Insights:    insights,
		Source:      source,
		Language:    lang,
		GeneratedAt: now,
	}, nil
}

// OriginalImport returns the archived raw payload of the last import and its original filename
func (s *TrackingService) OriginalImport(ctx context.Context, patientID string, condition model.ConditionType) ([]byte, string, error) {
	record, err := s.GetRecord(ctx, patientID, condition)
	if err != nil {
		return nil, "", err
	}
	if s.archive == nil || record.Metadata.ArchivePath == "" {
		return nil, "", ErrNoArchive
	}

	data, err := s.archive.DownloadImport(ctx, record.Metadata.ArchivePath)
	if err != nil {
		if errors.Is(err, azure.ErrBlobNotFound) {
			return nil, "", fmt.Errorf("%w: %v", ErrNoArchive, err)
		}
		return nil, "", fmt.Errorf("failed to download archived import: %w", err)
	}

	filename := record.Metadata.OriginalFilename
	if filename == "" {
		filename = fmt.Sprintf("%s-import.json", condition)
	}
	return data, filename, nil
}

// findExisting returns the stored record, or nil when there is none yet
func (s *TrackingService) findExisting(ctx context.Context, patientID string, condition model.ConditionType) (*model.TrackingRecord, error) {
	record, err := s.repo.FindOne(ctx, patientID, condition)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tracking record: %w", err)
	}
	return record, nil
}

func (s *TrackingService) invalidate(ctx context.Context, patientID string, conditions ...model.ConditionType) {
	if err := s.cache.Invalidate(ctx, patientID, conditions...); err != nil {
		s.logger.Warn("failed to invalidate statistics cache",
			zap.Error(err),
			zap.String("patient_id", patientID),
		)
	}
}

func (s *TrackingService) record(ctx context.Context, entry audit.Entry) {
	logAudit(ctx, s.audit, s.logger, entry)
}
