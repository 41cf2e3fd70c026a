package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a looked-up row does not exist
var ErrNotFound = errors.New("not found")

// TrackingRepository stores one JSONB document per (patient, condition type)
type TrackingRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewTrackingRepository creates a new TrackingRepository
func NewTrackingRepository(db *pgxpool.Pool, logger *zap.Logger) *TrackingRepository {
	return &TrackingRepository{
		db:     db,
		logger: logger,
	}
}

// FindOne returns the record of a patient for one condition, or ErrNotFound
func (r *TrackingRepository) FindOne(ctx context.Context, patientID string, condition model.ConditionType) (*model.TrackingRecord, error) {
	query := `
		SELECT document, created_at, updated_at
		FROM tracking_records
		WHERE patient_id = $1 AND condition_type = $2
	`

	var doc []byte
	var createdAt, updatedAt time.Time
	err := r.db.QueryRow(ctx, query, patientID, string(condition)).Scan(&doc, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to get tracking record", zap.Error(err),
			zap.String("patient_id", patientID),
			zap.String("condition_type", string(condition)),
		)
		return nil, fmt.Errorf("failed to get tracking record: %w", err)
	}

	return decodeRecord(patientID, condition, doc, createdAt, updatedAt)
}

// FindByPatient returns every record of a patient ordered by condition type
func (r *TrackingRepository) FindByPatient(ctx context.Context, patientID string) ([]model.TrackingRecord, error) {
	query := `
		SELECT condition_type, document, created_at, updated_at
		FROM tracking_records
		WHERE patient_id = $1
		ORDER BY condition_type
	`

	rows, err := r.db.Query(ctx, query, patientID)
	if err != nil {
		r.logger.Error("failed to list tracking records", zap.Error(err), zap.String("patient_id", patientID))
		return nil, fmt.Errorf("failed to list tracking records: %w", err)
	}
	defer rows.Close()

	records := []model.TrackingRecord{}
	for rows.Next() {
		var condition string
		var doc []byte
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&condition, &doc, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tracking record: %w", err)
		}

		record, err := decodeRecord(patientID, model.ConditionType(condition), doc, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tracking records: %w", err)
	}
	return records, nil
}

// Save upserts the whole record. The last write wins.
func (r *TrackingRepository) Save(ctx context.Context, record *model.TrackingRecord) error {
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	doc, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode tracking record: %w", err)
	}

	query := `
		INSERT INTO tracking_records (patient_id, condition_type, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (patient_id, condition_type)
		DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.Exec(ctx, query,
		record.PatientID,
		string(record.ConditionType),
		doc,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to save tracking record", zap.Error(err),
			zap.String("patient_id", record.PatientID),
			zap.String("condition_type", string(record.ConditionType)),
		)
		return fmt.Errorf("failed to save tracking record: %w", err)
	}

	return nil
}

// Delete removes the record of one condition and reports whether it existed
func (r *TrackingRepository) Delete(ctx context.Context, patientID string, condition model.ConditionType) (bool, error) {
	result, err := r.db.Exec(ctx,
		`DELETE FROM tracking_records WHERE patient_id = $1 AND condition_type = $2`,
		patientID, string(condition),
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete tracking record: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// DeleteByPatient removes every tracking record of a patient and returns how many were removed
func (r *TrackingRepository) DeleteByPatient(ctx context.Context, patientID string) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM tracking_records WHERE patient_id = $1`, patientID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tracking records: %w", err)
	}
	return result.RowsAffected(), nil
}

// decodeRecord restores a record from its document. The key columns win over the document.
func decodeRecord(patientID string, condition model.ConditionType, doc []byte, createdAt, updatedAt time.Time) (*model.TrackingRecord, error) {
	var record model.TrackingRecord
	if err := json.Unmarshal(doc, &record); err != nil {
		return nil, fmt.Errorf("failed to decode tracking record: %w", err)
	}

	record.PatientID = patientID
	record.ConditionType = condition
	record.CreatedAt = createdAt
	record.UpdatedAt = updatedAt
	if record.Entries == nil {
		record.Entries = []model.TrackingEntry{}
	}
	if record.Medications == nil {
		record.Medications = []model.Medication{}
	}
	return &record, nil
}
