package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DeletionCounts reports how many rows a patient-wide delete removed per table
type DeletionCounts struct {
	TrackingRecords    int64 `json:"tracking_records"`
	Notes              int64 `json:"notes"`
	Messages           int64 `json:"messages"`
	RarescopeResponses int64 `json:"rarescope_responses"`
}

// Total is the number of rows removed
func (c DeletionCounts) Total() int64 {
	return c.TrackingRecords + c.Notes + c.Messages + c.RarescopeResponses
}

// PatientDataRepository performs operations spanning every patient table
type PatientDataRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPatientDataRepository creates a new PatientDataRepository
func NewPatientDataRepository(db *pgxpool.Pool, logger *zap.Logger) *PatientDataRepository {
	return &PatientDataRepository{
		db:     db,
		logger: logger,
	}
}

// DeleteAll removes all data of a patient in one transaction. Audit logs are kept.
func (r *PatientDataRepository) DeleteAll(ctx context.Context, patientID string) (DeletionCounts, error) {
	var counts DeletionCounts

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return counts, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	steps := []struct {
		table string
		count *int64
	}{
		{table: "tracking_records", count: &counts.TrackingRecords},
		{table: "notes", count: &counts.Notes},
		{table: "messages", count: &counts.Messages},
		{table: "rarescope_responses", count: &counts.RarescopeResponses},
	}

	for _, step := range steps {
		result, err := tx.Exec(ctx, "DELETE FROM "+step.table+" WHERE patient_id = $1", patientID)
		if err != nil {
			r.logger.Error("failed to delete patient data", zap.Error(err),
				zap.String("patient_id", patientID),
				zap.String("table", step.table),
			)
			return DeletionCounts{}, fmt.Errorf("failed to delete %s: %w", step.table, err)
		}
		*step.count = result.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return DeletionCounts{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return counts, nil
}
