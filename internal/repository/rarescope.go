package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
	"go.uber.org/zap"
)

// RarescopeRepository stores one questionnaire response per patient
type RarescopeRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewRarescopeRepository creates a new RarescopeRepository
func NewRarescopeRepository(db *pgxpool.Pool, logger *zap.Logger) *RarescopeRepository {
	return &RarescopeRepository{
		db:     db,
		logger: logger,
	}
}

// FindByPatient returns the patient's response, or ErrNotFound
func (r *RarescopeRepository) FindByPatient(ctx context.Context, patientID string) (*model.RarescopeResponse, error) {
	query := `
		SELECT id, patient_id, answers, language, completed_at, created_at, updated_at
		FROM rarescope_responses
		WHERE patient_id = $1
	`

	var resp model.RarescopeResponse
	var answers []byte
	err := r.db.QueryRow(ctx, query, patientID).Scan(
		&resp.ID,
		&resp.PatientID,
		&answers,
		&resp.Language,
		&resp.CompletedAt,
		&resp.CreatedAt,
		&resp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to get rarescope response", zap.Error(err), zap.String("patient_id", patientID))
		return nil, fmt.Errorf("failed to get rarescope response: %w", err)
	}

	if err := json.Unmarshal(answers, &resp.Answers); err != nil {
		return nil, fmt.Errorf("failed to decode rarescope answers: %w", err)
	}
	if resp.Answers == nil {
		resp.Answers = []model.RarescopeAnswer{}
	}

	return &resp, nil
}

// Upsert stores the patient's response, replacing any previous one.
// The stored id and creation time of an existing response are kept.
func (r *RarescopeRepository) Upsert(ctx context.Context, resp *model.RarescopeResponse) error {
	answers, err := json.Marshal(resp.Answers)
	if err != nil {
		return fmt.Errorf("failed to encode rarescope answers: %w", err)
	}

	query := `
		INSERT INTO rarescope_responses (id, patient_id, answers, language, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (patient_id)
		DO UPDATE SET answers = EXCLUDED.answers,
		              language = EXCLUDED.language,
		              completed_at = EXCLUDED.completed_at,
		              updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err = r.db.QueryRow(ctx, query,
		resp.ID,
		resp.PatientID,
		answers,
		resp.Language,
		resp.CompletedAt,
		resp.CreatedAt,
		resp.UpdatedAt,
	).Scan(&resp.ID, &resp.CreatedAt)
	if err != nil {
		r.logger.Error("failed to save rarescope response", zap.Error(err), zap.String("patient_id", resp.PatientID))
		return fmt.Errorf("failed to save rarescope response: %w", err)
	}

	return nil
}

// Delete removes the patient's response
func (r *RarescopeRepository) Delete(ctx context.Context, patientID string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM rarescope_responses WHERE patient_id = $1`, patientID)
	if err != nil {
		r.logger.Error("failed to delete rarescope response", zap.Error(err), zap.String("patient_id", patientID))
		return fmt.Errorf("failed to delete rarescope response: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
