package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
	"go.uber.org/zap"
)

// NoteRepository manages patient notes
type NoteRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewNoteRepository creates a new NoteRepository
func NewNoteRepository(db *pgxpool.Pool, logger *zap.Logger) *NoteRepository {
	return &NoteRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a note
func (r *NoteRepository) Create(ctx context.Context, note *model.Note) error {
	query := `
		INSERT INTO notes (id, patient_id, title, content, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		note.ID,
		note.PatientID,
		note.Title,
		note.Content,
		note.Tags,
		note.CreatedAt,
		note.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to create note", zap.Error(err), zap.String("note_id", note.ID))
		return fmt.Errorf("failed to create note: %w", err)
	}

	return nil
}

// FindByPatient lists a patient's notes, newest first
func (r *NoteRepository) FindByPatient(ctx context.Context, patientID string) ([]model.Note, error) {
	query := `
		SELECT id, patient_id, title, content, tags, created_at, updated_at
		FROM notes
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, patientID)
	if err != nil {
		r.logger.Error("failed to list notes", zap.Error(err), zap.String("patient_id", patientID))
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := []model.Note{}
	for rows.Next() {
		var note model.Note
		if err := rows.Scan(
			&note.ID,
			&note.PatientID,
			&note.Title,
			&note.Content,
			&note.Tags,
			&note.CreatedAt,
			&note.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return notes, nil
}

// FindByID returns one note of a patient, or ErrNotFound
func (r *NoteRepository) FindByID(ctx context.Context, patientID, noteID string) (*model.Note, error) {
	query := `
		SELECT id, patient_id, title, content, tags, created_at, updated_at
		FROM notes
		WHERE id = $1 AND patient_id = $2
	`

	var note model.Note
	err := r.db.QueryRow(ctx, query, noteID, patientID).Scan(
		&note.ID,
		&note.PatientID,
		&note.Title,
		&note.Content,
		&note.Tags,
		&note.CreatedAt,
		&note.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to get note", zap.Error(err), zap.String("note_id", noteID))
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	return &note, nil
}

// Update overwrites the title, content and tags of a note
func (r *NoteRepository) Update(ctx context.Context, note *model.Note) error {
	query := `
		UPDATE notes
		SET title = $1, content = $2, tags = $3, updated_at = $4
		WHERE id = $5 AND patient_id = $6
	`

	result, err := r.db.Exec(ctx, query,
		note.Title,
		note.Content,
		note.Tags,
		note.UpdatedAt,
		note.ID,
		note.PatientID,
	)
	if err != nil {
		r.logger.Error("failed to update note", zap.Error(err), zap.String("note_id", note.ID))
		return fmt.Errorf("failed to update note: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes one note of a patient
func (r *NoteRepository) Delete(ctx context.Context, patientID, noteID string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM notes WHERE id = $1 AND patient_id = $2`, noteID, patientID)
	if err != nil {
		r.logger.Error("failed to delete note", zap.Error(err), zap.String("note_id", noteID))
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
