package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
	"go.uber.org/zap"
)

// MessageRepository manages a patient's message thread
type MessageRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *pgxpool.Pool, logger *zap.Logger) *MessageRepository {
	return &MessageRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a message
func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) error {
	query := `
		INSERT INTO messages (id, patient_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(ctx, query,
		msg.ID,
		msg.PatientID,
		string(msg.Role),
		msg.Content,
		msg.CreatedAt,
	)
	if err != nil {
		r.logger.Error("failed to save message", zap.Error(err), zap.String("message_id", msg.ID))
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

// FindByPatient returns the thread in chronological order. A limit of zero returns everything.
func (r *MessageRepository) FindByPatient(ctx context.Context, patientID string, limit int) ([]model.Message, error) {
	query := `
		SELECT id, patient_id, role, content, created_at
		FROM (
			SELECT id, patient_id, role, content, created_at
			FROM messages
			WHERE patient_id = $1
			ORDER BY created_at DESC
			LIMIT NULLIF($2, 0)
		) latest
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, patientID, limit)
	if err != nil {
		r.logger.Error("failed to list messages", zap.Error(err), zap.String("patient_id", patientID))
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		var msg model.Message
		var role string
		if err := rows.Scan(&msg.ID, &msg.PatientID, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = model.MessageRole(role)
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

// Delete removes one message of a patient
func (r *MessageRepository) Delete(ctx context.Context, patientID, messageID string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM messages WHERE id = $1 AND patient_id = $2`, messageID, patientID)
	if err != nil {
		r.logger.Error("failed to delete message", zap.Error(err), zap.String("message_id", messageID))
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
