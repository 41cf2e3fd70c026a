package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/rarecare-backend/internal/audit"
	"github.com/vcscsvcscs/rarecare-backend/internal/repository"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
	"go.uber.org/zap"
)

const maxMessageLength = 4000

// MessageRepositoryInterface defines the interface for message storage
type MessageRepositoryInterface interface {
	Create(ctx context.Context, msg *model.Message) error
	FindByPatient(ctx context.Context, patientID string, limit int) ([]model.Message, error)
	Delete(ctx context.Context, patientID, messageID string) error
}

// MessageService handles a patient's message thread
type MessageService struct {
	repo   MessageRepositoryInterface
	audit  AuditLogger
	logger *zap.Logger
}

// NewMessageService creates a new MessageService
func NewMessageService(repo MessageRepositoryInterface, auditLogger AuditLogger, logger *zap.Logger) *MessageService {
	return &MessageService{
		repo:   repo,
		audit:  auditLogger,
		logger: logger,
	}
}

// Create posts a message. An empty role means the patient wrote it.
func (s *MessageService) Create(ctx context.Context, patientID string, role model.MessageRole, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", ErrInvalidInput)
	}
	if len([]rune(content)) > maxMessageLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", ErrInvalidInput, maxMessageLength)
	}

	if role == "" {
		role = model.MessageRolePatient
	}
	switch role {
	case model.MessageRolePatient, model.MessageRoleCareTeam, model.MessageRoleAssistant:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	msg := &model.Message{
		ID:        uuid.NewString(),
		PatientID: patientID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	logAudit(ctx, s.audit, s.logger, audit.Entry{
		PatientID:      patientID,
		OperationType:  audit.OperationCreate,
		ResourceType:   audit.ResourceMessage,
		ResourceID:     msg.ID,
		AdditionalData: map[string]any{"role": string(role)},
	})
	return msg, nil
}

// List returns the thread in chronological order, limited to the newest limit messages when limit > 0
func (s *MessageService) List(ctx context.Context, patientID string, limit int) ([]model.Message, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrInvalidInput)
	}
	messages, err := s.repo.FindByPatient(ctx, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// Delete removes a message
func (s *MessageService) Delete(ctx context.Context, patientID, messageID string) error {
	if err := s.repo.Delete(ctx, patientID, messageID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete message: %w", err)
	}

	logAudit(ctx, s.audit, s.logger, audit.Entry{
		PatientID:     patientID,
		OperationType: audit.OperationDelete,
		ResourceType:  audit.ResourceMessage,
		ResourceID:    messageID,
	})
	return nil
}
