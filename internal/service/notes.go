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

const maxNoteTags = 20

// NoteRepositoryInterface defines the interface for note storage
type NoteRepositoryInterface interface {
	Create(ctx context.Context, note *model.Note) error
	FindByPatient(ctx context.Context, patientID string) ([]model.Note, error)
	FindByID(ctx context.Context, patientID, noteID string) (*model.Note, error)
	Update(ctx context.Context, note *model.Note) error
	Delete(ctx context.Context, patientID, noteID string) error
}

// NoteService handles business logic for patient notes
type NoteService struct {
	repo   NoteRepositoryInterface
	audit  AuditLogger
	logger *zap.Logger
}

// NewNoteService creates a new NoteService
func NewNoteService(repo NoteRepositoryInterface, auditLogger AuditLogger, logger *zap.Logger) *NoteService {
	return &NoteService{
		repo:   repo,
		audit:  auditLogger,
		logger: logger,
	}
}

// Create stores a new note
func (s *NoteService) Create(ctx context.Context, patientID, title, content string, tags []string) (*model.Note, error) {
	title, content, tags, err := validateNote(title, content, tags)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	note := &model.Note{
		ID:        uuid.NewString(),
		PatientID: patientID,
		Title:     title,
		Content:   content,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	s.logger.Info("note created",
		zap.String("patient_id", patientID),
		zap.String("note_id", note.ID),
	)
	logAudit(ctx, s.audit, s.logger, audit.Entry{
		PatientID:     patientID,
		OperationType: audit.OperationCreate,
		ResourceType:  audit.ResourceNote,
		ResourceID:    note.ID,
	})
	return note, nil
}

// List returns a patient's notes, newest first
func (s *NoteService) List(ctx context.Context, patientID string) ([]model.Note, error) {
	notes, err := s.repo.FindByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

// Get returns one note
func (s *NoteService) Get(ctx context.Context, patientID, noteID string) (*model.Note, error) {
	note, err := s.repo.FindByID(ctx, patientID, noteID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("note %s: %w", noteID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return note, nil
}

// Update replaces the title, content and tags of a note
func (s *NoteService) Update(ctx context.Context, patientID, noteID, title, content string, tags []string) (*model.Note, error) {
	title, content, tags, err := validateNote(title, content, tags)
	if err != nil {
		return nil, err
	}

	note, err := s.Get(ctx, patientID, noteID)
	if err != nil {
		return nil, err
	}

	note.Title = title
	note.Content = content
	note.Tags = tags
	note.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, note); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("note %s: %w", noteID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update note: %w", err)
	}

	logAudit(ctx, s.audit, s.logger, audit.Entry{
		PatientID:     patientID,
		OperationType: audit.OperationUpdate,
		ResourceType:  audit.ResourceNote,
		ResourceID:    noteID,
	})
	return note, nil
}

// Delete removes a note
func (s *NoteService) Delete(ctx context.Context, patientID, noteID string) error {
	if err := s.repo.Delete(ctx, patientID, noteID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("note %s: %w", noteID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete note: %w", err)
	}

	logAudit(ctx, s.audit, s.logger, audit.Entry{
		PatientID:     patientID,
		OperationType: audit.OperationDelete,
		ResourceType:  audit.ResourceNote,
		ResourceID:    noteID,
	})
	return nil
}

// validateNote trims the fields and normalizes tags: trimmed, lower case, unique, non-empty
func validateNote(title, content string, tags []string) (string, string, []string, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if content == "" {
		return "", "", nil, fmt.Errorf("%w: note content is required", ErrInvalidInput)
	}

	normalized := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		normalized = append(normalized, tag)
	}
	if len(normalized) > maxNoteTags {
		return "", "", nil, fmt.Errorf("%w: at most %d tags are allowed", ErrInvalidInput, maxNoteTags)
	}

	return title, content, normalized, nil
}

// logAudit writes an audit entry; failures are logged and otherwise ignored
func logAudit(ctx context.Context, auditLogger AuditLogger, logger *zap.Logger, entry audit.Entry) {
	if auditLogger == nil {
		return
	}
	if err := auditLogger.Log(ctx, entry); err != nil {
		logger.Error("Failed to log audit entry", zap.Error(err))
	}
}
