package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/rarecare-backend/internal/audit"
	"github.com/vcscsvcscs/rarecare-backend/internal/repository"
	"github.com/vcscsvcscs/rarecare-backend/internal/tracking"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
	"go.uber.org/zap"
)

// RarescopeRepositoryInterface defines the interface for questionnaire storage
type RarescopeRepositoryInterface interface {
	FindByPatient(ctx context.Context, patientID string) (*model.RarescopeResponse, error)
	Upsert(ctx context.Context, resp *model.RarescopeResponse) error
	Delete(ctx context.Context, patientID string) error
}

// RarescopeService stores each patient's answers to the Rarescope questionnaire
type RarescopeService struct {
	repo          RarescopeRepositoryInterface
	questionnaire *Questionnaire
	audit         AuditLogger
	logger        *zap.Logger
}

// NewRarescopeService creates a new RarescopeService
func NewRarescopeService(repo RarescopeRepositoryInterface, auditLogger AuditLogger, logger *zap.Logger) *RarescopeService {
	return &RarescopeService{
		repo:          repo,
		questionnaire: NewQuestionnaire(),
		audit:         auditLogger,
		logger:        logger,
	}
}

// Questions returns the questionnaire in the given language
func (s *RarescopeService) Questions(lang string) []LocalizedQuestion {
	return s.questionnaire.Questions(tracking.NormalizeLanguage(lang))
}

// Get returns the patient's saved answers
func (s *RarescopeService) Get(ctx context.Context, patientID string) (*model.RarescopeResponse, error) {
	resp, err := s.repo.FindByPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("rarescope response: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get rarescope response: %w", err)
	}
	return resp, nil
}

// Save validates and stores the patient's answers, replacing earlier ones.
// A completed response must answer every required question; a draft may be partial.
func (s *RarescopeService) Save(ctx context.Context, patientID string, answers []model.RarescopeAnswer, lang string, completed bool) (*model.RarescopeResponse, error) {
	if len(answers) == 0 {
		return nil, fmt.Errorf("%w: at least one answer is required", ErrInvalidInput)
	}

	answered := make(map[string]bool, len(answers))
	for _, a := range answers {
		if answered[a.QuestionID] {
			return nil, fmt.Errorf("%w: question %s answered twice", ErrInvalidInput, a.QuestionID)
		}
		question := s.questionnaire.GetQuestionByID(a.QuestionID)
		if question == nil {
			return nil, fmt.Errorf("%w: question not found: %s", ErrInvalidInput, a.QuestionID)
		}
		if !completed && a.Value == "" && len(a.Values) == 0 {
			continue
		}
		if err := s.questionnaire.ValidateAnswer(a.QuestionID, a.Value, a.Values); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if a.Value != "" || len(a.Values) > 0 {
			answered[a.QuestionID] = true
		}
	}

	now := time.Now().UTC()
	resp := &model.RarescopeResponse{
		ID:        uuid.NewString(),
		PatientID: patientID,
		Answers:   answers,
		Language:  tracking.NormalizeLanguage(lang),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if completed {
		if missing := s.questionnaire.MissingRequired(answered); len(missing) > 0 {
			return nil, fmt.Errorf("%w: missing answers for %v", ErrInvalidInput, missing)
		}
		resp.CompletedAt = &now
	}

	if err := s.repo.Upsert(ctx, resp); err != nil {
		return nil, fmt.Errorf("failed to save rarescope response: %w", err)
	}

	s.logger.Info("rarescope response saved",
		zap.String("patient_id", patientID),
		zap.Int("answers", len(answers)),
		zap.Bool("completed", completed),
	)
	logAudit(ctx, s.audit, s.logger, audit.Entry{
		PatientID:      patientID,
		OperationType:  audit.OperationUpdate,
		ResourceType:   audit.ResourceRarescopeResponse,
		ResourceID:     resp.ID,
		AdditionalData: map[string]any{"completed": completed},
	})
	return resp, nil
}

// Delete removes the patient's answers
func (s *RarescopeService) Delete(ctx context.Context, patientID string) error {
	if err := s.repo.Delete(ctx, patientID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("rarescope response: %w", ErrNotFound)
		}
		return fmt.Errorf("failed to delete rarescope response: %w", err)
	}

	logAudit(ctx, s.audit, s.logger, audit.Entry{
		PatientID:     patientID,
		OperationType: audit.OperationDelete,
		ResourceType:  audit.ResourceRarescopeResponse,
	})
	return nil
}
