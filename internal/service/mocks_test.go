package service

import (
	"context"
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/mock"
	"github.com/vcscsvcscs/rarecare-backend/internal/audit"
	"github.com/vcscsvcscs/rarecare-backend/internal/repository"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
)

// MockTrackingRepository is a mock implementation of TrackingRepositoryInterface
type MockTrackingRepository struct {
	mock.Mock
}

func (m *MockTrackingRepository) FindOne(ctx context.Context, patientID string, condition model.ConditionType) (*model.TrackingRecord, error) {
	args := m.Called(ctx, patientID, condition)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TrackingRecord), args.Error(1)
}

func (m *MockTrackingRepository) FindByPatient(ctx context.Context, patientID string) ([]model.TrackingRecord, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TrackingRecord), args.Error(1)
}

func (m *MockTrackingRepository) Save(ctx context.Context, record *model.TrackingRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockTrackingRepository) Delete(ctx context.Context, patientID string, condition model.ConditionType) (bool, error) {
	args := m.Called(ctx, patientID, condition)
	return args.Bool(0), args.Error(1)
}

func (m *MockTrackingRepository) DeleteByPatient(ctx context.Context, patientID string) (int64, error) {
	args := m.Called(ctx, patientID)
	return args.Get(0).(int64), args.Error(1)
}

// MockNoteRepository is a mock implementation of NoteRepositoryInterface
type MockNoteRepository struct {
	mock.Mock
}

func (m *MockNoteRepository) Create(ctx context.Context, note *model.Note) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

func (m *MockNoteRepository) FindByPatient(ctx context.Context, patientID string) ([]model.Note, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Note), args.Error(1)
}

func (m *MockNoteRepository) FindByID(ctx context.Context, patientID, noteID string) (*model.Note, error) {
	args := m.Called(ctx, patientID, noteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Note), args.Error(1)
}

func (m *MockNoteRepository) Update(ctx context.Context, note *model.Note) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

func (m *MockNoteRepository) Delete(ctx context.Context, patientID, noteID string) error {
	args := m.Called(ctx, patientID, noteID)
	return args.Error(0)
}

// MockMessageRepository is a mock implementation of MessageRepositoryInterface
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *model.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) FindByPatient(ctx context.Context, patientID string, limit int) ([]model.Message, error) {
	args := m.Called(ctx, patientID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *MockMessageRepository) Delete(ctx context.Context, patientID, messageID string) error {
	args := m.Called(ctx, patientID, messageID)
	return args.Error(0)
}

// MockRarescopeRepository is a mock implementation of RarescopeRepositoryInterface
type MockRarescopeRepository struct {
	mock.Mock
}

func (m *MockRarescopeRepository) FindByPatient(ctx context.Context, patientID string) (*model.RarescopeResponse, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RarescopeResponse), args.Error(1)
}

func (m *MockRarescopeRepository) Upsert(ctx context.Context, resp *model.RarescopeResponse) error {
	args := m.Called(ctx, resp)
	return args.Error(0)
}

func (m *MockRarescopeRepository) Delete(ctx context.Context, patientID string) error {
	args := m.Called(ctx, patientID)
	return args.Error(0)
}

// MockPatientDataRepository is a mock implementation of PatientDataRepositoryInterface
type MockPatientDataRepository struct {
	mock.Mock
}

func (m *MockPatientDataRepository) DeleteAll(ctx context.Context, patientID string) (repository.DeletionCounts, error) {
	args := m.Called(ctx, patientID)
	return args.Get(0).(repository.DeletionCounts), args.Error(1)
}

type auditOp = audit.OperationType

// recordingAudit keeps every audit entry in memory
type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingAudit) Log(_ context.Context, entry audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recordingAudit) ForPatient(_ context.Context, patientID string, limit int) ([]audit.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []audit.Entry{}
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].PatientID == patientID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *recordingAudit) operations() []audit.OperationType {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]audit.OperationType, 0, len(r.entries))
	for _, e := range r.entries {
		ops = append(ops, e.OperationType)
	}
	return ops
}

// fakeCompleter returns a canned reply and counts calls
type fakeCompleter struct {
	mu       sync.Mutex
	reply    string
	err      error
	calls    int
	messages []openai.ChatCompletionMessageParamUnion
}

func (f *fakeCompleter) Complete(_ context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.messages = messages
	return f.reply, f.err
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
