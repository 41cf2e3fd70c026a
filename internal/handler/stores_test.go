package handler

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/rarecare-backend/internal/audit"
	"github.com/vcscsvcscs/rarecare-backend/internal/azure"
	"github.com/vcscsvcscs/rarecare-backend/internal/pdf"
	"github.com/vcscsvcscs/rarecare-backend/internal/repository"
	"github.com/vcscsvcscs/rarecare-backend/internal/service"
	"github.com/vcscsvcscs/rarecare-backend/pkg/api"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
	"go.uber.org/zap"
)

// memoryStore backs every repository interface of the services with maps
type memoryStore struct {
	mu        sync.Mutex
	records   map[string]model.TrackingRecord
	notes     map[string]model.Note
	messages  []model.Message
	rarescope map[string]model.RarescopeResponse
	audit     []audit.Entry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records:   make(map[string]model.TrackingRecord),
		notes:     make(map[string]model.Note),
		rarescope: make(map[string]model.RarescopeResponse),
	}
}

func recordKey(patientID string, condition model.ConditionType) string {
	return patientID + "/" + string(condition)
}

type trackingStore struct{ *memoryStore }

func (s trackingStore) FindOne(_ context.Context, patientID string, condition model.ConditionType) (*model.TrackingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[recordKey(patientID, condition)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &record, nil
}

func (s trackingStore) FindByPatient(_ context.Context, patientID string) ([]model.TrackingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := []model.TrackingRecord{}
	for _, r := range s.records {
		if r.PatientID == patientID {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ConditionType < records[j].ConditionType })
	return records, nil
}

func (s trackingStore) Save(_ context.Context, record *model.TrackingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	s.records[recordKey(record.PatientID, record.ConditionType)] = *record
	return nil
}

func (s trackingStore) Delete(_ context.Context, patientID string, condition model.ConditionType) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey(patientID, condition)
	_, ok := s.records[key]
	delete(s.records, key)
	return ok, nil
}

func (s trackingStore) DeleteByPatient(_ context.Context, patientID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteRecords(patientID), nil
}

func (s *memoryStore) deleteRecords(patientID string) int64 {
	var n int64
	for key, r := range s.records {
		if r.PatientID == patientID {
			delete(s.records, key)
			n++
		}
	}
	return n
}

type noteStore struct{ *memoryStore }

func (s noteStore) Create(_ context.Context, note *model.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[note.ID] = *note
	return nil
}

func (s noteStore) FindByPatient(_ context.Context, patientID string) ([]model.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	notes := []model.Note{}
	for _, n := range s.notes {
		if n.PatientID == patientID {
			notes = append(notes, n)
		}
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].CreatedAt.After(notes[j].CreatedAt) })
	return notes, nil
}

func (s noteStore) FindByID(_ context.Context, patientID, noteID string) (*model.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.notes[noteID]
	if !ok || note.PatientID != patientID {
		return nil, repository.ErrNotFound
	}
	return &note, nil
}

func (s noteStore) Update(_ context.Context, note *model.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.notes[note.ID]
	if !ok || existing.PatientID != note.PatientID {
		return repository.ErrNotFound
	}
	s.notes[note.ID] = *note
	return nil
}

func (s noteStore) Delete(_ context.Context, patientID, noteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.notes[noteID]
	if !ok || note.PatientID != patientID {
		return repository.ErrNotFound
	}
	delete(s.notes, noteID)
	return nil
}

type messageStore struct{ *memoryStore }

func (s messageStore) Create(_ context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, *msg)
	return nil
}

func (s messageStore) FindByPatient(_ context.Context, patientID string, limit int) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread := []model.Message{}
	for _, m := range s.messages {
		if m.PatientID == patientID {
			thread = append(thread, m)
		}
	}
	if limit > 0 && len(thread) > limit {
		thread = thread[len(thread)-limit:]
	}
	return thread, nil
}

func (s messageStore) Delete(_ context.Context, patientID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.messages {
		if m.ID == messageID && m.PatientID == patientID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type rarescopeStore struct{ *memoryStore }

func (s rarescopeStore) FindByPatient(_ context.Context, patientID string) (*model.RarescopeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.rarescope[patientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &resp, nil
}

func (s rarescopeStore) Upsert(_ context.Context, resp *model.RarescopeResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rarescope[resp.PatientID]; ok {
		resp.ID = existing.ID
		resp.CreatedAt = existing.CreatedAt
	}
	s.rarescope[resp.PatientID] = *resp
	return nil
}

func (s rarescopeStore) Delete(_ context.Context, patientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rarescope[patientID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.rarescope, patientID)
	return nil
}

type patientDataStore struct{ *memoryStore }

func (s patientDataStore) DeleteAll(_ context.Context, patientID string) (repository.DeletionCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := repository.DeletionCounts{TrackingRecords: s.deleteRecords(patientID)}
	for id, n := range s.notes {
		if n.PatientID == patientID {
			delete(s.notes, id)
			counts.Notes++
		}
	}
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.PatientID == patientID {
			counts.Messages++
			continue
		}
		kept = append(kept, m)
	}
	s.messages = kept
	if _, ok := s.rarescope[patientID]; ok {
		delete(s.rarescope, patientID)
		counts.RarescopeResponses = 1
	}
	return counts, nil
}

type auditStore struct{ *memoryStore }

func (s auditStore) Log(ctx context.Context, entry audit.Entry) error {
	if client, ok := audit.ClientFrom(ctx); ok {
		entry.IPAddress = client.IPAddress
		entry.UserAgent = client.UserAgent
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

func (s auditStore) ForPatient(_ context.Context, patientID string, limit int) ([]audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := []audit.Entry{}
	for _, e := range s.audit {
		if e.PatientID == patientID {
			entries = append(entries, e)
		}
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *memoryStore) auditEntries() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Entry(nil), s.audit...)
}

// plainTokens treats the patient token as the patient ID
type plainTokens struct{}

func (plainTokens) DecryptID(token string) (string, error) {
	return token, nil
}

type testServer struct {
	router  *gin.Engine
	store   *memoryStore
	archive *azure.MemoryArchive
}

const maxTestImportBytes = 64 << 10

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	doc, err := api.LoadSpec(context.Background())
	require.NoError(t, err)

	store := newMemoryStore()
	archive := azure.NewMemoryArchive(logger)
	auditLog := auditStore{store}

	generator := service.NewInsightGenerator(nil, time.Second, logger)
	trackingService := service.NewTrackingService(trackingStore{store}, nil, archive, generator, auditLog, time.Hour, logger)
	reportService := service.NewReportService(trackingService, pdf.NewPDFGenerator(logger), auditLog, logger)
	patientService := service.NewPatientDataService(service.PatientDataStores{
		Data:      patientDataStore{store},
		Tracking:  trackingStore{store},
		Notes:     noteStore{store},
		Messages:  messageStore{store},
		Rarescope: rarescopeStore{store},
	}, archive, nil, auditLog, auditLog, logger)

	up := func(context.Context) error { return nil }

	router := gin.New()
	RegisterRoutes(router, Handlers{
		Tracking:  NewTrackingHandler(trackingService, reportService, maxTestImportBytes, logger),
		Notes:     NewNoteHandler(service.NewNoteService(noteStore{store}, auditLog, logger), logger),
		Messages:  NewMessageHandler(service.NewMessageService(messageStore{store}, auditLog, logger), logger),
		Rarescope: NewRarescopeHandler(service.NewRarescopeService(rarescopeStore{store}, auditLog, logger), logger),
		Patient:   NewPatientHandler(patientService, logger),
		System:    NewSystemHandler(up, nil, false, "test", doc, logger),
	}, plainTokens{}, logger)

	return &testServer{router: router, store: store, archive: archive}
}
