package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/rarecare-backend/internal/pdf"
	"github.com/vcscsvcscs/rarecare-backend/internal/repository"
	"github.com/vcscsvcscs/rarecare-backend/internal/tracking"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func newTestReportService(repo TrackingRepositoryInterface) (*ReportService, *recordingAudit) {
	trackingSvc, _ := newTestTrackingService(repo)
	auditLog := &recordingAudit{}
	svc := NewReportService(trackingSvc, pdf.NewPDFGenerator(zap.NewNop()), auditLog, zap.NewNop())
	svc.now = trackingSvc.now
	return svc, auditLog
}

func TestReportService_TrackingPDF(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockTrackingRepository)
	svc, auditLog := newTestReportService(mockRepo)
	record, _ := testRecord(1, 2, 3, 50)
	mockRepo.On("FindOne", ctx, testPatient, model.ConditionEpilepsy).Return(record, nil)

	report, err := svc.TrackingPDF(ctx, testPatient, model.ConditionEpilepsy, "es")
	require.NoError(t, err)

	assert.Equal(t, ContentTypePDF, report.ContentType)
	assert.Equal(t, "epilepsy-tracking-20240615.pdf", report.Filename)
	assert.True(t, bytes.HasPrefix(report.Data, []byte("%PDF")))
	assert.Equal(t, []auditOp{"EXPORT"}, auditLog.operations())
}

func TestReportService_TrackingXLSX(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockTrackingRepository)
	svc, _ := newTestReportService(mockRepo)
	record, _ := testRecord(1, 2)
	mockRepo.On("FindOne", ctx, testPatient, model.ConditionEpilepsy).Return(record, nil)

	report, err := svc.TrackingXLSX(ctx, testPatient, model.ConditionEpilepsy)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeXLSX, report.ContentType)

	f, err := excelize.OpenReader(bytes.NewReader(report.Data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Entries")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestReportService_MissingRecord(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockTrackingRepository)
	svc, auditLog := newTestReportService(mockRepo)
	mockRepo.On("FindOne", ctx, testPatient, model.ConditionDiabetes).Return(nil, repository.ErrNotFound)

	_, err := svc.TrackingPDF(ctx, testPatient, model.ConditionDiabetes, "en")
	assert.ErrorIs(t, err, tracking.ErrRecordNotFound)
	_, err = svc.TrackingXLSX(ctx, testPatient, model.ConditionDiabetes)
	assert.ErrorIs(t, err, tracking.ErrRecordNotFound)
	assert.Empty(t, auditLog.operations())
}

func TestReportInsights(t *testing.T) {
	record, stats := testRecord(1, 2, 3, 4)

	fallback := reportInsights(record, stats, "en")
	assert.Equal(t, tracking.FallbackInsights(stats, record.ConditionType, "en"), fallback)

	record.Insights = []model.Insight{{Icon: "💡", Title: "stored", Description: "stored"}}
	record.InsightsLanguage = "en"
	assert.Equal(t, "stored", reportInsights(record, stats, "en")[0].Title)
	assert.NotEqual(t, "stored", reportInsights(record, stats, "es")[0].Title)
}
