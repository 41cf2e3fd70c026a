package pdf

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
	"go.uber.org/zap"
)

func sampleRecord(n int) *model.TrackingRecord {
	base := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	entries := make([]model.TrackingEntry, 0, n)
	for i := 0; i < n; i++ {
		duration := float64(60 + i)
		entries = append(entries, model.TrackingEntry{
			Date:     base.AddDate(0, 0, -i),
			Type:     "Tonic-clonic",
			Duration: &duration,
			Triggers: []string{"Stress", "Lack of sleep"},
		})
	}
	return &model.TrackingRecord{
		PatientID:     "patient-1",
		ConditionType: model.ConditionEpilepsy,
		Entries:       entries,
		Medications: []model.Medication{
			{Name: "Levetiracetam", Dose: "500", DoseUnit: "mg", Frequency: "twice daily", SideEffects: []string{"Fatigue"}},
		},
		Metadata: model.ImportMetadata{Source: "seizure_tracker", PatientName: "Ana Núñez"},
	}
}

func TestPDFGenerator_Generate_Success(t *testing.T) {
	generator := NewPDFGenerator(zap.NewNop())

	trend := model.TrendWorsening
	percent := 200
	days := 3
	data := &ReportData{
		Record: sampleRecord(5),
		Stats: model.Statistics{
			TotalEvents:   5,
			DaysSinceLast: &days,
			MonthlyAvg:    2.5,
			Trend:         &trend,
			TrendPercent:  &percent,
		},
		Insights: []model.Insight{
			{Icon: "📈", Title: "Tendencia al alza", Description: "Las crisis aumentaron un 200%."},
		},
		Language: "es",
	}

	out, err := generator.Generate(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.False(t, data.GeneratedAt.IsZero())
}

func TestPDFGenerator_Generate_EmptyRecord(t *testing.T) {
	generator := NewPDFGenerator(zap.NewNop())

	out, err := generator.Generate(&ReportData{
		Record: &model.TrackingRecord{PatientID: "p", ConditionType: model.ConditionDiabetes},
		Stats:  model.Statistics{TypeCounts: map[string]int{}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestPDFGenerator_Generate_ManyEntries(t *testing.T) {
	generator := NewPDFGenerator(zap.NewNop())

	out, err := generator.Generate(&ReportData{Record: sampleRecord(maxEntryRows + 25), Language: "en"})
	require.NoError(t, err)
	assert.Greater(t, len(out), 1000)
}

func TestPDFGenerator_Generate_NoRecord(t *testing.T) {
	_, err := NewPDFGenerator(zap.NewNop()).Generate(&ReportData{})
	assert.Error(t, err)
}

func TestFormattingHelpers(t *testing.T) {
	assert.Equal(t, "Ana Núñez ", stripUnsupported("Ana Núñez 📈"))
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abcd.", truncate("abcdefgh", 5))

	seven := 7
	assert.Equal(t, "07:00", hourText(&seven, "n/a"))
	assert.Equal(t, "n/a", hourText(nil, "n/a"))

	stable := model.TrendStable
	zero := 0
	assert.Equal(t, "stable (0%)", trendText(model.Statistics{Trend: &stable, TrendPercent: &zero}, "n/a"))
	assert.Equal(t, "n/a", trendText(model.Statistics{}, "n/a"))

	v := 5.25
	assert.Equal(t, fmt.Sprintf("%.1f", v), floatOr(&v, "%.1f"))
	assert.Equal(t, "", floatOr(nil, "%.1f"))
}
