package tracking

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
)

func trendPtr(t model.Trend) *model.Trend { return &t }

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "es", NormalizeLanguage("es"))
	assert.Equal(t, "es", NormalizeLanguage(" ES-mx "))
	assert.Equal(t, "en", NormalizeLanguage("en"))
	assert.Equal(t, "en", NormalizeLanguage("fr"))
	assert.Equal(t, "en", NormalizeLanguage(""))
}

func TestFallbackInsights_InsufficientData(t *testing.T) {
	for _, total := range []int{0, 1, 2} {
		stats := model.Statistics{TotalEvents: total, MostCommonHour: intPtr(9)}

		en := FallbackInsights(stats, model.ConditionEpilepsy, "en")
		require.Len(t, en, 1)
		assert.Equal(t, "Not enough data yet", en[0].Title)

		es := FallbackInsights(stats, model.ConditionEpilepsy, "es")
		require.Len(t, es, 1)
		assert.Equal(t, "Datos insuficientes", es[0].Title)

		other := FallbackInsights(stats, model.ConditionEpilepsy, "de")
		require.Len(t, other, 1)
		assert.Equal(t, en[0], other[0])
	}
}

func TestFallbackInsights_Order(t *testing.T) {
	stats := model.Statistics{
		TotalEvents:    12,
		Trend:          trendPtr(model.TrendImproving),
		TrendPercent:   intPtr(40),
		MostCommonHour: intPtr(4),
		DaysSinceLast:  intPtr(45),
		MonthlyAvg:     2.5,
	}

	insights := FallbackInsights(stats, model.ConditionEpilepsy, "en")

	require.Len(t, insights, 3)
	assert.Equal(t, "Improving trend", insights[0].Title)
	assert.Contains(t, insights[0].Description, "seizures decreased by 40%")
	assert.Equal(t, "Time-of-day pattern", insights[1].Title)
	assert.Contains(t, insights[1].Description, "the early morning")
	assert.Equal(t, "Good period", insights[2].Title)
	assert.Contains(t, insights[2].Description, "45 days")
}

func TestFallbackInsights_TimeOfDayBuckets(t *testing.T) {
	tests := []struct {
		hour   int
		lang   string
		bucket string
	}{
		{hour: 0, lang: "en", bucket: "the early morning"},
		{hour: 5, lang: "en", bucket: "the early morning"},
		{hour: 6, lang: "en", bucket: "the morning"},
		{hour: 11, lang: "en", bucket: "the morning"},
		{hour: 12, lang: "en", bucket: "the afternoon"},
		{hour: 17, lang: "en", bucket: "the afternoon"},
		{hour: 18, lang: "en", bucket: "the evening"},
		{hour: 23, lang: "es", bucket: "la noche"},
	}

	for _, tt := range tests {
		stats := model.Statistics{TotalEvents: 5, MostCommonHour: intPtr(tt.hour), DaysSinceLast: intPtr(1)}
		insights := FallbackInsights(stats, model.ConditionMigraine, tt.lang)
		require.Len(t, insights, 1)
		assert.Contains(t, insights[0].Description, tt.bucket, "hour %d", tt.hour)
	}
}

func TestFallbackInsights_ActiveTrackingSummary(t *testing.T) {
	stats := model.Statistics{TotalEvents: 8, MonthlyAvg: 4, DaysSinceLast: intPtr(3)}

	en := FallbackInsights(stats, model.ConditionDiabetes, "en")
	require.Len(t, en, 1)
	assert.Equal(t, "Active tracking", en[0].Title)
	assert.Contains(t, en[0].Description, "8 readings")

	es := FallbackInsights(stats, model.ConditionDiabetes, "es")
	require.Len(t, es, 1)
	assert.Equal(t, "Seguimiento activo", es[0].Title)
	assert.Contains(t, es[0].Description, "8 mediciones")
}

func TestFallbackInsights_FromStatistics(t *testing.T) {
	entries := []model.TrackingEntry{
		entryAt(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), "focal"),
		entryAt(time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC), "focal"),
		entryAt(time.Date(2024, 4, 1, 21, 0, 0, 0, time.UTC), "absence"),
		entryAt(time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), "absence"),
		entryAt(time.Date(2023, 10, 1, 3, 0, 0, 0, time.UTC), "focal"),
	}

	insights := FallbackInsights(CalculateStatistics(entries, statsNow), model.ConditionEpilepsy, "es")

	require.Len(t, insights, 2)
	assert.Equal(t, "Tendencia al alza", insights[0].Title)
	assert.Contains(t, insights[0].Description, "200%")
	assert.Contains(t, insights[1].Description, "la mañana")
}

func TestParseModelInsights(t *testing.T) {
	t.Run("fenced json", func(t *testing.T) {
		text := "```json\n[{\"icon\":\"🧠\",\"title\":\"Morning clusters\",\"description\":\"Most events happen before noon.\"}]\n```"
		insights, err := ParseModelInsights(text)
		require.NoError(t, err)
		require.Len(t, insights, 1)
		assert.Equal(t, "🧠", insights[0].Icon)
		assert.Equal(t, "Morning clusters", insights[0].Title)
	})

	t.Run("prose around the array", func(t *testing.T) {
		text := `Here are the insights: [{"title":"A","description":"B"}] Hope this helps.`
		insights, err := ParseModelInsights(text)
		require.NoError(t, err)
		require.Len(t, insights, 1)
		assert.Equal(t, "💡", insights[0].Icon)
	})

	t.Run("caps and drops incomplete cards", func(t *testing.T) {
		text := `[{"title":"1","description":"d"},{"title":"","description":"d"},{"title":"2","description":"d"},
			{"title":"3","description":"d"},{"title":"4","description":"d"},{"title":"5","description":"d"}]`
		insights, err := ParseModelInsights(text)
		require.NoError(t, err)
		require.Len(t, insights, MaxInsights)
		assert.Equal(t, "4", insights[3].Title)
	})

	for name, text := range map[string]string{
		"not json":     "I cannot help with that.",
		"object":       `{"title":"x","description":"y"}`,
		"empty array":  `[]`,
		"wrong shape":  `[1, 2, 3]`,
		"only invalid": `[{"icon":"x"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			insights, err := ParseModelInsights(text)
			assert.ErrorIs(t, err, ErrInvalidModelOutput)
			assert.Nil(t, insights)
		})
	}
}

func TestInsightsFresh(t *testing.T) {
	generated := statsNow.Add(-30 * time.Minute)
	record := &model.TrackingRecord{
		Insights:            []model.Insight{{Title: "x", Description: "y"}},
		InsightsGeneratedAt: &generated,
		InsightsLanguage:    "en",
	}

	assert.True(t, InsightsFresh(record, statsNow, time.Hour, "en"))
	assert.True(t, InsightsFresh(record, statsNow, time.Hour, "fr"), "unsupported languages share the English set")
	assert.False(t, InsightsFresh(record, statsNow, time.Hour, "es"))
	assert.False(t, InsightsFresh(record, statsNow.Add(31*time.Minute), time.Hour, "en"))
	assert.False(t, InsightsFresh(&model.TrackingRecord{}, statsNow, time.Hour, "en"))
	assert.False(t, InsightsFresh(nil, statsNow, time.Hour, "en"))
}

func TestProperty_FallbackAlwaysAnswers(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	conditions := gen.OneConstOf(model.ConditionEpilepsy, model.ConditionDiabetes, model.ConditionMigraine, model.ConditionCustom)

	properties.Property("fallback returns between one and four complete insights", prop.ForAll(
		func(total, hour, days, recent, previous int, condition model.ConditionType, spanish bool) bool {
			trend, percent := trendOf(recent, previous)
			stats := model.Statistics{
				TotalEvents:    total,
				MostCommonHour: intPtr(hour),
				DaysSinceLast:  intPtr(days),
				Trend:          trend,
				TrendPercent:   percent,
			}
			lang := "en"
			if spanish {
				lang = "es"
			}

			insights := FallbackInsights(stats, condition, lang)
			if len(insights) < 1 || len(insights) > MaxInsights {
				return false
			}
			if total < MinEventsForInsights && len(insights) != 1 {
				return false
			}
			for _, in := range insights {
				if in.Title == "" || in.Description == "" || in.Icon == "" {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 500),
		gen.IntRange(0, 23),
		gen.IntRange(0, 400),
		gen.IntRange(0, 50),
		gen.IntRange(0, 50),
		conditions,
		gen.Bool(),
	))

	properties.TestingRun(t)
}
