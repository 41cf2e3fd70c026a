package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/vcscsvcscs/rarecare-backend/internal/tracking"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
	"go.uber.org/zap"
)

const recentEntriesInPrompt = 10

// ChatCompleter sends a chat conversation to a language model and returns the reply text
type ChatCompleter interface {
	Complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
}

// InsightGenerator turns statistics into insight cards, through the model when one is
// configured and through the deterministic rules otherwise
type InsightGenerator struct {
	model   ChatCompleter
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewInsightGenerator creates an InsightGenerator. A nil model disables the model path.
func NewInsightGenerator(model ChatCompleter, timeout time.Duration, logger *zap.Logger) *InsightGenerator {
	return &InsightGenerator{
		model:   model,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

// ModelEnabled reports whether a language model is configured
func (g *InsightGenerator) ModelEnabled() bool {
	return g.model != nil
}

// Generate returns 1 to 4 insights for a record in the requested language. It never fails:
// model errors and unusable model output fall back to the rule-based insights.
func (g *InsightGenerator) Generate(ctx context.Context, record *model.TrackingRecord, stats model.Statistics, lang string) ([]model.Insight, model.InsightSource) {
	lang = tracking.NormalizeLanguage(lang)

	if stats.TotalEvents < tracking.MinEventsForInsights {
		return []model.Insight{tracking.InsufficientDataInsight(lang)}, model.InsightSourceFallback
	}

	fallback := func() []model.Insight {
		return tracking.FallbackInsights(stats, record.ConditionType, lang)
	}
	if g.model == nil {
		return fallback(), model.InsightSourceFallback
	}

	return withFallback(func() ([]model.Insight, error) {
		return g.fromModel(ctx, record, stats, lang)
	}, fallback, g.logger.With(
		zap.String("patient_id", record.PatientID),
		zap.String("condition_type", string(record.ConditionType)),
	))
}

// withFallback runs primary and recovers any error with the fallback result
func withFallback(primary func() ([]model.Insight, error), fallback func() []model.Insight, logger *zap.Logger) ([]model.Insight, model.InsightSource) {
	insights, err := primary()
	if err != nil {
		logger.Warn("model insights unavailable, using fallback", zap.Error(err))
		return fallback(), model.InsightSourceFallback
	}
	return insights, model.InsightSourceModel
}

func (g *InsightGenerator) fromModel(ctx context.Context, record *model.TrackingRecord, stats model.Statistics, lang string) ([]model.Insight, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt(lang)),
		openai.UserMessage(g.buildPrompt(record, stats)),
	}

	start := time.Now()
	response, err := g.model.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	insights, err := tracking.ParseModelInsights(response)
	if err != nil {
		g.logger.Debug("unparseable model output", zap.String("response", response))
		return nil, err
	}

	g.logger.Info("model insights generated",
		zap.Int("insight_count", len(insights)),
		zap.Duration("duration", time.Since(start)),
	)
	return insights, nil
}

func systemPrompt(lang string) string {
	language := "English"
	if lang == "es" {
		language = "Spanish"
	}
	return fmt.Sprintf(`You are a careful assistant helping patients with rare and chronic conditions understand their own tracking data.
You never diagnose and never recommend changing medication. You point out patterns the patient could discuss with their care team.

Answer with ONLY a JSON array of 2 to 4 objects, no other text:
[{"icon": "single emoji", "title": "short title, max 5 words", "description": "one or two sentences"}]

Write titles and descriptions in %s.`, language)
}

// buildPrompt summarizes the statistics, the most recent entries and the medications
func (g *InsightGenerator) buildPrompt(record *model.TrackingRecord, stats model.Statistics) string {
	loc := g.now().Location()
	var b strings.Builder

	fmt.Fprintf(&b, "Condition: %s\n\n", record.ConditionType)

	b.WriteString("Statistics:\n")
	fmt.Fprintf(&b, "- total events: %d\n", stats.TotalEvents)
	if stats.DaysSinceLast != nil {
		fmt.Fprintf(&b, "- days since last event: %d\n", *stats.DaysSinceLast)
	}
	fmt.Fprintf(&b, "- monthly average: %.1f\n", stats.MonthlyAvg)
	fmt.Fprintf(&b, "- events in the last 3 months: %d, in the 3 months before: %d\n", stats.RecentCount, stats.PreviousCount)
	if stats.Trend != nil && stats.TrendPercent != nil {
		fmt.Fprintf(&b, "- trend: %s (%d%%)\n", *stats.Trend, *stats.TrendPercent)
	}
	if stats.MostCommonType != nil {
		fmt.Fprintf(&b, "- most common type: %s\n", *stats.MostCommonType)
	}
	if stats.MostCommonHour != nil {
		fmt.Fprintf(&b, "- most common hour: %02d:00\n", *stats.MostCommonHour)
	}
	if stats.Values != nil {
		fmt.Fprintf(&b, "- values: avg %.1f, min %.1f, max %.1f\n", stats.Values.Avg, stats.Values.Min, stats.Values.Max)
	}

	recent := record.Entries
	if len(recent) > recentEntriesInPrompt {
		recent = recent[:recentEntriesInPrompt]
	}
	fmt.Fprintf(&b, "\nMost recent %d entries:\n", len(recent))
	for _, e := range recent {
		local := e.Date.In(loc)
		line := fmt.Sprintf("- %s hour %02d", local.Format("2006-01-02"), local.Hour())
		if e.Type != "" {
			line += ", type " + e.Type
		}
		if len(e.Triggers) > 0 {
			line += ", triggers: " + strings.Join(e.Triggers, ", ")
		}
		b.WriteString(line + "\n")
	}

	if len(record.Medications) > 0 {
		b.WriteString("\nMedications:\n")
		for _, m := range record.Medications {
			line := "- " + m.Name
			if m.Dose != "" {
				line += " " + m.Dose
			}
			if m.Frequency != "" {
				line += ", " + m.Frequency
			}
			b.WriteString(line + "\n")
		}
	}

	return b.String()
}
