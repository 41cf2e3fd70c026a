package tracking

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
)

const (
	// MinEventsForInsights is the smallest event count that gets a real analysis
	MinEventsForInsights = 3
	// MaxInsights caps how many insight cards are returned
	MaxInsights = 4

	langSpanish = "es"
	langEnglish = "en"
)

// NormalizeLanguage maps a requested language code to a supported one. Anything that is not
// Spanish is served in English.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == langSpanish || strings.HasPrefix(lang, langSpanish+"-") {
		return langSpanish
	}
	return langEnglish
}

// InsufficientDataInsight is the single card returned when there are too few events to analyse
func InsufficientDataInsight(lang string) model.Insight {
	if NormalizeLanguage(lang) == langSpanish {
		return model.Insight{
			Icon:        "📊",
			Title:       "Datos insuficientes",
			Description: fmt.Sprintf("Registra al menos %d eventos para ver patrones y tendencias.", MinEventsForInsights),
		}
	}
	return model.Insight{
		Icon:        "📊",
		Title:       "Not enough data yet",
		Description: fmt.Sprintf("Log at least %d events to start seeing patterns and trends.", MinEventsForInsights),
	}
}

// eventNoun returns the plural noun used for entries of a condition
func eventNoun(condition model.ConditionType, lang string) string {
	es := lang == langSpanish
	switch condition {
	case model.ConditionEpilepsy:
		if es {
			return "crisis"
		}
		return "seizures"
	case model.ConditionDiabetes:
		if es {
			return "mediciones"
		}
		return "readings"
	case model.ConditionMigraine:
		if es {
			return "migrañas"
		}
		return "migraines"
	default:
		if es {
			return "eventos"
		}
		return "events"
	}
}

// timeOfDay buckets an hour into early morning, morning, afternoon or evening
func timeOfDay(hour int, lang string) string {
	es := lang == langSpanish
	switch {
	case hour < 6:
		if es {
			return "la madrugada"
		}
		return "the early morning"
	case hour < 12:
		if es {
			return "la mañana"
		}
		return "the morning"
	case hour < 18:
		if es {
			return "la tarde"
		}
		return "the afternoon"
	default:
		if es {
			return "la noche"
		}
		return "the evening"
	}
}

// FallbackInsights is the deterministic rule-based generator. It never fails and always returns
// at least one insight.
func FallbackInsights(stats model.Statistics, condition model.ConditionType, lang string) []model.Insight {
	lang = NormalizeLanguage(lang)
	if stats.TotalEvents < MinEventsForInsights {
		return []model.Insight{InsufficientDataInsight(lang)}
	}

	noun := eventNoun(condition, lang)
	es := lang == langSpanish
	var insights []model.Insight

	if stats.Trend != nil && stats.TrendPercent != nil {
		insights = append(insights, trendInsight(*stats.Trend, *stats.TrendPercent, noun, es))
	}

	if stats.MostCommonHour != nil {
		period := timeOfDay(*stats.MostCommonHour, lang)
		if es {
			insights = append(insights, model.Insight{
				Icon:        "🕐",
				Title:       "Patrón horario",
				Description: fmt.Sprintf("Tus %s ocurren con más frecuencia durante %s (alrededor de las %02d:00).", noun, period, *stats.MostCommonHour),
			})
		} else {
			insights = append(insights, model.Insight{
				Icon:        "🕐",
				Title:       "Time-of-day pattern",
				Description: fmt.Sprintf("Your %s happen most often in %s (around %02d:00).", noun, period, *stats.MostCommonHour),
			})
		}
	}

	if stats.DaysSinceLast != nil && *stats.DaysSinceLast > 30 {
		if es {
			insights = append(insights, model.Insight{
				Icon:        "🌟",
				Title:       "Buen periodo",
				Description: fmt.Sprintf("Han pasado %d días desde el último registro. ¡Sigue así!", *stats.DaysSinceLast),
			})
		} else {
			insights = append(insights, model.Insight{
				Icon:        "🌟",
				Title:       "Good period",
				Description: fmt.Sprintf("It has been %d days since the last event. Keep it up!", *stats.DaysSinceLast),
			})
		}
	}

	if len(insights) == 0 {
		if es {
			insights = append(insights, model.Insight{
				Icon:        "✅",
				Title:       "Seguimiento activo",
				Description: fmt.Sprintf("Has registrado %d %s, con una media de %.1f al mes.", stats.TotalEvents, noun, stats.MonthlyAvg),
			})
		} else {
			insights = append(insights, model.Insight{
				Icon:        "✅",
				Title:       "Active tracking",
				Description: fmt.Sprintf("You have logged %d %s, averaging %.1f per month.", stats.TotalEvents, noun, stats.MonthlyAvg),
			})
		}
	}

	return insights
}

func trendInsight(trend model.Trend, percent int, noun string, es bool) model.Insight {
	switch trend {
	case model.TrendImproving:
		if es {
			return model.Insight{Icon: "📉", Title: "Tendencia a la baja",
				Description: fmt.Sprintf("Tus %s han disminuido un %d%% en los últimos 3 meses.", noun, percent)}
		}
		return model.Insight{Icon: "📉", Title: "Improving trend",
			Description: fmt.Sprintf("Your %s decreased by %d%% over the last 3 months.", noun, percent)}
	case model.TrendWorsening:
		if es {
			return model.Insight{Icon: "📈", Title: "Tendencia al alza",
				Description: fmt.Sprintf("Tus %s han aumentado un %d%% en los últimos 3 meses. Considera comentarlo con tu equipo médico.", noun, percent)}
		}
		return model.Insight{Icon: "📈", Title: "Worsening trend",
			Description: fmt.Sprintf("Your %s increased by %d%% over the last 3 months. Consider discussing this with your care team.", noun, percent)}
	default:
		if es {
			return model.Insight{Icon: "➡️", Title: "Tendencia estable",
				Description: fmt.Sprintf("La frecuencia de tus %s se ha mantenido estable en los últimos 3 meses.", noun)}
		}
		return model.Insight{Icon: "➡️", Title: "Stable trend",
			Description: fmt.Sprintf("The frequency of your %s has stayed stable over the last 3 months.", noun)}
	}
}

// ErrInvalidModelOutput is returned when model output is not a usable insight list
var ErrInvalidModelOutput = errors.New("invalid model output")

// ParseModelInsights reads a JSON array of insights out of free model text.
// Code fences are stripped; cards missing a title or description are dropped.
func ParseModelInsights(text string) ([]model.Insight, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	// tolerate prose around the array
	if start, end := strings.Index(text, "["), strings.LastIndex(text, "]"); start >= 0 && end > start {
		text = text[start : end+1]
	}

	var raw []model.Insight
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModelOutput, err)
	}

	insights := make([]model.Insight, 0, len(raw))
	for _, in := range raw {
		in.Title = strings.TrimSpace(in.Title)
		in.Description = strings.TrimSpace(in.Description)
		if in.Title == "" || in.Description == "" {
			continue
		}
		if strings.TrimSpace(in.Icon) == "" {
			in.Icon = "💡"
		}
		insights = append(insights, in)
		if len(insights) == MaxInsights {
			break
		}
	}

	if len(insights) == 0 {
		return nil, fmt.Errorf("%w: no usable insights", ErrInvalidModelOutput)
	}
	return insights, nil
}

// InsightsFresh reports whether the insights cached on a record can be reused for lang
func InsightsFresh(record *model.TrackingRecord, now time.Time, ttl time.Duration, lang string) bool {
	if record == nil || len(record.Insights) == 0 || record.InsightsGeneratedAt == nil {
		return false
	}
	if NormalizeLanguage(record.InsightsLanguage) != NormalizeLanguage(lang) {
		return false
	}
	return now.Sub(*record.InsightsGeneratedAt) < ttl
}
