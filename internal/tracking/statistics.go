package tracking

import (
	"math"
	"time"

	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
)

const (
	monthDays  = 30
	trendMonth = 3
)

// CalculateStatistics derives summary metrics from an entry list. It is pure: now supplies both
// the reference instant and the location used for hour-of-day bucketing.
func CalculateStatistics(entries []model.TrackingEntry, now time.Time) model.Statistics {
	stats := model.Statistics{
		TypeCounts: map[string]int{},
	}
	if len(entries) == 0 {
		return stats
	}

	stats.TotalEvents = len(entries)

	first, last := entries[0].Date, entries[0].Date
	for _, e := range entries[1:] {
		if e.Date.Before(first) {
			first = e.Date
		}
		if e.Date.After(last) {
			last = e.Date
		}
	}
	stats.FirstEventDate = &first
	stats.LastEventDate = &last

	daysSince := int(math.Floor(now.Sub(last).Hours() / 24))
	stats.DaysSinceLast = &daysSince

	months := last.Sub(first).Hours() / 24 / monthDays
	stats.MonthlyAvg = round1(float64(len(entries)) / math.Max(1, months))

	threeMonthsAgo := now.AddDate(0, -trendMonth, 0)
	sixMonthsAgo := now.AddDate(0, -2*trendMonth, 0)

	// typeOrder keeps first-seen order so ties resolve deterministically
	var typeOrder []string
	for _, e := range entries {
		if !e.Date.Before(threeMonthsAgo) {
			stats.RecentCount++
		} else if !e.Date.Before(sixMonthsAgo) {
			stats.PreviousCount++
		}

		if e.Type != "" {
			if _, ok := stats.TypeCounts[e.Type]; !ok {
				typeOrder = append(typeOrder, e.Type)
			}
			stats.TypeCounts[e.Type]++
		}

		stats.HourCounts[e.Date.In(now.Location()).Hour()]++
	}

	stats.Trend, stats.TrendPercent = trendOf(stats.RecentCount, stats.PreviousCount)
	stats.MostCommonType = mostCommonType(stats.TypeCounts, typeOrder)
	stats.MostCommonHour = mostCommonHour(stats.HourCounts)

	stats.Values = describe(entries, func(e model.TrackingEntry) (float64, bool) {
		if e.Value == nil {
			return 0, false
		}
		return *e.Value, true
	})
	stats.Durations = describe(entries, func(e model.TrackingEntry) (float64, bool) {
		if e.Duration == nil {
			return 0, false
		}
		return *e.Duration, true
	})
	stats.Severities = describe(entries, func(e model.TrackingEntry) (float64, bool) {
		if e.Severity == nil {
			return 0, false
		}
		return float64(*e.Severity), true
	})

	return stats
}

// trendOf compares the recent window to the one before it. Without a baseline there is no trend.
func trendOf(recent, previous int) (*model.Trend, *int) {
	if previous == 0 {
		return nil, nil
	}

	percent := int(math.Round(math.Abs(float64(recent-previous)) / float64(previous) * 100))

	trend := model.TrendStable
	switch {
	case recent < previous:
		trend = model.TrendImproving
	case recent > previous:
		trend = model.TrendWorsening
	}
	return &trend, &percent
}

func mostCommonType(counts map[string]int, order []string) *string {
	best, bestCount := "", 0
	for _, t := range order {
		if counts[t] > bestCount {
			best, bestCount = t, counts[t]
		}
	}
	if bestCount == 0 {
		return nil
	}
	return &best
}

func mostCommonHour(counts [24]int) *int {
	best, bestCount := 0, 0
	for hour, n := range counts {
		if n > bestCount {
			best, bestCount = hour, n
		}
	}
	if bestCount == 0 {
		return nil
	}
	return &best
}

// describe computes count, mean, population standard deviation, min and max of the
// values extracted by get. It returns nil when no entry carries the field.
func describe(entries []model.TrackingEntry, get func(model.TrackingEntry) (float64, bool)) *model.DescriptiveStats {
	var values []float64
	for _, e := range entries {
		if v, ok := get(e); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil
	}

	ds := &model.DescriptiveStats{
		Count: len(values),
		Min:   values[0],
		Max:   values[0],
	}

	var sum float64
	for _, v := range values {
		sum += v
		ds.Min = math.Min(ds.Min, v)
		ds.Max = math.Max(ds.Max, v)
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}

	ds.Avg = round2(mean)
	ds.Std = round2(math.Sqrt(sq / float64(len(values))))
	return ds
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
