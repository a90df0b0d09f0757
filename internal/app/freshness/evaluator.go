// Package freshness decides whether sensors are connected from their
// last-seen timestamps.
package freshness

import (
	"math"
	"time"

	"github.com/ghalamif/sensorwatch/internal/domain"
)

const day = 24 * time.Hour

// maxDays is the largest day count a time.Duration can hold.
const maxDays = math.MaxInt64 / int64(day)

// Threshold converts a day count into the staleness window. Counts beyond
// the range of time.Duration saturate at the largest window.
func Threshold(days int) time.Duration {
	if int64(days) > maxDays {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(days) * day
}

// IsFresh reports whether lastSeen falls within threshold of now. The bound
// is inclusive; a zero lastSeen is never fresh.
func IsFresh(lastSeen time.Time, threshold time.Duration, now time.Time) bool {
	if lastSeen.IsZero() {
		return false
	}
	return now.Sub(lastSeen) <= threshold
}

// Evaluate returns one result per record, in input order.
func Evaluate(records []domain.SensorRecord, thresholdDays int, now time.Time) []domain.EvaluationResult {
	if len(records) == 0 {
		return nil
	}
	window := Threshold(thresholdDays)
	out := make([]domain.EvaluationResult, len(records))
	for i, r := range records {
		out[i] = domain.EvaluationResult{
			SensorID: r.SensorID,
			Fresh:    IsFresh(r.LastSeen, window, now),
			LastSeen: r.LastSeen,
		}
	}
	return out
}

// Stale returns the ids of the results that are not fresh.
func Stale(results []domain.EvaluationResult) []string {
	var ids []string
	for _, r := range results {
		if !r.Fresh {
			ids = append(ids, r.SensorID)
		}
	}
	return ids
}
