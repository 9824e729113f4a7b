package ragquery

import (
	"math"
	"sort"
	"time"

	"ragcore/internal/ragstore"
)

const secondsPerDay = 86400

// defaultDecayDays is used when a result's document_type has no entry in
// the configured per-type decay map.
const defaultDecayDays = 90

// RecencyBoost multiplies each result's score by 0.5^(age_days/decay_days),
// where decay_days is looked up by the result's document_type metadata
// (falling back to defaultDecayDays), re-sorting descending afterward.
// Results without a created_at_timestamp are left unboosted, matching the
// original RecencyBoostPostprocessor — a document whose age can't be
// determined shouldn't be penalized for it.
func RecencyBoost(results []ragstore.VectorResult, now time.Time, decayDays map[string]int) []ragstore.VectorResult {
	out := make([]ragstore.VectorResult, len(results))
	copy(out, results)
	for i, r := range out {
		ts, ok := createdAtTimestamp(r.Metadata)
		if !ok {
			continue
		}
		ageDays := float64(now.Unix()-ts) / secondsPerDay
		if ageDays < 0 {
			ageDays = 0
		}
		decay := defaultDecayDays
		if dt, ok := r.Metadata["document_type"].(string); ok {
			if d, ok := decayDays[dt]; ok && d > 0 {
				decay = d
			}
		}
		out[i].Score = r.Score * math.Pow(0.5, ageDays/float64(decay))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func createdAtTimestamp(md map[string]any) (int64, bool) {
	v, ok := md["created_at_timestamp"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
