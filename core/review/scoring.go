package review

import (
	"math"
	"strconv"
)

// likert bounds
const (
	likertMin = 1
	likertMax = 5
)

// parseLikert parses a response value as a likert rating in [1,5].
// Anything unparseable or out of range is reported as not-ok and skipped
// by the aggregator rather than poisoning the mean.
func parseLikert(value string) (float64, bool) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	if v < likertMin || v > likertMax {
		return 0, false
	}
	return v, true
}

// DisplayScore maps a set of likert values onto the published 0-100 scale:
// round-half-up(mean × 20), so 5 → 100 and 1 → 20. The mean is flat over
// every value supplied, not a mean of per-assignment means. With no values
// there is no score; nil, never zero.
func DisplayScore(values []float64) *int {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	score := int(math.Round(mean * 20))
	return &score
}
