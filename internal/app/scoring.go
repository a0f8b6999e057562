package app

import (
	"math"
	"time"
)

const (
	basePoints   = 10
	wrongPenalty = -5
	bonusWindow  = 10 * time.Second
)

// Score maps one answer to its point delta. A correct answer earns 10 points
// plus a speed bonus of round(10 - latencySeconds), linear down to zero at
// exactly ten seconds; slower correct answers earn the base 10 only. A wrong
// selection costs a flat 5. Passes never reach here: they score zero and are
// recorded with the passed flag instead.
func Score(correct bool, latency time.Duration) int {
	if !correct {
		return wrongPenalty
	}
	secs := latency.Seconds()
	if secs > bonusWindow.Seconds() {
		return basePoints
	}
	bonus := math.Round(math.Max(0, bonusWindow.Seconds()-secs))
	return basePoints + int(bonus)
}
