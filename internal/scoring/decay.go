package scoring

import (
	"math"
	"time"
)

// Decay maps elapsed time to an exponential discount factor in (0, 1]:
// 2^(-(now-event)/halfLife). It equals 1 when the event is at (or after)
// now, halves every halfLife, and never reaches 0. Deterministic in its
// three inputs, which is what keeps the learned weight reproducible for a
// fixed now.
func Decay(nowMS, eventMS int64, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		return 1
	}
	elapsed := nowMS - eventMS
	if elapsed <= 0 {
		return 1
	}
	return math.Exp2(-float64(elapsed) / float64(halfLife.Milliseconds()))
}
