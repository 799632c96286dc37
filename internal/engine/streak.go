package engine

import (
	"fleetwatch/internal/models"
	"fleetwatch/internal/timeseries"
)

// StreakResult reports whether a qualifying violation streak is active at
// the newest sample of the window, where it started, and the most extreme
// value observed during it.
type StreakResult struct {
	Violating   bool
	StreakStart int64
	Peak        float64
}

// EvaluateStreak walks a chronologically ordered sample window and
// reports whether the run of consecutive violating ticks ending at the
// newest sample has reached minDuration.
//
// A missing sample resets the running streak: gaps are never bridged.
// The asymmetry is deliberate: opening an alert requires a sustained
// unbroken run, while a single non-qualifying or absent sample at the
// window's end is enough to stop violating immediately.
//
// StreakStart is the first tick of the current unbroken run. Peak tracks
// the maximum over the run for gt/gte, the minimum for lt/lte, and the
// last value for eq/ne.
func EvaluateStreak(op models.Operator, threshold float64, minDuration int, samples []timeseries.Sample) StreakResult {
	if minDuration < 1 {
		minDuration = 1
	}

	var (
		streak int
		start  int64
		peak   float64
	)

	for _, s := range samples {
		if !s.Present || !op.Compare(s.Value, threshold) {
			streak = 0
			continue
		}

		if streak == 0 {
			start = s.Tick
			peak = s.Value
		} else {
			peak = op.MoreExtreme(peak, s.Value)
		}
		streak++
	}

	if streak < minDuration {
		return StreakResult{}
	}
	return StreakResult{Violating: true, StreakStart: start, Peak: peak}
}
