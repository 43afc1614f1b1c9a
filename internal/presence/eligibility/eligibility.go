package eligibility

import "time"

// Input carries server-tracked timing only; client dwell claims never reach here.
type Input struct {
	// LastIncrementAt is zero when the record never received an increment.
	LastIncrementAt       time.Time
	Now                   time.Time
	DwellTimeMs           int64
	IntervalMs            int64
	RequiredDwellFraction float64
	// Slack is subtracted from the interval on the last-increment check. A
	// ticker-driven caller passes its expected lateness so a late tick does not
	// push the next increment out by a whole interval.
	Slack time.Duration
}

// Eligible reports whether a dwelling session may receive its next increment.
func Eligible(in Input) bool {
	threshold := in.RequiredDwellFraction * float64(in.IntervalMs)
	if float64(in.DwellTimeMs) < threshold {
		return false
	}
	if in.LastIncrementAt.IsZero() {
		return true
	}
	return in.Now.Sub(in.LastIncrementAt)+in.Slack >= time.Duration(in.IntervalMs)*time.Millisecond
}
