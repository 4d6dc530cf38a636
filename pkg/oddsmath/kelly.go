package oddsmath

import "math"

// KellyFraction returns the full-Kelly bankroll fraction f* = (b·p − q) / b
// for decimal odds and win probability p, where b = odds − 1 and q = 1 − p.
// A non-positive edge returns 0 (no bet).
func KellyFraction(odds, p float64) float64 {
	b := odds - 1
	if b <= 0 || p <= 0 || p >= 1 {
		return 0
	}
	q := 1 - p
	f := (b*p - q) / b
	if f <= 0 {
		return 0
	}
	return f
}

// RoundStake snaps a stake to a denomination a human bettor would type.
// Bigger stakes round to coarser steps so the amounts stay unremarkable.
func RoundStake(stake float64) float64 {
	if stake <= 0 {
		return 0
	}
	var step float64
	switch {
	case stake < 20:
		step = 5
	case stake < 100:
		step = 10
	case stake < 200:
		step = 25
	case stake < 1000:
		step = 50
	case stake < 5000:
		step = 100
	case stake < 10000:
		step = 250
	default:
		step = 500
	}
	return math.Round(stake/step) * step
}
