package oddsmath

// NoFairPrice is the sentinel EV returned when no fair price is available
// for the requested outcome. It guarantees the bet is never taken.
const NoFairPrice = -100.0

// CalculateEV returns the expected value, in percent, of taking decimal
// odds against a fair (no-vig) price for the same outcome.
//
//	CalculateEV(2.0, 1.95) ≈ 2.564
func CalculateEV(odds, fairPrice float64) float64 {
	if fairPrice <= 0 {
		return NoFairPrice
	}
	fairProbability := 1 / fairPrice
	return (fairProbability*odds - 1) * 100
}

// EVForOutcome looks up the fair price of one outcome in a devigged price
// map and scores the offered odds against it. A missing outcome yields the
// NoFairPrice sentinel rather than an error.
func EVForOutcome(fair map[string]float64, outcome string, odds float64) float64 {
	price, ok := fair[outcome]
	if !ok {
		return NoFairPrice
	}
	return CalculateEV(odds, price)
}
