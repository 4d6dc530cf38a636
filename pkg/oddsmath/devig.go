package oddsmath

import (
	"math"
	"sort"
)

// Method identifies a devig method.
type Method string

const (
	MethodMultiplicative Method = "multiplicative"
	MethodAdditive       Method = "additive"
	MethodPower          Method = "power"
	MethodShin           Method = "shin"
)

const (
	devigTolerance     = 1e-4
	devigMaxIterations = 100
)

// FairPriceSet holds the no-vig decimal prices produced by each method,
// keyed by outcome label.
type FairPriceSet struct {
	Multiplicative map[string]float64
	Additive       map[string]float64
	Power          map[string]float64
	Shin           map[string]float64
}

// ByMethod returns the prices for one method. Unknown methods fall back to
// power, which is also the default the engine trusts.
func (s FairPriceSet) ByMethod(m Method) map[string]float64 {
	switch m {
	case MethodMultiplicative:
		return s.Multiplicative
	case MethodAdditive:
		return s.Additive
	case MethodShin:
		return s.Shin
	default:
		return s.Power
	}
}

// Devig strips the bookmaker margin from a set of decimal prices and
// returns the fair price per outcome for all four methods.
//
// Non-positive prices carry no probability mass and are dropped from the
// output. An input with no usable prices is passed through unchanged.
func Devig(prices map[string]float64) FairPriceSet {
	// 保持确定性：按 outcome 名称排序后再进入迭代算法
	keys := make([]string, 0, len(prices))
	for k, v := range prices {
		if v > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := FairPriceSet{
		Multiplicative: make(map[string]float64, len(keys)),
		Additive:       make(map[string]float64, len(keys)),
		Power:          make(map[string]float64, len(keys)),
		Shin:           make(map[string]float64, len(keys)),
	}
	if len(keys) == 0 {
		return out
	}

	probs := make([]float64, len(keys))
	for i, k := range keys {
		probs[i] = 1 / prices[k]
	}

	assign := func(dst map[string]float64, adjusted []float64) {
		for i, k := range keys {
			dst[k] = 1 / adjusted[i]
		}
	}
	assign(out.Multiplicative, adjustMultiplicative(probs))
	assign(out.Additive, adjustAdditive(probs))
	assign(out.Power, adjustPower(probs))
	assign(out.Shin, adjustShin(probs))
	return out
}

// adjustMultiplicative normalizes implied probabilities to sum to 1.
func adjustMultiplicative(probs []float64) []float64 {
	var booksum float64
	for _, p := range probs {
		booksum += p
	}
	out := make([]float64, len(probs))
	for i, p := range probs {
		out[i] = p / booksum
	}
	return out
}

// adjustAdditive subtracts an equal share of the overround from each outcome.
func adjustAdditive(probs []float64) []float64 {
	n := float64(len(probs))
	var overround float64
	for _, p := range probs {
		overround += p
	}
	overround -= 1
	out := make([]float64, len(probs))
	for i, p := range probs {
		out[i] = p - overround/n
	}
	return out
}

// adjustPower solves for k such that sum(p_i^k) = 1 by Newton-Raphson and
// raises each probability to that power.
func adjustPower(probs []float64) []float64 {
	k := 1.0
	adjusted := make([]float64, len(probs))
	for i, p := range probs {
		adjusted[i] = math.Pow(p, k)
	}

	for iter := 0; iter < devigMaxIterations; iter++ {
		var overround, denominator float64
		for i, p := range probs {
			overround += adjusted[i]
			denominator += math.Log(p) * math.Pow(p, k)
		}
		overround -= 1
		k -= overround / denominator
		for i, p := range probs {
			adjusted[i] = math.Pow(p, k)
		}
		if math.Abs(overround) < devigTolerance {
			break
		}
	}
	return adjusted
}

// adjustShin applies Shin's insider-trading model. Two outcomes have a
// closed form; larger markets solve for z by Newton-Raphson.
func adjustShin(probs []float64) []float64 {
	n := len(probs)
	var overround float64
	for _, p := range probs {
		overround += p
	}

	a := make([]float64, n)
	for i, p := range probs {
		a[i] = p * p / overround
	}

	var z float64
	if n == 2 {
		diff := probs[0] - probs[1]
		diffSq := diff * diff
		z = ((overround - 1) * (diffSq - overround)) / (overround * (diffSq - 1))
	} else {
		b := 1 / float64(n-2)
		for iter := 0; iter < devigMaxIterations; iter++ {
			var sumC, sumD float64
			for _, ai := range a {
				c := math.Sqrt(z*z + 4*(1-z)*ai)
				sumC += c
				sumD += (z - 2*ai) / c
			}
			cond := z - b*(sumC-2)
			denominator := 1 - b*sumD
			z -= cond / denominator
			if math.Abs(cond) < devigTolerance {
				break
			}
		}
	}

	out := make([]float64, n)
	for i, ai := range a {
		out[i] = (math.Sqrt(z*z+4*(1-z)*ai) - z) / (2 * (1 - z))
	}
	return out
}
