package simulate

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// minSkew is the sample skewness below which the null is treated as
// symmetric. A Pearson type III fit with smaller skew has a shape above
// 1600 and is indistinguishable from a normal.
const minSkew = 0.05

// Estimate returns the proportion of null values strictly greater than
// observed. Ties do not count as exceeding.
//
// When no null value exceeds observed, the tail is extrapolated from a
// distribution fitted to the null sample by moments, so the result is a
// positive value at or below the 1/len(null) resolution of the simulation.
// A constant null sample cannot be fitted: the result is 1 when observed
// equals the constant and 1/(len(null)+1) otherwise.
//
// Estimate returns NaN for an empty null sample.
func Estimate(null []float64, observed float64) float64 {
	if len(null) == 0 {
		return math.NaN()
	}

	exceed := 0
	lo, hi := null[0], null[0]
	for _, v := range null {
		if v > observed {
			exceed++
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	if exceed > 0 {
		return float64(exceed) / float64(len(null))
	}
	if lo == hi {
		if observed == lo {
			return 1
		}
		return 1 / float64(len(null)+1)
	}
	return tailProbability(null, observed)
}

// tailProbability fits a shifted Gamma (Pearson type III) matched to the
// mean, variance and skewness of the null sample and returns P(X > observed).
// Non-positive or negligible skew falls back to a normal with the same mean
// and variance.
func tailProbability(null []float64, observed float64) float64 {
	mean, variance := stat.MeanVariance(null, nil)
	sd := math.Sqrt(variance)
	skew := stat.Skew(null, nil)

	var p float64
	if skew > minSkew {
		shape := 4 / (skew * skew)
		scale := sd * skew / 2
		loc := mean - shape*scale
		p = distuv.Gamma{Alpha: shape, Beta: 1 / scale}.Survival(observed - loc)
	} else {
		p = distuv.Normal{Mu: mean, Sigma: sd}.Survival(observed)
	}

	if math.IsNaN(p) || p < math.SmallestNonzeroFloat64 {
		p = math.SmallestNonzeroFloat64
	}
	return math.Min(p, 1/float64(len(null)))
}
