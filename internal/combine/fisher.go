// Package combine merges independent per-gene p-values, such as the severity
// p-value with enrichment and clustering tests run elsewhere.
package combine

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInvalidPValue is returned for p-values above 1 or below 0.
var ErrInvalidPValue = errors.New("p-value out of range")

// Fisher combines independent p-values with Fisher's method. NaN entries are
// skipped; with no remaining entries the result is NaN. Zero p-values are
// treated as the smallest positive float so the statistic stays finite.
func Fisher(ps []float64) (float64, error) {
	var stat float64
	k := 0
	for _, p := range ps {
		if math.IsNaN(p) {
			continue
		}
		if p < 0 || p > 1 {
			return math.NaN(), fmt.Errorf("%w: %g", ErrInvalidPValue, p)
		}
		stat += -2 * math.Log(math.Max(p, math.SmallestNonzeroFloat64))
		k++
	}
	if k == 0 {
		return math.NaN(), nil
	}
	return distuv.ChiSquared{K: float64(2 * k)}.Survival(stat), nil
}
