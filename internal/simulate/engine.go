// Package simulate estimates how unusual an observed severity total is by
// Monte Carlo simulation of randomly placed mutations.
package simulate

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/inodb/vibe-severity/internal/sampler"
)

var (
	// ErrEmptyInput is returned when there are no sites or no severities.
	ErrEmptyInput = errors.New("empty rates or severity input")
	// ErrInvalidSampleSize is returned when fewer than one mutation is requested per draw.
	ErrInvalidSampleSize = errors.New("sample size must be at least 1")
	// ErrMismatchedLengths is returned when the site and severity counts differ.
	ErrMismatchedLengths = errors.New("rates and severity lengths differ")
	// ErrInvalidIterations is returned when fewer than one iteration is requested.
	ErrInvalidIterations = errors.New("iterations must be at least 1")
)

// NewRand returns a PCG generator for one simulation run. Concurrent runs
// must use distinct streams so their draws are not correlated.
func NewRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

func validate(dist *sampler.Distribution, severities []float64, n, iterations int) error {
	if dist == nil || dist.Len() == 0 || len(severities) == 0 {
		return ErrEmptyInput
	}
	if dist.Len() != len(severities) {
		return fmt.Errorf("%w: %d sites, %d severities", ErrMismatchedLengths, dist.Len(), len(severities))
	}
	if n < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidSampleSize, n)
	}
	if iterations < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidIterations, iterations)
	}
	if dist.TotalWeight() <= 0 {
		return sampler.ErrEmptyDistribution
	}
	return nil
}

// Run draws iterations configurations of n sites (with replacement) and
// returns the summed severity of each. severities[i] is the severity of
// dist.At(i).
func Run(dist *sampler.Distribution, severities []float64, n, iterations int, r *rand.Rand) ([]float64, error) {
	if err := validate(dist, severities, n, iterations); err != nil {
		return nil, err
	}

	null := make([]float64, iterations)
	for it := range null {
		var total float64
		for range n {
			total += severities[dist.Draw(r)]
		}
		null[it] = total
	}
	return null, nil
}

// Analyse simulates the null distribution for n mutations and returns the
// probability of a total severity strictly greater than observed.
func Analyse(dist *sampler.Distribution, severities []float64, observed float64, n, iterations int, seed uint64) (float64, error) {
	null, err := Run(dist, severities, n, iterations, NewRand(seed, 0))
	if err != nil {
		return 0, err
	}
	return Estimate(null, observed), nil
}
