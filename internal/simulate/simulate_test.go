package simulate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-severity/internal/sampler"
)

func testRates(t *testing.T) (*sampler.Distribution, []float64) {
	t.Helper()
	rates := sampler.New()
	require.NoError(t, rates.Add(200, "G", 1e-5))
	require.NoError(t, rates.Add(201, "T", 2e-5))
	require.NoError(t, rates.Add(202, "G", 1e-5))
	return rates, []float64{5, 10, 5}
}

func TestAnalyse(t *testing.T) {
	rates, severity := testRates(t)

	// observed falls at the midpoint of the null distribution
	p, err := Analyse(rates, severity, 8, 1, 100000, 42)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p, 0.02)

	// two de novos: only drawing the severity-10 site twice exceeds 15
	p, err = Analyse(rates, severity, 15, 2, 100000, 42)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, p, 0.02)
}

func TestAnalyse_ExtremePValue(t *testing.T) {
	rates, severity := testRates(t)

	const iterations = 100000
	p, err := Analyse(rates, severity, 20, 1, iterations, 42)
	require.NoError(t, err)
	assert.Greater(t, p, 0.0, "tail extrapolation must not report zero")
	assert.Less(t, p, 0.1/iterations, "extrapolated p should be well below the resolution floor")
}

func TestAnalyse_Errors(t *testing.T) {
	rates, _ := testRates(t)

	tests := []struct {
		name       string
		dist       *sampler.Distribution
		severities []float64
		n          int
		iterations int
		want       error
	}{
		{"empty", sampler.New(), nil, 1, 10000, ErrEmptyInput},
		{"nil distribution", nil, []float64{1}, 1, 10000, ErrEmptyInput},
		{"sample size zero", rates, []float64{5, 10, 5}, 0, 10000, ErrInvalidSampleSize},
		{"mismatched lengths", rates, []float64{5, 10}, 1, 10000, ErrMismatchedLengths},
		{"zero iterations", rates, []float64{5, 10, 5}, 1, 0, ErrInvalidIterations},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Analyse(tt.dist, tt.severities, 8, tt.n, tt.iterations, 1)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRun_ZeroTotalWeight(t *testing.T) {
	rates := sampler.New()
	require.NoError(t, rates.Add(100, "A", 0))

	_, err := Run(rates, []float64{1}, 1, 10, NewRand(1, 0))
	assert.ErrorIs(t, err, sampler.ErrEmptyDistribution)
}

func TestRun_Reproducible(t *testing.T) {
	rates, severity := testRates(t)

	a, err := Run(rates, severity, 3, 5000, NewRand(7, 3))
	require.NoError(t, err)
	b, err := Run(rates, severity, 3, 5000, NewRand(7, 3))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, Estimate(a, 20), Estimate(b, 20))

	c, err := Run(rates, severity, 3, 5000, NewRand(7, 4))
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "distinct streams should give distinct draws")
}

func TestRun_ValuesAreSumsOfSeverities(t *testing.T) {
	rates, severity := testRates(t)

	null, err := Run(rates, severity, 2, 1000, NewRand(1, 1))
	require.NoError(t, err)
	require.Len(t, null, 1000)
	for _, v := range null {
		assert.Contains(t, []float64{10, 15, 20}, v)
	}
}

func TestEstimate(t *testing.T) {
	tests := []struct {
		name     string
		null     []float64
		observed float64
		want     float64
	}{
		{"half exceed", []float64{1, 2, 3, 4}, 2.5, 0.5},
		{"ties do not exceed", []float64{1, 2, 2, 3}, 2, 0.25},
		{"all exceed", []float64{5, 6, 7, 8}, 0, 1},
		{"constant null equal to observed", []float64{3, 3, 3}, 3, 1},
		{"constant null below observed", []float64{3, 3, 3}, 4, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Estimate(tt.null, tt.observed), 1e-12)
		})
	}
}

func TestEstimate_Empty(t *testing.T) {
	assert.True(t, math.IsNaN(Estimate(nil, 1)))
}

func TestEstimate_SkewedTail(t *testing.T) {
	rates := sampler.New()
	require.NoError(t, rates.Add(1, "A", 0.90))
	require.NoError(t, rates.Add(2, "A", 0.09))
	require.NoError(t, rates.Add(3, "A", 0.01))
	severity := []float64{1, 10, 30}

	null, err := Run(rates, severity, 2, 20000, NewRand(11, 0))
	require.NoError(t, err)

	tail := 0
	for _, v := range null {
		if v > 20 {
			tail++
		}
	}
	require.Positive(t, tail, "the null should have a right tail")

	floor := 1.0 / float64(len(null))
	near := Estimate(null, 61)
	far := Estimate(null, 120)
	assert.Greater(t, near, 0.0)
	assert.LessOrEqual(t, near, floor)
	assert.LessOrEqual(t, far, near, "tail probability must not increase with observed")
}
