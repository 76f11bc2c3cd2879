package combine

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFisher(t *testing.T) {
	tests := []struct {
		name string
		ps   []float64
		want float64
	}{
		// -2 ln p = X with 2 df has survival exp(-X/2) = p
		{"single", []float64{0.03}, 0.03},
		{"two halves", []float64{0.5, 0.5}, 0.5 * (1 + math.Log(4)) / 2},
		{"nan skipped", []float64{math.NaN(), 0.2}, 0.2},
		{"ones", []float64{1, 1, 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Fisher(tt.ps)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestFisherEdgeCases(t *testing.T) {
	got, err := Fisher(nil)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got))

	got, err = Fisher([]float64{math.NaN(), math.NaN()})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got))

	got, err = Fisher([]float64{0, 0.5})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got, 0.0)
	assert.Less(t, got, 1e-300)

	_, err = Fisher([]float64{0.5, 1.2})
	assert.ErrorIs(t, err, ErrInvalidPValue)
	_, err = Fisher([]float64{-0.1})
	assert.ErrorIs(t, err, ErrInvalidPValue)
}

func TestFisherSmallerInputsGiveSmallerResult(t *testing.T) {
	a, err := Fisher([]float64{0.01, 0.2})
	require.NoError(t, err)
	b, err := Fisher([]float64{0.01, 0.02})
	require.NoError(t, err)
	assert.Less(t, b, a)
}

func TestTableJoinAndFisher(t *testing.T) {
	enrichment, err := ReadTable(strings.NewReader(
		"hgnc\tp_func\tp_clust\n" +
			"ARID1B\t0.01\t0.5\n" +
			"PPM1D\tNA\t0.2\n" +
			"AUTS2\t\t\n"))
	require.NoError(t, err)

	severity, err := ReadTable(strings.NewReader("symbol\tp_value\nARID1B\t0.01\nPPM1D\tNA\n"))
	require.NoError(t, err)
	values, err := severity.Lookup("symbol", "p_value")
	require.NoError(t, err)

	require.NoError(t, enrichment.Join("hgnc", "p_severity", values))
	require.NoError(t, enrichment.AddFisher([]string{"p_func", "p_severity", "p_clust"}, "p_combined"))

	assert.Equal(t, []string{"hgnc", "p_func", "p_clust", "p_severity", "p_combined"}, enrichment.Header)
	require.Len(t, enrichment.Rows, 3)

	want, err := Fisher([]float64{0.01, 0.01, 0.5})
	require.NoError(t, err)
	assert.Equal(t, "ARID1B", enrichment.Rows[0][0])
	got := parsePValue(enrichment.Rows[0][4])
	assert.InDelta(t, want, got, 1e-12)

	assert.Equal(t, "NA", enrichment.Rows[1][3])
	assert.InDelta(t, 0.2, parsePValue(enrichment.Rows[1][4]), 1e-12, "only p_clust is present")

	assert.Equal(t, "NA", enrichment.Rows[2][3], "missing key")
	assert.Equal(t, "NA", enrichment.Rows[2][4])

	var buf bytes.Buffer
	require.NoError(t, enrichment.Write(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 4)
	assert.Equal(t, "hgnc\tp_func\tp_clust\tp_severity\tp_combined", lines[0])
}

func TestTableErrors(t *testing.T) {
	_, err := ReadTable(strings.NewReader(""))
	assert.Error(t, err)

	tbl, err := ReadTable(strings.NewReader("a\tb\n1\t2\n"))
	require.NoError(t, err)
	assert.Error(t, tbl.AddFisher([]string{"c"}, "x"))
	assert.Error(t, tbl.Join("c", "x", nil))
	_, err = tbl.Lookup("a", "z")
	assert.Error(t, err)

	tbl, err = ReadTable(strings.NewReader("a\tb\n1.5\t0.2\n"))
	require.NoError(t, err)
	assert.ErrorIs(t, tbl.AddFisher([]string{"a", "b"}, "x"), ErrInvalidPValue)
}
