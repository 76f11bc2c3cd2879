package output

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-severity/internal/analysis"
)

func TestTabWriter_WriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Flush())

	assert.Equal(t, "symbol\tp_value\n", buf.String())
}

func TestTabWriter_Write(t *testing.T) {
	tests := []struct {
		name   string
		result analysis.Result
		want   string
	}{
		{"small p", analysis.Result{Symbol: "KRAS", PValue: 1e-6}, "KRAS\t1e-06\n"},
		{"fraction", analysis.Result{Symbol: "TP53", PValue: 0.0125}, "TP53\t0.0125\n"},
		{"one", analysis.Result{Symbol: "TTN", PValue: 1}, "TTN\t1\n"},
		{"failed gene", analysis.Result{Symbol: "NOPE", PValue: math.NaN(), Err: errors.New("unresolved")}, "NOPE\tNA\n"},
		{"nan without error", analysis.Result{Symbol: "ODD", PValue: math.NaN()}, "ODD\tNA\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := NewTabWriter(&buf)
			require.NoError(t, w.Write(tt.result))
			require.NoError(t, w.Flush())
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestTabWriter_Detail(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)
	w.SetDetail(true)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Write(analysis.Result{Symbol: "BRAF", NMutations: 3, Observed: 61.5, PValue: 0.002}))
	require.NoError(t, w.Write(analysis.Result{Symbol: "NOPE", NMutations: 1, PValue: math.NaN(), Err: errors.New("x")}))
	require.NoError(t, w.Flush())

	assert.Equal(t,
		"symbol\tp_value\tn_mutations\tobserved\n"+
			"BRAF\t0.002\t3\t61.5\n"+
			"NOPE\tNA\t1\tNA\n",
		buf.String())
}

func TestFormatPValue(t *testing.T) {
	assert.Equal(t, "NA", FormatPValue(math.NaN()))
	assert.Equal(t, "5e-324", FormatPValue(math.SmallestNonzeroFloat64))
	assert.Equal(t, "0.5", FormatPValue(0.5))
}
