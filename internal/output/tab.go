// Package output writes per-gene results.
package output

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/inodb/vibe-severity/internal/analysis"
)

// NA marks a gene whose p-value could not be computed.
const NA = "NA"

// TabWriter writes results as tab-delimited rows of symbol and p-value.
type TabWriter struct {
	w       *bufio.Writer
	detail  bool
	columns []string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		w:       bufio.NewWriter(w),
		columns: []string{"symbol", "p_value"},
	}
}

// SetDetail adds the mutation count and observed severity columns.
func (tw *TabWriter) SetDetail(detail bool) {
	tw.detail = detail
	tw.columns = []string{"symbol", "p_value"}
	if detail {
		tw.columns = append(tw.columns, "n_mutations", "observed")
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes one result row. Failed genes get NA in place of numbers.
func (tw *TabWriter) Write(r analysis.Result) error {
	values := []string{r.Symbol, formatFloat(r.PValue, r.Err)}
	if tw.detail {
		values = append(values, strconv.Itoa(r.NMutations), formatFloat(r.Observed, r.Err))
	}
	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

func formatFloat(v float64, err error) string {
	if err != nil {
		return NA
	}
	return FormatPValue(v)
}

// FormatPValue renders v with the fewest digits that round-trip. NaN is
// rendered as NA.
func FormatPValue(v float64) string {
	if math.IsNaN(v) {
		return NA
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
