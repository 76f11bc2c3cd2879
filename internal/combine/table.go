package combine

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Table is a tab-delimited table with a header row.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable reads a tab-delimited table. Short rows are padded with empty
// cells.
func ReadTable(r io.Reader) (*Table, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	t := &Table{}
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if t.Header == nil {
			t.Header = fields
			continue
		}
		for len(fields) < len(t.Header) {
			fields = append(fields, "")
		}
		t.Rows = append(t.Rows, fields)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	if t.Header == nil {
		return nil, fmt.Errorf("read table: empty input")
	}
	return t, nil
}

// Column returns the index of a column, or an error naming the header.
func (t *Table) Column(name string) (int, error) {
	for i, h := range t.Header {
		if h == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("column %q not found in header %v", name, t.Header)
}

// Lookup maps the values of the key column to the values of the value column.
func (t *Table) Lookup(key, value string) (map[string]string, error) {
	ki, err := t.Column(key)
	if err != nil {
		return nil, err
	}
	vi, err := t.Column(value)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(t.Rows))
	for _, row := range t.Rows {
		out[row[ki]] = row[vi]
	}
	return out, nil
}

// Join appends a column filled from values by each row's key. Rows whose key
// is absent get NA.
func (t *Table) Join(key, name string, values map[string]string) error {
	ki, err := t.Column(key)
	if err != nil {
		return err
	}
	t.Header = append(t.Header, name)
	for i, row := range t.Rows {
		v, ok := values[row[ki]]
		if !ok || v == "" {
			v = "NA"
		}
		t.Rows[i] = append(row, v)
	}
	return nil
}

// AddFisher appends a column holding the Fisher combination of the named
// p-value columns. Cells that are empty or not numbers count as missing.
func (t *Table) AddFisher(columns []string, name string) error {
	idx := make([]int, len(columns))
	for i, c := range columns {
		ci, err := t.Column(c)
		if err != nil {
			return err
		}
		idx[i] = ci
	}

	t.Header = append(t.Header, name)
	ps := make([]float64, len(idx))
	for r, row := range t.Rows {
		for i, ci := range idx {
			ps[i] = parsePValue(row[ci])
		}
		p, err := Fisher(ps)
		if err != nil {
			return fmt.Errorf("row %d: %w", r+2, err)
		}
		cell := "NA"
		if !math.IsNaN(p) {
			cell = strconv.FormatFloat(p, 'g', -1, 64)
		}
		t.Rows[r] = append(row, cell)
	}
	return nil
}

// Write writes the table in tab-delimited form.
func (t *Table) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(t.Header, "\t") + "\n"); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if _, err := bw.WriteString(strings.Join(row, "\t") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func parsePValue(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
