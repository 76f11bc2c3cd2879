// Package constraint provides regional missense constraint lookups.
package constraint

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/inodb/vibe-severity/internal/interval"
	"github.com/inodb/vibe-severity/internal/severity"
)

// Regions holds the constrained sub-regions of one gene.
type Regions struct {
	tree *interval.Tree[struct{}]
}

// Constrained reports whether pos lies in a constrained region.
// A nil Regions has no constrained positions.
func (r *Regions) Constrained(pos int64) bool {
	if r == nil || r.tree == nil {
		return false
	}
	return r.tree.Any(pos)
}

// Len returns the number of regions.
func (r *Regions) Len() int {
	if r == nil || r.tree == nil {
		return 0
	}
	return r.tree.Len()
}

var _ severity.ConstraintRegions = (*Regions)(nil)

// Table maps gene symbol to its constrained regions.
type Table map[string]*Regions

// Regions returns the constrained regions of a gene. Genes absent from the
// table have none.
func (t Table) Regions(symbol string) *Regions {
	if r, ok := t[symbol]; ok {
		return r
	}
	return &Regions{}
}

// Load reads a regional constraint TSV file.
func Load(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open constraint file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads regional constraint rows. The header must name a gene column
// ("gene" or "symbol"), a start column ("genomic_start" or "start") and an
// end column ("genomic_end" or "end"). Each row is a closed constrained
// interval; rows of the same gene are merged into one lookup structure.
func Parse(r io.Reader) (Table, error) {
	scanner := bufio.NewScanner(r)

	// Read header to find column indices
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading constraint file: %w", err)
		}
		return nil, fmt.Errorf("constraint file: empty file")
	}
	header := strings.Split(strings.TrimPrefix(scanner.Text(), "#"), "\t")

	geneIdx, startIdx, endIdx := -1, -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "gene", "symbol":
			if geneIdx < 0 {
				geneIdx = i
			}
		case "genomic_start", "start":
			startIdx = i
		case "genomic_end", "end":
			endIdx = i
		}
	}
	if geneIdx < 0 {
		return nil, fmt.Errorf("constraint file: missing 'gene' column")
	}
	if startIdx < 0 {
		return nil, fmt.Errorf("constraint file: missing 'genomic_start' column")
	}
	if endIdx < 0 {
		return nil, fmt.Errorf("constraint file: missing 'genomic_end' column")
	}

	byGene := make(map[string][]interval.Interval[struct{}])
	line := 1
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) <= max(geneIdx, startIdx, endIdx) {
			continue
		}
		gene := strings.TrimSpace(fields[geneIdx])
		if gene == "" {
			continue
		}

		start, err := parseCoord(fields[startIdx])
		if err != nil {
			return nil, fmt.Errorf("constraint file line %d: start: %w", line, err)
		}
		end, err := parseCoord(fields[endIdx])
		if err != nil {
			return nil, fmt.Errorf("constraint file line %d: end: %w", line, err)
		}
		if end < start {
			start, end = end, start
		}
		byGene[gene] = append(byGene[gene], interval.Interval[struct{}]{Start: start, End: end})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading constraint file: %w", err)
	}

	table := make(Table, len(byGene))
	for gene, ivs := range byGene {
		table[gene] = &Regions{tree: interval.Build(ivs)}
	}
	return table, nil
}

// parseCoord accepts integer coordinates, including those written as
// floats ("1234.0") by some exports.
func parseCoord(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
