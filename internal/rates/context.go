package rates

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ContextRates holds per-base mutation probabilities keyed by the
// trinucleotide context and the substituted middle base.
type ContextRates map[string]map[byte]float64

// Rate returns the probability that the middle base of context mutates to
// alt, or 0 when the context is unknown.
func (cr ContextRates) Rate(context string, alt byte) float64 {
	return cr[context][alt]
}

// Len returns the number of contexts in the table.
func (cr ContextRates) Len() int {
	return len(cr)
}

func (cr ContextRates) set(from string, alt byte, rate float64) {
	m, ok := cr[from]
	if !ok {
		m = make(map[byte]float64, 3)
		cr[from] = m
	}
	m[alt] = rate
}

// LoadContextRates reads a trinucleotide mutation rate table from a file.
func LoadContextRates(path string) (ContextRates, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rates file: %w", err)
	}
	defer f.Close()

	return ParseContextRates(f)
}

// ParseContextRates parses whitespace-separated "from to mu_snp" lines, e.g.
//
//	from	to	mu_snp
//	AAA	ACA	1.1e-08
//
// A header line is optional. Each entry is also stored under its
// reverse-complement context so lookups work on either strand; explicit
// entries take precedence over derived ones.
func ParseContextRates(r io.Reader) (ContextRates, error) {
	explicit := make(ContextRates)
	scanner := bufio.NewScanner(r)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("rates line %d: expected 3 fields, got %d", lineNum, len(fields))
		}
		rate, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			if lineNum == 1 {
				continue // header
			}
			return nil, fmt.Errorf("rates line %d: parse rate %q: %w", lineNum, fields[2], err)
		}

		from, to := strings.ToUpper(fields[0]), strings.ToUpper(fields[1])
		if len(from) != 3 || len(to) != 3 || from[0] != to[0] || from[2] != to[2] || from[1] == to[1] {
			return nil, fmt.Errorf("rates line %d: invalid context change %s>%s", lineNum, from, to)
		}
		explicit.set(from, to[1], rate)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan rates: %w", err)
	}

	out := make(ContextRates, 2*len(explicit))
	for from, alts := range explicit {
		rc := ReverseComplement(from)
		for alt, rate := range alts {
			if _, ok := explicit[rc][Complement(alt)]; !ok {
				out.set(rc, Complement(alt), rate)
			}
		}
	}
	for from, alts := range explicit {
		for alt, rate := range alts {
			out.set(from, alt, rate)
		}
	}
	return out, nil
}
