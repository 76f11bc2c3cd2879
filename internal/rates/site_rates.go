// Package rates computes per-site, per-allele mutation probabilities of a
// transcript from a trinucleotide context rate table.
package rates

import (
	"errors"
	"fmt"
	"sort"

	"github.com/inodb/vibe-severity/internal/cache"
	"github.com/inodb/vibe-severity/internal/sampler"
)

// Category is a consequence class of a single-base substitution.
type Category string

// Consequence categories produced by SiteRates.
const (
	Missense   Category = "missense"
	Nonsense   Category = "nonsense"
	Synonymous Category = "synonymous"
	SpliceLoF  Category = "splice_lof"
)

// AllCategories lists every category SiteRates produces.
var AllCategories = []Category{Missense, Nonsense, SpliceLoF, Synonymous}

// ErrNoCodingSequence is returned when a transcript has no usable CDS.
var ErrNoCodingSequence = errors.New("transcript has no coding sequence")

var bases = [4]byte{'A', 'C', 'G', 'T'}

// Mask is a set of genomic positions already counted by an earlier
// transcript of the same gene.
type Mask map[int64]struct{}

// Contains reports whether pos is masked.
func (m Mask) Contains(pos int64) bool {
	_, ok := m[pos]
	return ok
}

// AddTranscript masks every position SiteRates scores for tx.
func (m Mask) AddTranscript(tx *cache.Transcript) {
	for _, pos := range tx.CodingPositions() {
		m[pos] = struct{}{}
	}
	if tx.GenomicSequence != "" {
		for _, pos := range SpliceSitePositions(tx) {
			m[pos] = struct{}{}
		}
	}
}

// Model derives site rates from a context rate table.
type Model struct {
	rates ContextRates
}

// NewModel creates a model over the given context rates.
func NewModel(rates ContextRates) *Model {
	return &Model{rates: rates}
}

// SiteRates returns one distribution per category holding every possible
// substitution of the transcript's coding bases and, when the transcript
// carries genomic sequence, of its essential splice-site bases. Positions in
// mask are skipped. Sites carry forward-strand positions and alleles; sites
// whose context has no rate are omitted.
func (m *Model) SiteRates(tx *cache.Transcript, mask Mask) (map[Category]*sampler.Distribution, error) {
	if !tx.HasCodingSequence() {
		return nil, fmt.Errorf("%s: %w", tx.ID, ErrNoCodingSequence)
	}

	out := make(map[Category]*sampler.Distribution, len(AllCategories))
	for _, cat := range AllCategories {
		out[cat] = sampler.New()
	}

	if err := m.codingRates(tx, mask, out); err != nil {
		return nil, err
	}
	if tx.GenomicSequence != "" {
		if err := m.spliceRates(tx, mask, out[SpliceLoF]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (m *Model) codingRates(tx *cache.Transcript, mask Mask, out map[Category]*sampler.Distribution) error {
	seq := tx.CDSSequence
	positions := tx.CodingPositions()
	reverse := tx.IsReverseStrand()

	for i, pos := range positions {
		if mask.Contains(pos) {
			continue
		}
		codonIdx := i / 3
		if (codonIdx+1)*3 > len(seq) {
			break // trailing partial codon
		}
		up, down := codingNeighbours(tx, seq, positions, i)
		if up == 0 || down == 0 {
			continue
		}

		ref := seq[i]
		context := string([]byte{up, ref, down})
		refCodon := seq[codonIdx*3 : codonIdx*3+3]

		for _, alt := range bases {
			if alt == ref {
				continue
			}
			rate := m.rates.Rate(context, alt)
			if rate == 0 {
				continue
			}
			altCodon := MutateCodon(refCodon, i%3, alt)
			cat := classify(refCodon, altCodon, codonIdx)

			allele := alt
			if reverse {
				allele = Complement(alt)
			}
			if err := out[cat].Add(pos, string(allele), rate); err != nil {
				return fmt.Errorf("%s:%d %s: %w", tx.ID, pos, context, err)
			}
		}
	}
	return nil
}

// codingNeighbours returns the coding-strand bases flanking CDS base i,
// taken from genomic sequence when present and from the CDS otherwise.
// A zero byte means the flank is unknown.
func codingNeighbours(tx *cache.Transcript, seq string, positions []int64, i int) (up, down byte) {
	if tx.GenomicSequence != "" {
		pos := positions[i]
		if tx.IsReverseStrand() {
			return complementKnown(tx.GenomicBase(pos + 1)), complementKnown(tx.GenomicBase(pos - 1))
		}
		return tx.GenomicBase(pos - 1), tx.GenomicBase(pos + 1)
	}
	if i > 0 {
		up = seq[i-1]
	}
	if i+1 < len(seq) {
		down = seq[i+1]
	}
	return up, down
}

func complementKnown(b byte) byte {
	if b == 0 {
		return 0
	}
	return Complement(b)
}

// classify assigns the consequence of changing refCodon to altCodon at the
// given 0-based codon index.
func classify(refCodon, altCodon string, codonIdx int) Category {
	refAA := TranslateCodon(refCodon)
	altAA := TranslateCodon(altCodon)

	switch {
	case refAA == '*' && altAA != '*':
		return Missense // stop lost
	case altAA == '*' && refAA != '*':
		return Nonsense
	case codonIdx == 0 && refAA == 'M' && altAA != 'M':
		return Missense // start lost
	case altAA != refAA:
		return Missense
	default:
		return Synonymous
	}
}

func (m *Model) spliceRates(tx *cache.Transcript, mask Mask, dist *sampler.Distribution) error {
	for _, pos := range SpliceSitePositions(tx) {
		if mask.Contains(pos) {
			continue
		}
		ref := tx.GenomicBase(pos)
		up, down := tx.GenomicBase(pos-1), tx.GenomicBase(pos+1)
		if ref == 0 || up == 0 || down == 0 {
			continue
		}
		context := string([]byte{up, ref, down})

		for _, alt := range bases {
			if alt == ref {
				continue
			}
			rate := m.rates.Rate(context, alt)
			if rate == 0 {
				continue
			}
			if err := dist.Add(pos, string(alt), rate); err != nil {
				return fmt.Errorf("%s:%d %s: %w", tx.ID, pos, context, err)
			}
		}
	}
	return nil
}

// SpliceSitePositions returns the two intronic bases on each side of every
// intron lying inside the coding span, in ascending genomic order.
func SpliceSitePositions(tx *cache.Transcript) []int64 {
	if !tx.IsProteinCoding() {
		return nil
	}

	seen := make(map[int64]struct{})
	var out []int64
	add := func(pos int64, lo, hi int64) {
		if pos <= lo || pos >= hi {
			return
		}
		if _, ok := seen[pos]; ok {
			return
		}
		seen[pos] = struct{}{}
		out = append(out, pos)
	}

	for k := 0; k+1 < len(tx.Exons); k++ {
		end, start := tx.Exons[k].End, tx.Exons[k+1].Start
		if start-end < 2 || end < tx.CDSStart || start > tx.CDSEnd {
			continue
		}
		add(end+1, end, start)
		add(end+2, end, start)
		add(start-2, end, start)
		add(start-1, end, start)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
