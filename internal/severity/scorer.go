// Package severity attaches severity scores to candidate and observed
// mutation sites.
package severity

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/inodb/vibe-severity/internal/mutations"
	"github.com/inodb/vibe-severity/internal/rates"
	"github.com/inodb/vibe-severity/internal/sampler"
)

// ErrMissingSeverityScore is returned when a site has no score.
var ErrMissingSeverityScore = errors.New("missing severity score")

// Score is one scored alternate allele at a position.
type Score struct {
	Pos   int64
	Alt   string
	Value float64
}

// ScoreSource returns all known scores in the half-open range [start, end)
// of a chromosome.
type ScoreSource interface {
	Fetch(ctx context.Context, chrom string, start, end int64) ([]Score, error)
}

// ConstraintRegions reports whether a position lies in a region under
// regional constraint.
type ConstraintRegions interface {
	Constrained(pos int64) bool
}

// MissingScoreError identifies a site with no severity score.
type MissingScoreError struct {
	Chrom  string
	Pos    int64
	Allele string
}

func (e *MissingScoreError) Error() string {
	return fmt.Sprintf("no severity score for %s:%d %s", e.Chrom, e.Pos, e.Allele)
}

func (e *MissingScoreError) Unwrap() error {
	return ErrMissingSeverityScore
}

type siteKey struct {
	pos    int64
	allele string
}

// Scorer looks up and weights severity scores for one gene. Fetched scores
// are cached by position and allele for the scorer's lifetime. A Scorer is
// not safe for concurrent use.
type Scorer struct {
	source  ScoreSource
	chrom   string
	weights *Weights
	regions ConstraintRegions

	scores  map[siteKey]float64
	fetched map[int64]bool
	queries int
}

// NewScorer creates a scorer for sites on chrom. weights and regions may be nil.
func NewScorer(source ScoreSource, chrom string, weights *Weights, regions ConstraintRegions) *Scorer {
	return &Scorer{
		source:  source,
		chrom:   chrom,
		weights: weights,
		regions: regions,
		scores:  make(map[siteKey]float64),
		fetched: make(map[int64]bool),
	}
}

// Queries returns the number of range fetches issued so far.
func (s *Scorer) Queries() int {
	return s.queries
}

// ScoreSites returns the weighted severity of every site of dist, in the
// distribution's order.
func (s *Scorer) ScoreSites(ctx context.Context, cat rates.Category, dist *sampler.Distribution) ([]float64, error) {
	positions := make([]int64, 0, dist.Len())
	for _, site := range dist.All() {
		positions = append(positions, site.Pos)
	}
	if err := s.prefetch(ctx, positions); err != nil {
		return nil, err
	}

	out := make([]float64, 0, dist.Len())
	for _, site := range dist.All() {
		v, err := s.weighted(cat, site.Pos, site.Allele)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ScoreObserved returns the summed weighted severity of the observed
// mutations. Loss-of-function consequences are weighted as truncating.
func (s *Scorer) ScoreObserved(ctx context.Context, muts []mutations.Mutation) (float64, error) {
	positions := make([]int64, len(muts))
	for i, m := range muts {
		positions[i] = m.Pos
	}
	if err := s.prefetch(ctx, positions); err != nil {
		return 0, err
	}

	var total float64
	for _, m := range muts {
		cat := rates.Missense
		if m.IsLoF() {
			cat = rates.Nonsense
		}
		v, err := s.weighted(cat, m.Pos, m.Alt)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}

func (s *Scorer) weighted(cat rates.Category, pos int64, allele string) (float64, error) {
	raw, ok := s.scores[siteKey{pos, allele}]
	if !ok {
		return 0, &MissingScoreError{Chrom: s.chrom, Pos: pos, Allele: allele}
	}
	return s.weights.Apply(cat, pos, raw, s.regions), nil
}

// prefetch fetches scores for positions not seen before, one query per
// contiguous run.
func (s *Scorer) prefetch(ctx context.Context, positions []int64) error {
	var todo []int64
	for _, p := range positions {
		if !s.fetched[p] {
			todo = append(todo, p)
		}
	}
	if len(todo) == 0 {
		return nil
	}
	slices.Sort(todo)
	todo = slices.Compact(todo)

	for _, run := range contiguousRuns(todo) {
		scores, err := s.source.Fetch(ctx, s.chrom, run[0], run[1]+1)
		s.queries++
		if err != nil {
			return fmt.Errorf("fetch scores %s:%d-%d: %w", s.chrom, run[0], run[1], err)
		}
		for _, sc := range scores {
			s.scores[siteKey{sc.Pos, sc.Alt}] = sc.Value
		}
		for p := run[0]; p <= run[1]; p++ {
			s.fetched[p] = true
		}
	}
	return nil
}

// contiguousRuns groups sorted, distinct positions into inclusive
// [first, last] runs of consecutive values.
func contiguousRuns(sorted []int64) [][2]int64 {
	if len(sorted) == 0 {
		return nil
	}
	var runs [][2]int64
	start, prev := sorted[0], sorted[0]
	for _, p := range sorted[1:] {
		if p != prev+1 {
			runs = append(runs, [2]int64{start, prev})
			start = p
		}
		prev = p
	}
	return append(runs, [2]int64{start, prev})
}
