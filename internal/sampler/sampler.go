// Package sampler provides a weighted random sampler over genomic sites.
//
// A Distribution holds (position, allele, weight) entries plus a cumulative
// weight table. Sampling draws a uniform value in [0, total) and binary
// searches the cumulative table, so each draw costs O(log n).
package sampler

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"math/rand/v2"
)

var (
	// ErrInvalidWeight is returned when a site weight is negative or not finite.
	ErrInvalidWeight = errors.New("invalid site weight")
	// ErrEmptyDistribution is returned when sampling from a distribution with
	// no sites or zero total weight.
	ErrEmptyDistribution = errors.New("empty distribution")
)

// Site is a single mutable base and alternate allele with its un-normalized
// mutation probability.
type Site struct {
	Pos    int64  // Genomic position (1-based)
	Allele string // Alternate allele on the forward strand
	Weight float64
}

// Distribution is an ordered set of sites with a cumulative weight table.
// The zero value is an empty, usable distribution.
type Distribution struct {
	sites      []Site
	cumulative []float64 // cumulative[i] = sum of weights for sites[:i+1]
}

// New creates an empty distribution.
func New() *Distribution {
	return &Distribution{}
}

// Add appends a site. Weights must be finite and non-negative.
func (d *Distribution) Add(pos int64, allele string, weight float64) error {
	if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("%w: %v at %d %s", ErrInvalidWeight, weight, pos, allele)
	}
	d.sites = append(d.sites, Site{Pos: pos, Allele: allele, Weight: weight})
	d.cumulative = append(d.cumulative, d.TotalWeight()+weight)
	return nil
}

// Merge appends all sites of other and rebuilds the cumulative table.
// Sampling probabilities depend only on relative weights, so merge order
// affects iteration order but not sampling.
func (d *Distribution) Merge(other *Distribution) {
	if other == nil || len(other.sites) == 0 {
		return
	}
	d.sites = append(d.sites, other.sites...)
	d.rebuild()
}

func (d *Distribution) rebuild() {
	if cap(d.cumulative) < len(d.sites) {
		d.cumulative = make([]float64, len(d.sites))
	}
	d.cumulative = d.cumulative[:len(d.sites)]

	var total float64
	for i, s := range d.sites {
		total += s.Weight
		d.cumulative[i] = total
	}
}

// TotalWeight returns the sum of all site weights.
func (d *Distribution) TotalWeight() float64 {
	if len(d.cumulative) == 0 {
		return 0
	}
	return d.cumulative[len(d.cumulative)-1]
}

// Len returns the number of sites.
func (d *Distribution) Len() int {
	return len(d.sites)
}

// At returns the site at index i in insertion order.
func (d *Distribution) At(i int) Site {
	return d.sites[i]
}

// All returns an iterator over (index, site) pairs in insertion order.
// The iterator can be ranged over any number of times.
func (d *Distribution) All() iter.Seq2[int, Site] {
	return func(yield func(int, Site) bool) {
		for i, s := range d.sites {
			if !yield(i, s) {
				return
			}
		}
	}
}

// SampleIndex draws a site index with probability weight/TotalWeight.
func (d *Distribution) SampleIndex(r *rand.Rand) (int, error) {
	total := d.TotalWeight()
	if len(d.sites) == 0 || total <= 0 {
		return 0, ErrEmptyDistribution
	}
	return d.search(r.Float64() * total), nil
}

// Sample draws a site with probability weight/TotalWeight.
func (d *Distribution) Sample(r *rand.Rand) (Site, error) {
	i, err := d.SampleIndex(r)
	if err != nil {
		return Site{}, err
	}
	return d.sites[i], nil
}

// Draw returns a site index without checking the distribution first. It is
// the hot-path variant of SampleIndex; the caller must have verified that
// the distribution has a positive total weight.
func (d *Distribution) Draw(r *rand.Rand) int {
	return d.search(r.Float64() * d.TotalWeight())
}

// search returns the first index whose cumulative weight is strictly greater
// than u. Zero-weight sites share their predecessor's cumulative value and
// are never selected.
func (d *Distribution) search(u float64) int {
	lo, hi := 0, len(d.cumulative)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if d.cumulative[mid] > u {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	if lo == len(d.cumulative) {
		// u rounded up to the total; step back to the last weighted site.
		lo--
		for lo > 0 && d.sites[lo].Weight == 0 {
			lo--
		}
	}
	return lo
}
