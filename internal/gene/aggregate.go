package gene

import (
	"errors"
	"fmt"
	"slices"

	"github.com/inodb/vibe-severity/internal/cache"
	"github.com/inodb/vibe-severity/internal/rates"
	"github.com/inodb/vibe-severity/internal/sampler"
)

// DefaultCategories are the consequence categories sampled by default.
var DefaultCategories = []rates.Category{rates.Missense, rates.Nonsense, rates.SpliceLoF}

// SiteModel computes per-category site rates for one transcript.
type SiteModel interface {
	SiteRates(tx *cache.Transcript, mask rates.Mask) (map[rates.Category]*sampler.Distribution, error)
}

// Rates holds the gene-level distribution of each consequence category.
type Rates struct {
	Chrom      string
	Categories map[rates.Category]*sampler.Distribution
}

// Order returns the categories in sorted order. Combined concatenates
// categories in this order, and severity vectors must follow it.
func (r *Rates) Order() []rates.Category {
	order := make([]rates.Category, 0, len(r.Categories))
	for cat := range r.Categories {
		order = append(order, cat)
	}
	slices.Sort(order)
	return order
}

// Combined merges every category into a single distribution.
func (r *Rates) Combined() *sampler.Distribution {
	out := sampler.New()
	for _, cat := range r.Order() {
		out.Merge(r.Categories[cat])
	}
	return out
}

// Aggregate builds per-category distributions over the union of the
// transcripts' sites. Transcripts are processed in order; positions already
// counted by an earlier transcript are masked for later ones.
func Aggregate(transcripts []*cache.Transcript, model SiteModel, categories []rates.Category) (*Rates, error) {
	if len(transcripts) == 0 {
		return nil, ErrUnresolvedGene
	}
	if len(categories) == 0 {
		return nil, errors.New("no consequence categories")
	}

	out := &Rates{
		Chrom:      transcripts[0].Chrom,
		Categories: make(map[rates.Category]*sampler.Distribution, len(categories)),
	}
	for _, cat := range categories {
		out.Categories[cat] = sampler.New()
	}

	mask := make(rates.Mask)
	for _, tx := range transcripts {
		siteRates, err := model.SiteRates(tx, mask)
		if err != nil {
			return nil, fmt.Errorf("site rates for %s: %w", tx.ID, err)
		}
		mask.AddTranscript(tx)

		for _, cat := range categories {
			out.Categories[cat].Merge(siteRates[cat])
		}
	}
	return out, nil
}
