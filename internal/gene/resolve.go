// Package gene resolves the transcripts of a gene and aggregates their site
// rates into gene-level sampling distributions.
package gene

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/inodb/vibe-severity/internal/cache"
)

// ErrUnresolvedGene is returned when no usable transcript exists for a symbol.
var ErrUnresolvedGene = errors.New("unresolved gene")

// Resolver returns the transcripts to analyse for a gene symbol, given the
// positions of the observed mutations.
type Resolver interface {
	Resolve(ctx context.Context, symbol string, positions []int64) ([]*cache.Transcript, error)
}

// CacheResolver resolves transcripts from a preloaded cache.
type CacheResolver struct {
	cache *cache.Cache
}

// NewCacheResolver creates a resolver over a loaded cache. The cache must not
// be modified while the resolver is in use.
func NewCacheResolver(c *cache.Cache) *CacheResolver {
	return &CacheResolver{cache: c}
}

// Resolve implements Resolver.
func (r *CacheResolver) Resolve(_ context.Context, symbol string, positions []int64) ([]*cache.Transcript, error) {
	return SelectTranscripts(symbol, r.cache.FindTranscriptsByGene(symbol), positions)
}

// RESTResolver fetches transcripts on demand from the Ensembl REST API.
type RESTResolver struct {
	mu     sync.Mutex
	loader *cache.RESTLoader
	cache  *cache.Cache
}

// NewRESTResolver creates a resolver that fills an in-memory cache from loader.
func NewRESTResolver(loader *cache.RESTLoader) *RESTResolver {
	return &RESTResolver{loader: loader, cache: cache.New()}
}

// Resolve implements Resolver. Calls are serialized.
func (r *RESTResolver) Resolve(ctx context.Context, symbol string, positions []int64) ([]*cache.Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loader.LoadGene(ctx, r.cache, symbol); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", symbol, ErrUnresolvedGene, err)
	}
	return SelectTranscripts(symbol, r.cache.FindTranscriptsByGene(symbol), positions)
}

// SelectTranscripts picks the transcripts covering the observed positions.
// Only protein-coding transcripts with a consistent CDS sequence are
// considered. Transcripts are chosen greedily by the number of still
// uncovered positions inside their CDS (ties: canonical, then longer CDS,
// then ID). When no position falls inside any CDS the canonical transcript,
// or failing that the longest, is returned alone.
func SelectTranscripts(symbol string, transcripts []*cache.Transcript, positions []int64) ([]*cache.Transcript, error) {
	var candidates []*cache.Transcript
	for _, t := range transcripts {
		if t.IsProteinCoding() && t.HasCodingSequence() {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrUnresolvedGene)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return preferred(candidates[i], candidates[j])
	})

	uncovered := make(map[int64]struct{}, len(positions))
	for _, p := range positions {
		uncovered[p] = struct{}{}
	}

	var selected []*cache.Transcript
	used := make([]bool, len(candidates))
	for len(uncovered) > 0 {
		best, bestCount := -1, 0
		for i, t := range candidates {
			if used[i] {
				continue
			}
			n := 0
			for p := range uncovered {
				if t.ContainsCDS(p) {
					n++
				}
			}
			// Candidates are in preference order, so strict > keeps ties stable.
			if n > bestCount {
				best, bestCount = i, n
			}
		}
		if best < 0 {
			break
		}
		used[best] = true
		selected = append(selected, candidates[best])
		for p := range uncovered {
			if candidates[best].ContainsCDS(p) {
				delete(uncovered, p)
			}
		}
	}

	if len(selected) == 0 {
		return candidates[:1], nil
	}
	return selected, nil
}

// preferred orders transcripts canonical first, then by descending CDS
// length, then by ID.
func preferred(a, b *cache.Transcript) bool {
	if a.IsCanonical != b.IsCanonical {
		return a.IsCanonical
	}
	if la, lb := a.CDSLength(), b.CDSLength(); la != lb {
		return la > lb
	}
	return a.ID < b.ID
}
