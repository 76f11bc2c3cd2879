package cache

import (
	"sort"
	"strings"
)

// Cache holds transcripts indexed by chromosome and by gene symbol.
type Cache struct {
	transcripts map[string][]*Transcript
	byGene      map[string][]*Transcript
}

// New creates a new empty cache.
func New() *Cache {
	return &Cache{
		transcripts: make(map[string][]*Transcript),
		byGene:      make(map[string][]*Transcript),
	}
}

// AddTranscript adds a transcript to the cache.
func (c *Cache) AddTranscript(t *Transcript) {
	c.transcripts[t.Chrom] = append(c.transcripts[t.Chrom], t)
	if t.GeneName != "" {
		key := strings.ToUpper(t.GeneName)
		c.byGene[key] = append(c.byGene[key], t)
	}
}

// FindTranscriptsByGene returns all transcripts of a gene symbol.
// Symbols are matched case-insensitively.
func (c *Cache) FindTranscriptsByGene(symbol string) []*Transcript {
	return c.byGene[strings.ToUpper(symbol)]
}

// GetTranscript returns a specific transcript by ID, or nil if not found.
func (c *Cache) GetTranscript(id string) *Transcript {
	id = stripVersion(id)
	for _, transcripts := range c.transcripts {
		for _, t := range transcripts {
			if t.ID == id {
				return t
			}
		}
	}
	return nil
}

// TranscriptCount returns the total number of transcripts in the cache.
func (c *Cache) TranscriptCount() int {
	count := 0
	for _, transcripts := range c.transcripts {
		count += len(transcripts)
	}
	return count
}

// Chromosomes returns a sorted list of chromosomes in the cache.
func (c *Cache) Chromosomes() []string {
	chroms := make([]string, 0, len(c.transcripts))
	for chrom := range c.transcripts {
		chroms = append(chroms, chrom)
	}
	sort.Strings(chroms)
	return chroms
}

// FindTranscriptsByChrom returns all transcripts for a chromosome.
func (c *Cache) FindTranscriptsByChrom(chrom string) []*Transcript {
	return c.transcripts[chrom]
}
