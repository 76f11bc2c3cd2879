package duckdb

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/inodb/vibe-severity/internal/cache"
)

// TranscriptCache manages gob-serialized transcript data on disk.
// Files are stored alongside the GENCODE source files:
//
//	~/.vibe-severity/{assembly}/transcripts.gob       (serialized transcripts)
//	~/.vibe-severity/{assembly}/transcripts.gob.yaml  (source file fingerprints)
type TranscriptCache struct {
	dir string
}

// Sources names the files a transcript cache was built from.
type Sources struct {
	GTF       FileFingerprint
	FASTA     FileFingerprint
	Canonical FileFingerprint
}

type cacheMeta struct {
	GTF         string    `yaml:"gtf"`
	FASTA       string    `yaml:"fasta"`
	Canonical   string    `yaml:"canonical"`
	Transcripts int       `yaml:"transcripts"`
	CreatedAt   time.Time `yaml:"created_at"`
}

// NewTranscriptCache creates a transcript cache for the given directory.
func NewTranscriptCache(dir string) *TranscriptCache {
	return &TranscriptCache{dir: dir}
}

func (tc *TranscriptCache) gobPath() string {
	return filepath.Join(tc.dir, "transcripts.gob")
}

func (tc *TranscriptCache) metaPath() string {
	return filepath.Join(tc.dir, "transcripts.gob.yaml")
}

// Valid reports whether the cached transcripts were built from src.
func (tc *TranscriptCache) Valid(src Sources) bool {
	meta, err := tc.readMeta()
	if err != nil {
		return false
	}
	if meta.GTF != src.GTF.Key() || meta.FASTA != src.FASTA.Key() || meta.Canonical != src.Canonical.Key() {
		return false
	}
	_, err = os.Stat(tc.gobPath())
	return err == nil
}

// Load reads serialized transcripts from disk into the cache.
func (tc *TranscriptCache) Load(c *cache.Cache) error {
	f, err := os.Open(tc.gobPath())
	if err != nil {
		return fmt.Errorf("open transcript cache: %w", err)
	}
	defer f.Close()

	var data map[string][]*cache.Transcript
	if err := gob.NewDecoder(f).Decode(&data); err != nil {
		return fmt.Errorf("decode transcript cache: %w", err)
	}

	for _, chrom := range sortedKeys(data) {
		for _, t := range data[chrom] {
			c.AddTranscript(t)
		}
	}
	return nil
}

// Write serializes all transcripts from the cache to disk and records the
// source fingerprints.
func (tc *TranscriptCache) Write(c *cache.Cache, src Sources) error {
	if err := os.MkdirAll(tc.dir, 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	data := make(map[string][]*cache.Transcript)
	for _, chrom := range c.Chromosomes() {
		data[chrom] = c.FindTranscriptsByChrom(chrom)
	}

	f, err := os.Create(tc.gobPath())
	if err != nil {
		return fmt.Errorf("create transcript cache: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(data); err != nil {
		f.Close()
		os.Remove(tc.gobPath())
		return fmt.Errorf("encode transcript cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close transcript cache: %w", err)
	}

	meta := cacheMeta{
		GTF:         src.GTF.Key(),
		FASTA:       src.FASTA.Key(),
		Canonical:   src.Canonical.Key(),
		Transcripts: c.TranscriptCount(),
		CreatedAt:   time.Now().UTC(),
	}
	out, err := yaml.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("encode cache metadata: %w", err)
	}
	return os.WriteFile(tc.metaPath(), out, 0644)
}

// Clear removes the cached transcript files.
func (tc *TranscriptCache) Clear() {
	os.Remove(tc.gobPath())
	os.Remove(tc.metaPath())
}

func (tc *TranscriptCache) readMeta() (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(tc.metaPath())
	if err != nil {
		return meta, err
	}
	err = yaml.Unmarshal(data, &meta)
	return meta, err
}

func sortedKeys(m map[string][]*cache.Transcript) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
