package cache

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// GTFLoader loads transcript models from GENCODE GTF files.
type GTFLoader struct {
	path string
}

// NewGTFLoader creates a new GTF loader.
func NewGTFLoader(path string) *GTFLoader {
	return &GTFLoader{path: path}
}

// Load loads all transcripts from the GTF file into the cache.
func (l *GTFLoader) Load(c *Cache) error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("open GTF file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(l.path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	transcripts, err := l.parseGTF(reader)
	if err != nil {
		return err
	}

	// Deterministic insertion order keeps per-gene transcript lists stable.
	ids := make([]string, 0, len(transcripts))
	for id := range transcripts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		c.AddTranscript(transcripts[id])
	}
	return nil
}

// gtfFeature represents a parsed GTF line.
type gtfFeature struct {
	chrom       string
	featureType string
	start       int64
	end         int64
	strand      string
	attributes  map[string]string
	tags        []string
}

// parseGTF parses GTF content and returns transcripts keyed by ID.
// Transcripts without exons are dropped.
func (l *GTFLoader) parseGTF(reader io.Reader) (map[string]*Transcript, error) {
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	transcripts := make(map[string]*Transcript)
	exonsByTranscript := make(map[string][]Exon)
	cdsByTranscript := make(map[string][][2]int64)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}

		feat, err := parseGTFLine(line)
		if err != nil {
			continue // skip malformed lines
		}
		transcriptID := stripVersion(feat.attributes["transcript_id"])
		if transcriptID == "" {
			continue
		}

		switch feat.featureType {
		case "transcript":
			t := &Transcript{
				ID:       transcriptID,
				GeneID:   stripVersion(feat.attributes["gene_id"]),
				GeneName: feat.attributes["gene_name"],
				Chrom:    feat.chrom,
				Start:    feat.start,
				End:      feat.end,
				Strand:   parseStrand(feat.strand),
				Biotype:  feat.attributes["transcript_type"],
			}
			for _, tag := range feat.tags {
				switch tag {
				case "Ensembl_canonical":
					t.IsCanonical = true
				case "MANE_Select":
					t.IsMANESelect = true
				}
			}
			transcripts[transcriptID] = t

		case "exon":
			exonNum, _ := strconv.Atoi(feat.attributes["exon_number"])
			exonsByTranscript[transcriptID] = append(exonsByTranscript[transcriptID], Exon{
				Number: exonNum,
				Start:  feat.start,
				End:    feat.end,
				Frame:  -1,
			})

		case "CDS", "stop_codon":
			// GENCODE CDS features exclude the stop codon; the coding
			// sequence in the transcript FASTA includes it.
			cdsByTranscript[transcriptID] = append(cdsByTranscript[transcriptID], [2]int64{feat.start, feat.end})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan GTF: %w", err)
	}

	for id, t := range transcripts {
		exons := exonsByTranscript[id]
		if len(exons) == 0 {
			delete(transcripts, id)
			continue
		}
		sort.Slice(exons, func(i, j int) bool {
			return exons[i].Start < exons[j].Start
		})
		t.Exons = exons

		if regions := cdsByTranscript[id]; len(regions) > 0 {
			t.CDSStart, t.CDSEnd = regions[0][0], regions[0][1]
			for _, r := range regions[1:] {
				t.CDSStart = min(t.CDSStart, r[0])
				t.CDSEnd = max(t.CDSEnd, r[1])
			}
			assignCodingExons(t)
		}
	}

	return transcripts, nil
}

// assignCodingExons fills in the CDS portion and reading frame of each exon
// from the transcript CDS boundaries.
func assignCodingExons(t *Transcript) {
	for i := range t.Exons {
		e := &t.Exons[i]
		if e.End >= t.CDSStart && e.Start <= t.CDSEnd {
			e.CDSStart = max(e.Start, t.CDSStart)
			e.CDSEnd = min(e.End, t.CDSEnd)
		}
	}

	var cdsPosition int64
	step, first, last := 1, 0, len(t.Exons)
	if t.IsReverseStrand() {
		step, first, last = -1, len(t.Exons)-1, -1
	}
	for i := first; i != last; i += step {
		e := &t.Exons[i]
		if e.IsCoding() {
			e.Frame = int(cdsPosition % 3)
			cdsPosition += e.CDSEnd - e.CDSStart + 1
		}
	}
}

// parseGTFLine parses a single GTF line.
func parseGTFLine(line string) (*gtfFeature, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 9 {
		return nil, fmt.Errorf("invalid GTF line: expected 9 fields, got %d", len(fields))
	}

	start, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse start: %w", err)
	}
	end, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse end: %w", err)
	}

	attrs, tags := parseAttributes(fields[8])
	return &gtfFeature{
		chrom:       normalizeChrom(fields[0]),
		featureType: fields[2],
		start:       start,
		end:         end,
		strand:      fields[6],
		attributes:  attrs,
		tags:        tags,
	}, nil
}

// parseAttributes parses the GTF attribute column:
//
//	key "value"; key "value"; ...
//
// The repeatable "tag" key is collected separately; for other keys the last
// value wins.
func parseAttributes(attrStr string) (map[string]string, []string) {
	attrs := make(map[string]string)
	var tags []string

	for _, part := range strings.Split(attrStr, ";") {
		part = strings.TrimSpace(part)
		key, value, ok := strings.Cut(part, " ")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), "\"")
		if key == "tag" {
			tags = append(tags, value)
			continue
		}
		attrs[key] = value
	}
	return attrs, tags
}

func parseStrand(s string) int8 {
	if s == "-" {
		return -1
	}
	return 1
}

// stripVersion removes the version suffix from an Ensembl ID.
// e.g., "ENST00000456328.2" -> "ENST00000456328"
func stripVersion(id string) string {
	if idx := strings.LastIndex(id, "."); idx != -1 {
		return id[:idx]
	}
	return id
}

// normalizeChrom removes a "chr" prefix so GENCODE names match mutation tables.
func normalizeChrom(chrom string) string {
	return strings.TrimPrefix(chrom, "chr")
}

// NormalizeChrom is the exported form of normalizeChrom for callers outside
// the package that compare chromosome names.
func NormalizeChrom(chrom string) string {
	return normalizeChrom(chrom)
}

// GENCODELoader combines GTF and FASTA loaders for complete annotation data.
type GENCODELoader struct {
	gtf                *GTFLoader
	fastaPath          string
	canonicalOverrides CanonicalOverrides
}

// NewGENCODELoader creates a loader for GENCODE GTF + FASTA files.
func NewGENCODELoader(gtfPath, fastaPath string) *GENCODELoader {
	return &GENCODELoader{
		gtf:       NewGTFLoader(gtfPath),
		fastaPath: fastaPath,
	}
}

// SetCanonicalOverrides sets canonical transcript overrides per gene symbol.
func (l *GENCODELoader) SetCanonicalOverrides(overrides CanonicalOverrides) {
	l.canonicalOverrides = overrides
}

// Load loads all transcripts and sequences into the cache.
func (l *GENCODELoader) Load(c *Cache) error {
	if err := l.gtf.Load(c); err != nil {
		return fmt.Errorf("load GTF: %w", err)
	}

	if len(l.canonicalOverrides) > 0 {
		l.canonicalOverrides.Apply(c)
	}

	if l.fastaPath == "" {
		return nil
	}
	fasta := NewFASTALoader(l.fastaPath)
	if err := fasta.Load(); err != nil {
		return fmt.Errorf("load FASTA: %w", err)
	}
	for _, chrom := range c.Chromosomes() {
		for _, t := range c.FindTranscriptsByChrom(chrom) {
			if seq := fasta.GetSequence(t.ID); seq != "" {
				t.CDSSequence = seq
			}
		}
	}
	return nil
}
