// Package cache provides transcript loading and lookup for gene analysis.
package cache

import "strings"

// Transcript represents a specific gene isoform.
type Transcript struct {
	ID           string // Transcript ID (e.g., ENST00000311936)
	GeneID       string // Parent gene ID
	GeneName     string // Parent gene symbol
	Chrom        string // Chromosome
	Start        int64  // Transcript start (1-based)
	End          int64  // Transcript end (1-based, inclusive)
	Strand       int8   // +1 or -1
	Biotype      string // Transcript biotype
	IsCanonical  bool   // Ensembl canonical flag
	IsMANESelect bool   // MANE Select transcript
	Exons        []Exon // Exons sorted by genomic start
	CDSStart     int64  // CDS start (genomic, 1-based), 0 if non-coding
	CDSEnd       int64  // CDS end (genomic, 1-based), 0 if non-coding
	CDSSequence  string // Coding DNA sequence, coding strand

	// GenomicSequence is the forward-strand sequence starting at
	// GenomicOffset. It is optional; when present it supplies flanking
	// context at exon boundaries and the intronic splice-site bases.
	GenomicSequence string
	GenomicOffset   int64
}

// Exon represents a single exon within a transcript.
type Exon struct {
	Number   int   // Exon number (1-based, transcript order)
	Start    int64 // Genomic start (1-based)
	End      int64 // Genomic end (1-based, inclusive)
	CDSStart int64 // CDS portion start, 0 if entirely non-coding
	CDSEnd   int64 // CDS portion end, 0 if entirely non-coding
	Frame    int   // Reading frame (0, 1, or 2), -1 if non-coding
}

// IsProteinCoding returns true if the transcript has a coding sequence.
func (t *Transcript) IsProteinCoding() bool {
	return t.CDSStart > 0 && t.CDSEnd > 0
}

// IsReverseStrand returns true if the transcript is on the reverse strand.
func (t *Transcript) IsReverseStrand() bool {
	return t.Strand == -1
}

// ContainsCDS returns true if pos falls inside a coding portion of an exon.
func (t *Transcript) ContainsCDS(pos int64) bool {
	if !t.IsProteinCoding() {
		return false
	}
	for _, e := range t.Exons {
		if e.IsCoding() && pos >= e.CDSStart && pos <= e.CDSEnd {
			return true
		}
	}
	return false
}

// CodingExons returns the coding exons in transcript order (5' to 3').
func (t *Transcript) CodingExons() []Exon {
	var out []Exon
	for _, e := range t.Exons {
		if e.IsCoding() {
			out = append(out, e)
		}
	}
	if t.IsReverseStrand() {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// CodingPositions returns the genomic position of every CDS base in coding
// order, so CodingPositions()[i] is the position of CDSSequence[i].
func (t *Transcript) CodingPositions() []int64 {
	var out []int64
	for _, e := range t.CodingExons() {
		if t.IsReverseStrand() {
			for p := e.CDSEnd; p >= e.CDSStart; p-- {
				out = append(out, p)
			}
		} else {
			for p := e.CDSStart; p <= e.CDSEnd; p++ {
				out = append(out, p)
			}
		}
	}
	return out
}

// CDSLength returns the summed length of the coding exon portions.
func (t *Transcript) CDSLength() int64 {
	var n int64
	for _, e := range t.Exons {
		if e.IsCoding() {
			n += e.CDSEnd - e.CDSStart + 1
		}
	}
	return n
}

// GenomicBase returns the forward-strand base at pos, or 0 when the
// transcript carries no genomic sequence covering pos.
func (t *Transcript) GenomicBase(pos int64) byte {
	i := pos - t.GenomicOffset
	if t.GenomicSequence == "" || i < 0 || i >= int64(len(t.GenomicSequence)) {
		return 0
	}
	return upper(t.GenomicSequence[i])
}

// HasCodingSequence reports whether the CDS sequence matches the exon model.
func (t *Transcript) HasCodingSequence() bool {
	return t.CDSSequence != "" && int64(len(t.CDSSequence)) == t.CDSLength()
}

// IsCoding returns true if the exon contains coding sequence.
func (e *Exon) IsCoding() bool {
	return e.CDSStart > 0 && e.CDSEnd > 0
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

// normalizeSequence uppercases a sequence.
func normalizeSequence(seq string) string {
	return strings.ToUpper(seq)
}
