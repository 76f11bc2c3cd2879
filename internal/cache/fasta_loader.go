package cache

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// FASTALoader loads CDS sequences from GENCODE transcript FASTA files.
type FASTALoader struct {
	path      string
	sequences map[string]string // transcript_id -> full transcript sequence
	cdsRanges map[string][2]int // transcript_id -> [cdsStart, cdsEnd] (1-based)
}

// NewFASTALoader creates a new FASTA loader.
func NewFASTALoader(path string) *FASTALoader {
	return &FASTALoader{
		path:      path,
		sequences: make(map[string]string),
		cdsRanges: make(map[string][2]int),
	}
}

// Load parses the FASTA file and stores sequences indexed by transcript ID.
func (l *FASTALoader) Load() error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("open FASTA file: %w", err)
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

	return l.parseFASTA(reader)
}

// parseFASTA parses FASTA content. GENCODE headers look like:
//
//	>ENST00000456328.2|ENSG00000290825.1|...|DDX11L2|459|UTR5:1-200|CDS:201-459|UTR3:460-1657|
func (l *FASTALoader) parseFASTA(reader io.Reader) error {
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var currentID string
	var currentSeq strings.Builder

	flush := func() {
		if currentID != "" && currentSeq.Len() > 0 {
			l.sequences[currentID] = normalizeSequence(currentSeq.String())
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, ">") {
			flush()
			currentID = parseFASTAHeader(line)
			if cdsStart, cdsEnd, ok := parseCDSRange(line); ok {
				l.cdsRanges[currentID] = [2]int{cdsStart, cdsEnd}
			}
			currentSeq.Reset()
			continue
		}
		currentSeq.WriteString(strings.TrimSpace(line))
	}
	flush()

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan FASTA: %w", err)
	}
	return nil
}

// parseFASTAHeader extracts the unversioned transcript ID from a header in
// GENCODE (pipe-delimited) or Ensembl (space-delimited) form.
func parseFASTAHeader(header string) string {
	header = strings.TrimPrefix(header, ">")
	if idx := strings.IndexAny(header, "| "); idx != -1 {
		header = header[:idx]
	}
	return stripVersion(header)
}

// parseCDSRange extracts the 1-based CDS range from a GENCODE header.
func parseCDSRange(header string) (start, end int, ok bool) {
	for _, field := range strings.Split(header, "|") {
		rangeStr, found := strings.CutPrefix(strings.TrimSpace(field), "CDS:")
		if !found {
			continue
		}
		from, to, found := strings.Cut(rangeStr, "-")
		if !found {
			return 0, 0, false
		}
		s, err1 := strconv.Atoi(from)
		e, err2 := strconv.Atoi(to)
		if err1 != nil || err2 != nil {
			return 0, 0, false
		}
		return s, e, true
	}
	return 0, 0, false
}

// GetSequence returns the CDS sequence for a transcript ID, or "" if the
// transcript is unknown. Without a CDS range the full sequence is returned.
func (l *FASTALoader) GetSequence(transcriptID string) string {
	id := stripVersion(transcriptID)
	seq, ok := l.sequences[id]
	if !ok {
		return ""
	}

	if r, hasCDS := l.cdsRanges[id]; hasCDS {
		start, end := r[0]-1, r[1]
		if start >= 0 && end <= len(seq) && start < end {
			return seq[start:end]
		}
	}
	return seq
}

// SequenceCount returns the number of loaded sequences.
func (l *FASTALoader) SequenceCount() int {
	return len(l.sequences)
}
