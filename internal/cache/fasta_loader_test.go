package cache

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFASTAHeader(t *testing.T) {
	tests := []struct {
		header   string
		expected string
	}{
		// GENCODE format with pipe delimiters
		{">ENST00000311936.8|ENSG00000133703.14|OTTHUMG|KRAS-201|KRAS|567|", "ENST00000311936"},
		// Simple Ensembl format with space
		{">ENST00000311936.8 cds chromosome:GRCh38", "ENST00000311936"},
		// Just the ID
		{">ENST00000311936", "ENST00000311936"},
		// With version, no delimiter
		{">ENST00000311936.8", "ENST00000311936"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got := parseFASTAHeader(tt.header)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFASTALoader_ParseFASTA(t *testing.T) {
	fastaContent := `>ENST00000311936.8|ENSG00000133703.14|KRAS-201|KRAS
ATGACTGAATATAAACTTGTGGTAGTTGGAGCT
GGTGGCGTAGGCAAGAGTGCCTTGACGATACAG
>ENST00000000001.1|ENSG00000000001|TEST
ATGCGATCGATCGATCGATCG
`

	loader := NewFASTALoader("")
	err := loader.parseFASTA(strings.NewReader(fastaContent))
	require.NoError(t, err)

	// Check sequence count
	assert.Equal(t, 2, loader.SequenceCount())

	// Check KRAS sequence (concatenated without newlines)
	seq := loader.GetSequence("ENST00000311936")
	expectedSeq := "ATGACTGAATATAAACTTGTGGTAGTTGGAGCTGGTGGCGTAGGCAAGAGTGCCTTGACGATACAG"
	assert.Equal(t, expectedSeq, seq)
	assert.Empty(t, loader.GetSequence("ENST99999999999"))
}

func TestFASTALoader_Uppercases(t *testing.T) {
	loader := NewFASTALoader("")
	require.NoError(t, loader.parseFASTA(strings.NewReader(">ENST1\natgAAAtaa\n")))
	assert.Equal(t, "ATGAAATAA", loader.GetSequence("ENST1"))
}

func TestFASTALoader_LoadFile(t *testing.T) {
	content := ">ENST00000999999.1|ENSG00000999999.1|GENE-201|GENE|15|UTR5:1-3|CDS:4-12|UTR3:13-15|\nCCCATGCCCTAAGGG\n"

	t.Run("plain", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pc_transcripts.fa")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		loader := NewFASTALoader(path)
		require.NoError(t, loader.Load())
		assert.Equal(t, "ATGCCCTAA", loader.GetSequence("ENST00000999999"))
	})

	t.Run("gzip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pc_transcripts.fa.gz")
		f, err := os.Create(path)
		require.NoError(t, err)
		gz := gzip.NewWriter(f)
		_, err = gz.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, gz.Close())
		require.NoError(t, f.Close())

		loader := NewFASTALoader(path)
		require.NoError(t, loader.Load())
		assert.Equal(t, 1, loader.SequenceCount())
		assert.Equal(t, "ATGCCCTAA", loader.GetSequence("ENST00000999999"))
	})

	t.Run("missing file", func(t *testing.T) {
		loader := NewFASTALoader(filepath.Join(t.TempDir(), "missing.fa"))
		assert.Error(t, loader.Load())
	})
}

func TestFASTALoader_GetSequenceWithVersion(t *testing.T) {
	fastaContent := `>ENST00000311936.8|KRAS
ATGACTGAA
`

	loader := NewFASTALoader("")
	require.NoError(t, loader.parseFASTA(strings.NewReader(fastaContent)))

	// Should find sequence with or without version
	tests := []string{
		"ENST00000311936",
		"ENST00000311936.8",
	}

	for _, id := range tests {
		assert.Equal(t, "ATGACTGAA", loader.GetSequence(id), "GetSequence(%q)", id)
	}
}

func TestFASTALoader_CDSExtraction(t *testing.T) {
	// Full mRNA with UTR5 + CDS + UTR3; CDS is positions 11-19 (1-based)
	// UTR5: AAAAAAAAAA (10 bases), CDS: ATGCCCGAA (9 bases), UTR3: TTTTTTTTTT (10 bases)
	fastaContent := `>ENST00000999999.1|ENSG00000999999.1|GENE-201|GENE|29|UTR5:1-10|CDS:11-19|UTR3:20-29|
AAAAAAAAAAATGCCCGAATTTTTTTTTT
`

	loader := NewFASTALoader("")
	require.NoError(t, loader.parseFASTA(strings.NewReader(fastaContent)))

	seq := loader.GetSequence("ENST00000999999")
	assert.Equal(t, "ATGCCCGAA", seq)
}

func TestFASTALoader_CDSExtractionNoCDSAnnotation(t *testing.T) {
	// Header without CDS annotation; expect the full sequence
	fastaContent := `>ENST00000888888.1|ENSG00000888888.1|GENE2-201|GENE2|30|
ATGCCCGAAATGCCCGAAATGCCCGAATTT
`

	loader := NewFASTALoader("")
	require.NoError(t, loader.parseFASTA(strings.NewReader(fastaContent)))

	seq := loader.GetSequence("ENST00000888888")
	assert.Equal(t, "ATGCCCGAAATGCCCGAAATGCCCGAATTT", seq)
}

func TestFASTALoader_CDSExtractionNoUTR(t *testing.T) {
	// CDS:1-N (no UTR): expect the entire sequence unchanged
	fastaContent := `>ENST00000777777.1|ENSG00000777777.1|GENE3-201|GENE3|12|CDS:1-12|
ATGCCCGAATAA
`

	loader := NewFASTALoader("")
	require.NoError(t, loader.parseFASTA(strings.NewReader(fastaContent)))

	seq := loader.GetSequence("ENST00000777777")
	assert.Equal(t, "ATGCCCGAATAA", seq)
}

func TestParseCDSRange(t *testing.T) {
	tests := []struct {
		header    string
		wantStart int
		wantEnd   int
		wantOK    bool
	}{
		{">ENST00000456328.2|ENSG001|GENE|459|UTR5:1-200|CDS:201-459|UTR3:460-1657|", 201, 459, true},
		{">ENST00000311936.8|ENSG002|KRAS|567|CDS:1-567|", 1, 567, true},
		{">ENST00000311936.8|ENSG002|KRAS|567|", 0, 0, false},
		{">ENST00000311936.8 simple header", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			start, end, ok := parseCDSRange(tt.header)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}
