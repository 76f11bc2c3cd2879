package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_Lookup(t *testing.T) {
	c := New()
	c.AddTranscript(&Transcript{ID: "ENST1", GeneName: "KRAS", Chrom: "12"})
	c.AddTranscript(&Transcript{ID: "ENST2", GeneName: "KRAS", Chrom: "12"})
	c.AddTranscript(&Transcript{ID: "ENST3", GeneName: "TP53", Chrom: "17"})
	c.AddTranscript(&Transcript{ID: "ENST4", Chrom: "X"})

	assert.Equal(t, 4, c.TranscriptCount())
	assert.Equal(t, []string{"12", "17", "X"}, c.Chromosomes())
	assert.Len(t, c.FindTranscriptsByGene("kras"), 2, "case-insensitive symbol")
	assert.Len(t, c.FindTranscriptsByChrom("12"), 2)
	assert.Empty(t, c.FindTranscriptsByGene("BRAF"))

	tr := c.GetTranscript("ENST3.4")
	require.NotNil(t, tr)
	assert.Equal(t, "TP53", tr.GeneName)
	assert.Nil(t, c.GetTranscript("ENST9"))
}

func TestTranscript_Coding(t *testing.T) {
	tr := &Transcript{
		Strand:   1,
		CDSStart: 103,
		CDSEnd:   206,
		Exons: []Exon{
			{Start: 100, End: 108, CDSStart: 103, CDSEnd: 108},
			{Start: 150, End: 160, Frame: -1},
			{Start: 201, End: 220, CDSStart: 201, CDSEnd: 206},
		},
		CDSSequence: "ATGAAACCCTAA",
	}

	assert.True(t, tr.IsProteinCoding())
	assert.Len(t, tr.CodingExons(), 2)
	assert.Equal(t, int64(12), tr.CDSLength())
	assert.True(t, tr.HasCodingSequence())

	tests := []struct {
		pos  int64
		want bool
	}{
		{102, false},
		{103, true},
		{108, true},
		{155, false},
		{201, true},
		{206, true},
		{207, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tr.ContainsCDS(tt.pos), "ContainsCDS(%d)", tt.pos)
	}

	tr.CDSSequence = "ATGAAA"
	assert.False(t, tr.HasCodingSequence(), "length mismatch")
}

func TestTranscript_GenomicBase(t *testing.T) {
	tr := &Transcript{GenomicSequence: "acgT", GenomicOffset: 100}

	assert.Equal(t, byte('A'), tr.GenomicBase(100))
	assert.Equal(t, byte('T'), tr.GenomicBase(103))
	assert.Equal(t, byte(0), tr.GenomicBase(99))
	assert.Equal(t, byte(0), tr.GenomicBase(104))
	assert.Equal(t, byte(0), (&Transcript{}).GenomicBase(1))
}
