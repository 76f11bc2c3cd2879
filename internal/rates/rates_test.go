package rates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-severity/internal/cache"
	"github.com/inodb/vibe-severity/internal/sampler"
)

func uniformRates(rate float64) ContextRates {
	cr := make(ContextRates)
	for _, a := range bases {
		for _, b := range bases {
			for _, c := range bases {
				for _, alt := range bases {
					if alt != b {
						cr.set(string([]byte{a, b, c}), alt, rate)
					}
				}
			}
		}
	}
	return cr
}

// singleExon is ATG AAA TAA at 101-109.
func singleExon(strand int8) *cache.Transcript {
	return &cache.Transcript{
		ID:       "ENST1",
		Chrom:    "1",
		Strand:   strand,
		CDSStart: 101,
		CDSEnd:   109,
		Exons: []cache.Exon{
			{Number: 1, Start: 101, End: 109, CDSStart: 101, CDSEnd: 109},
		},
		CDSSequence: "ATGAAATAA",
	}
}

// twoExon is ATGAAA (101-106) GTAG intron CCCTAA (111-116) with one
// flanking base of genomic sequence on each side.
func twoExon() *cache.Transcript {
	return &cache.Transcript{
		ID:       "ENST2",
		Chrom:    "1",
		Strand:   1,
		CDSStart: 101,
		CDSEnd:   116,
		Exons: []cache.Exon{
			{Number: 1, Start: 101, End: 106, CDSStart: 101, CDSEnd: 106},
			{Number: 2, Start: 111, End: 116, CDSStart: 111, CDSEnd: 116},
		},
		CDSSequence:     "ATGAAACCCTAA",
		GenomicSequence: "GATGAAAGTAGCCCTAAG",
		GenomicOffset:   100,
	}
}

func TestTranslateCodon(t *testing.T) {
	tests := []struct {
		codon string
		want  byte
	}{
		{"ATG", 'M'},
		{"GGT", 'G'},
		{"TAA", '*'},
		{"TGA", '*'},
		{"NNN", 'X'},
		{"AT", 'X'},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TranslateCodon(tt.codon), "TranslateCodon(%q)", tt.codon)
	}
}

func TestReverseComplement(t *testing.T) {
	assert.Equal(t, "GCAT", ReverseComplement("ATGC"))
	assert.Equal(t, "TTT", ReverseComplement("AAA"))
	assert.Equal(t, "NAC", ReverseComplement("GTX"))
	assert.Equal(t, "", ReverseComplement(""))
	assert.Equal(t, strings.Repeat("T", 20), ReverseComplement(strings.Repeat("A", 20)))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		ref, alt string
		codonIdx int
		want     Category
	}{
		{"stop gained", "AAA", "TAA", 3, Nonsense},
		{"missense", "AAA", "CAA", 3, Missense},
		{"synonymous", "AAA", "AAG", 3, Synonymous},
		{"stop lost", "TAA", "CAA", 3, Missense},
		{"stop retained", "TAA", "TGA", 3, Synonymous},
		{"start lost", "ATG", "ATA", 0, Missense},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.ref, tt.alt, tt.codonIdx))
		})
	}
}

func TestParseContextRates(t *testing.T) {
	input := "from\tto\tmu_snp\n" +
		"AAA\tACA\t1e-08\n" +
		"TTT\tTGT\t2e-08\n" +
		"ACG\tATG\t5e-07\n"

	cr, err := ParseContextRates(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 1e-8, cr.Rate("AAA", 'C'))
	assert.Equal(t, 2e-8, cr.Rate("TTT", 'G'), "explicit entry wins over derived")
	assert.Equal(t, 5e-7, cr.Rate("ACG", 'T'))
	assert.Equal(t, 5e-7, cr.Rate("CGT", 'A'), "reverse complement derived")
	assert.Zero(t, cr.Rate("GGG", 'A'))
	assert.Equal(t, 4, cr.Len())
}

func TestParseContextRates_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"too few fields", "AAA ACA\n"},
		{"same base", "AAA AAA 1e-8\n"},
		{"flank changed", "AAA CCA 1e-8\n"},
		{"bad rate after header", "from to mu\nAAA ACA x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseContextRates(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestSiteRates_ForwardStrand(t *testing.T) {
	model := NewModel(uniformRates(1))
	got, err := model.SiteRates(singleExon(1), nil)
	require.NoError(t, err)

	// First and last CDS bases lack a flank without genomic sequence.
	assert.Equal(t, 18.0, got[Missense].TotalWeight())
	assert.Equal(t, 1.0, got[Nonsense].TotalWeight())
	assert.Equal(t, 2.0, got[Synonymous].TotalWeight())
	assert.Equal(t, 0, got[SpliceLoF].Len())

	require.Equal(t, 1, got[Nonsense].Len())
	assert.Equal(t, sampler.Site{Pos: 104, Allele: "T", Weight: 1}, got[Nonsense].At(0))
}

func TestSiteRates_ReverseStrand(t *testing.T) {
	model := NewModel(uniformRates(1))
	got, err := model.SiteRates(singleExon(-1), nil)
	require.NoError(t, err)

	// CDS base 4 sits at 106 on the reverse strand; A>T becomes T>A.
	require.Equal(t, 1, got[Nonsense].Len())
	assert.Equal(t, sampler.Site{Pos: 106, Allele: "A", Weight: 1}, got[Nonsense].At(0))
}

func TestSiteRates_Mask(t *testing.T) {
	model := NewModel(uniformRates(1))
	got, err := model.SiteRates(singleExon(1), Mask{102: {}})
	require.NoError(t, err)

	assert.Equal(t, 15.0, got[Missense].TotalWeight())
	for _, site := range got[Missense].All() {
		assert.NotEqual(t, int64(102), site.Pos)
	}
}

func TestSiteRates_GenomicContext(t *testing.T) {
	tx := twoExon()
	model := NewModel(uniformRates(1))
	got, err := model.SiteRates(tx, nil)
	require.NoError(t, err)

	total := 0
	for _, cat := range AllCategories {
		if cat != SpliceLoF {
			total += got[cat].Len()
		}
	}
	assert.Equal(t, 36, total, "every coding base has genomic flanks")
	assert.Equal(t, 12, got[SpliceLoF].Len())

	positions := map[int64]bool{}
	for _, site := range got[SpliceLoF].All() {
		positions[site.Pos] = true
	}
	assert.Equal(t, map[int64]bool{107: true, 108: true, 109: true, 110: true}, positions)
}

func TestSiteRates_ZeroRateOmitted(t *testing.T) {
	cr := make(ContextRates)
	cr.set("GAA", 'T', 1e-8)
	got, err := NewModel(cr).SiteRates(singleExon(1), nil)
	require.NoError(t, err)

	// Only CDS base 4 sits in a GAA context; A>T there is a stop gain.
	assert.Equal(t, 1, got[Nonsense].Len())
	assert.Equal(t, 0, got[Missense].Len())
}

func TestSiteRates_NoSequence(t *testing.T) {
	tx := singleExon(1)
	tx.CDSSequence = ""
	_, err := NewModel(uniformRates(1)).SiteRates(tx, nil)
	assert.ErrorIs(t, err, ErrNoCodingSequence)
}

func TestSpliceSitePositions(t *testing.T) {
	assert.Equal(t, []int64{107, 108, 109, 110}, SpliceSitePositions(twoExon()))
	assert.Empty(t, SpliceSitePositions(singleExon(1)))

	// Introns outside the coding span are ignored.
	tx := twoExon()
	tx.Exons = append([]cache.Exon{{Start: 50, End: 60}}, tx.Exons...)
	assert.Equal(t, []int64{107, 108, 109, 110}, SpliceSitePositions(tx))
}

func TestMask_AddTranscript(t *testing.T) {
	m := Mask{}
	m.AddTranscript(twoExon())
	assert.Len(t, m, 16)
	assert.True(t, m.Contains(108))
	assert.True(t, m.Contains(116))
	assert.False(t, m.Contains(117))

	m = Mask{}
	m.AddTranscript(singleExon(1))
	assert.Len(t, m, 9)
}
