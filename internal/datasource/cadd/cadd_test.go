package cadd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-severity/internal/rates"
	"github.com/inodb/vibe-severity/internal/sampler"
	"github.com/inodb/vibe-severity/internal/severity"
)

// Small test fixture in CADD whole-genome SNV format.
const testTSV = `## CADD GRCh38-v1.6 (c) University of Washington. All rights reserved.
#Chrom	Pos	Ref	Alt	RawScore	PHRED
1	10001	T	A	0.702541	8.478
1	10001	T	C	0.750954	8.921
1	10001	T	G	0.719549	8.634
1	10002	A	C	0.713993	8.583
1	10004	C	G	0.751217	8.924
chr12	25245350	C	A	4.123	27.5
`

var _ severity.ScoreSource = (*Store)(nil)

func loadedStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "whole_genome_SNVs.tsv")
	require.NoError(t, os.WriteFile(path, []byte(testTSV), 0644))

	store, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	assert.False(t, store.Loaded(), "should be empty before load")
	require.NoError(t, store.Load(path))
	return store
}

func TestLoadAndFetch(t *testing.T) {
	store := loadedStore(t)

	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	got, err := store.Fetch(context.Background(), "1", 10001, 10003)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, int64(10001), got[0].Pos)
	assert.Equal(t, "A", got[0].Alt)
	assert.InDelta(t, 8.478, got[0].Value, 1e-4)
	assert.Equal(t, int64(10002), got[3].Pos)
}

func TestFetch_HalfOpen(t *testing.T) {
	store := loadedStore(t)

	got, err := store.Fetch(context.Background(), "1", 10002, 10004)
	require.NoError(t, err)
	require.Len(t, got, 1, "end is exclusive")
	assert.Equal(t, "C", got[0].Alt)
}

func TestFetch_ChromPrefix(t *testing.T) {
	store := loadedStore(t)

	for _, chrom := range []string{"12", "chr12"} {
		got, err := store.Fetch(context.Background(), chrom, 25245350, 25245351)
		require.NoError(t, err)
		require.Len(t, got, 1, chrom)
		assert.InDelta(t, 27.5, got[0].Value, 1e-4)
	}
}

func TestFetch_Empty(t *testing.T) {
	store := loadedStore(t)

	got, err := store.Fetch(context.Background(), "2", 1, 1000)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadReplaces(t *testing.T) {
	store := loadedStore(t)
	path := filepath.Join(t.TempDir(), "again.tsv")
	require.NoError(t, os.WriteFile(path, []byte(testTSV), 0644))

	require.NoError(t, store.Load(path))
	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}

func TestFetch_WithScorer(t *testing.T) {
	store := loadedStore(t)
	scorer := severity.NewScorer(store, "1", nil, nil)

	d := sampler.New()
	require.NoError(t, d.Add(10001, "A", 1))
	require.NoError(t, d.Add(10004, "G", 1))
	require.NoError(t, d.Add(10002, "C", 1))

	got, err := scorer.ScoreSites(context.Background(), rates.Missense, d)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.InDelta(t, 8.478, got[0], 1e-4)
	assert.InDelta(t, 8.924, got[1], 1e-4)
	assert.InDelta(t, 8.583, got[2], 1e-4)
	assert.Equal(t, 2, scorer.Queries())
}
