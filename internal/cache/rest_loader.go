package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"
)

// genomicPadding is the number of flanking bases fetched on each side of a
// transcript so splice-site and boundary contexts are available.
const genomicPadding = 10

// RESTLoader loads transcript data from the Ensembl REST API.
// This is useful when local GENCODE files are unavailable.
type RESTLoader struct {
	baseURL    string
	httpClient *http.Client
}

// NewRESTLoader creates a new REST API loader.
// assembly should be "GRCh37" or "GRCh38".
func NewRESTLoader(assembly string) *RESTLoader {
	baseURL := "https://rest.ensembl.org"
	if assembly == "GRCh37" {
		baseURL = "https://grch37.rest.ensembl.org"
	}
	return NewRESTLoaderWithURL(baseURL)
}

// NewRESTLoaderWithURL creates a REST loader against a custom server.
func NewRESTLoaderWithURL(baseURL string) *RESTLoader {
	return &RESTLoader{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// restGene is the response of the lookup/symbol endpoint with expand=1.
type restGene struct {
	ID          string           `json:"id"`
	DisplayName string           `json:"display_name"`
	Transcript  []restTranscript `json:"Transcript"`
}

type restTranscript struct {
	ID            string `json:"id"`
	Parent        string `json:"Parent"`
	Start         int64  `json:"start"`
	End           int64  `json:"end"`
	Strand        int    `json:"strand"`
	Biotype       string `json:"biotype"`
	IsCanonical   int    `json:"is_canonical"`
	SeqRegionName string `json:"seq_region_name"`
	Translation   *struct {
		Start int64 `json:"start"`
		End   int64 `json:"end"`
	} `json:"Translation"`
	Exon []struct {
		Start int64 `json:"start"`
		End   int64 `json:"end"`
	} `json:"Exon"`
}

// LoadGene loads the protein-coding transcripts of a gene symbol into the
// cache, with CDS and padded genomic sequence. It is a no-op when the cache
// already holds transcripts for the symbol.
func (l *RESTLoader) LoadGene(ctx context.Context, c *Cache, symbol string) error {
	if len(c.FindTranscriptsByGene(symbol)) > 0 {
		return nil
	}

	var gene restGene
	lookupURL := fmt.Sprintf("%s/lookup/symbol/homo_sapiens/%s?expand=1;content-type=application/json",
		l.baseURL, url.PathEscape(symbol))
	if err := l.getJSON(ctx, lookupURL, &gene); err != nil {
		return fmt.Errorf("lookup %s: %w", symbol, err)
	}

	for _, rt := range gene.Transcript {
		t := rt.toTranscript(symbol)
		if t == nil || t.Biotype != "protein_coding" || !t.IsProteinCoding() {
			continue
		}
		if err := l.fetchSequences(ctx, t); err != nil {
			return fmt.Errorf("fetch sequence for %s: %w", t.ID, err)
		}
		c.AddTranscript(t)
	}
	return nil
}

func (rt *restTranscript) toTranscript(symbol string) *Transcript {
	if rt.ID == "" {
		return nil
	}

	t := &Transcript{
		ID:          stripVersion(rt.ID),
		GeneID:      stripVersion(rt.Parent),
		GeneName:    symbol,
		Chrom:       normalizeChrom(rt.SeqRegionName),
		Start:       rt.Start,
		End:         rt.End,
		Strand:      int8(rt.Strand),
		Biotype:     rt.Biotype,
		IsCanonical: rt.IsCanonical == 1,
	}
	if rt.Translation != nil {
		t.CDSStart = rt.Translation.Start
		t.CDSEnd = rt.Translation.End
	}

	t.Exons = make([]Exon, len(rt.Exon))
	for i, e := range rt.Exon {
		t.Exons[i] = Exon{Start: e.Start, End: e.End, Frame: -1}
	}
	sort.Slice(t.Exons, func(i, j int) bool {
		return t.Exons[i].Start < t.Exons[j].Start
	})
	for i := range t.Exons {
		if t.IsReverseStrand() {
			t.Exons[i].Number = len(t.Exons) - i
		} else {
			t.Exons[i].Number = i + 1
		}
	}
	if t.IsProteinCoding() {
		assignCodingExons(t)
	}
	return t
}

// fetchSequences fills in the CDS sequence and the forward-strand genomic
// sequence spanning the transcript plus padding.
func (l *RESTLoader) fetchSequences(ctx context.Context, t *Transcript) error {
	var cds struct {
		Seq string `json:"seq"`
	}
	cdsURL := fmt.Sprintf("%s/sequence/id/%s?type=cds;content-type=application/json", l.baseURL, t.ID)
	if err := l.getJSON(ctx, cdsURL, &cds); err != nil {
		return err
	}
	t.CDSSequence = normalizeSequence(cds.Seq)

	start := max(1, t.Start-genomicPadding)
	end := t.End + genomicPadding
	var genomic struct {
		Seq string `json:"seq"`
	}
	regionURL := fmt.Sprintf("%s/sequence/region/human/%s:%d..%d:1?content-type=application/json",
		l.baseURL, t.Chrom, start, end)
	if err := l.getJSON(ctx, regionURL, &genomic); err != nil {
		return err
	}
	t.GenomicSequence = normalizeSequence(genomic.Seq)
	t.GenomicOffset = start
	return nil
}

func (l *RESTLoader) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("REST API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("REST API error %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode REST response: %w", err)
	}
	return nil
}
