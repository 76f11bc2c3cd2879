// Package analysis runs the per-gene severity test: it resolves transcripts,
// builds the gene's site distribution, scores sites and observed mutations,
// and estimates a Monte Carlo p-value.
package analysis

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/inodb/vibe-severity/internal/datasource/constraint"
	"github.com/inodb/vibe-severity/internal/duckdb"
	"github.com/inodb/vibe-severity/internal/gene"
	"github.com/inodb/vibe-severity/internal/mutations"
	"github.com/inodb/vibe-severity/internal/rates"
	"github.com/inodb/vibe-severity/internal/severity"
	"github.com/inodb/vibe-severity/internal/simulate"
)

// DefaultIterations is the number of simulated configurations per gene.
const DefaultIterations = 1_000_000

// Config controls a run.
type Config struct {
	Iterations int
	// Seed fixes the random stream. Zero picks a fresh seed per Analyzer.
	Seed       uint64
	Categories []rates.Category
	// Weights is nil for unweighted scores.
	Weights *severity.Weights
}

// Result is the outcome for one gene. PValue is NaN when Err is set.
type Result struct {
	Symbol     string
	NMutations int
	Observed   float64
	PValue     float64
	Err        error
	// Cached is set when the result came from the result store.
	Cached bool
}

// ResultStore persists successful results between runs.
type ResultStore interface {
	LookupResult(inputKey, symbol string) (duckdb.GeneResult, bool, error)
	WriteResults(results []duckdb.GeneResult) error
}

// Analyzer tests genes for excess mutation severity.
type Analyzer struct {
	resolver    gene.Resolver
	model       gene.SiteModel
	scores      severity.ScoreSource
	constraints constraint.Table
	cfg         Config
	seed        uint64

	store    ResultStore
	inputKey string

	logger *zap.Logger
}

// NewAnalyzer creates an analyzer. Unset config fields take defaults.
func NewAnalyzer(resolver gene.Resolver, model gene.SiteModel, scores severity.ScoreSource, cfg Config) *Analyzer {
	if cfg.Iterations <= 0 {
		cfg.Iterations = DefaultIterations
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = gene.DefaultCategories
	}
	seed := cfg.Seed
	for seed == 0 {
		seed = rand.Uint64()
	}
	return &Analyzer{
		resolver: resolver,
		model:    model,
		scores:   scores,
		cfg:      cfg,
		seed:     seed,
		logger:   zap.NewNop(),
	}
}

// SetLogger sets the logger for warnings about failed genes.
func (a *Analyzer) SetLogger(l *zap.Logger) {
	a.logger = l
}

// SetConstraints sets the regional constraint table used by the weights.
func (a *Analyzer) SetConstraints(t constraint.Table) {
	a.constraints = t
}

// SetResultStore enables skipping genes whose result is already stored under
// inputKey, and storing new ones.
func (a *Analyzer) SetResultStore(store ResultStore, inputKey string) {
	a.store = store
	a.inputKey = inputKey
}

// Seed returns the seed in effect, including one chosen at construction.
func (a *Analyzer) Seed() uint64 {
	return a.seed
}

// Iterations returns the number of simulated configurations per gene.
func (a *Analyzer) Iterations() int {
	return a.cfg.Iterations
}

// StreamID returns the random stream of a gene. Each gene draws from its own
// stream so results do not depend on the order genes are processed in.
func StreamID(symbol string) uint64 {
	return xxh3.HashString(symbol)
}

// AnalyzeGene runs the full test for one gene. All lookups finish before
// the simulation starts.
func (a *Analyzer) AnalyzeGene(ctx context.Context, symbol string, muts []mutations.Mutation) (Result, error) {
	res := Result{Symbol: symbol, NMutations: len(muts), PValue: math.NaN()}

	positions := make([]int64, len(muts))
	for i, m := range muts {
		positions[i] = m.Pos
	}
	transcripts, err := a.resolver.Resolve(ctx, symbol, positions)
	if err != nil {
		return res, fmt.Errorf("resolve %s: %w", symbol, err)
	}

	geneRates, err := gene.Aggregate(transcripts, a.model, a.cfg.Categories)
	if err != nil {
		return res, fmt.Errorf("aggregate %s: %w", symbol, err)
	}

	var regions severity.ConstraintRegions
	if a.constraints != nil {
		regions = a.constraints.Regions(symbol)
	}
	scorer := severity.NewScorer(a.scores, geneRates.Chrom, a.cfg.Weights, regions)

	var severities []float64
	for _, cat := range geneRates.Order() {
		s, err := scorer.ScoreSites(ctx, cat, geneRates.Categories[cat])
		if err != nil {
			return res, fmt.Errorf("score %s %s sites: %w", symbol, cat, err)
		}
		severities = append(severities, s...)
	}

	observed, err := scorer.ScoreObserved(ctx, muts)
	if err != nil {
		return res, fmt.Errorf("score %s mutations: %w", symbol, err)
	}
	res.Observed = observed

	null, err := simulate.Run(geneRates.Combined(), severities, len(muts), a.cfg.Iterations,
		simulate.NewRand(a.seed, StreamID(symbol)))
	if err != nil {
		return res, fmt.Errorf("simulate %s: %w", symbol, err)
	}
	res.PValue = simulate.Estimate(null, observed)

	a.logger.Debug("gene analysed",
		zap.String("symbol", symbol),
		zap.Int("mutations", len(muts)),
		zap.Int("sites", len(severities)),
		zap.Int("score_queries", scorer.Queries()),
		zap.Float64("observed", observed),
		zap.Float64("p_value", res.PValue))
	return res, nil
}

// lookup returns a stored result for symbol, if any.
func (a *Analyzer) lookup(symbol string) (Result, bool) {
	if a.store == nil {
		return Result{}, false
	}
	stored, ok, err := a.store.LookupResult(a.inputKey, symbol)
	if err != nil {
		a.logger.Warn("result lookup failed", zap.String("symbol", symbol), zap.Error(err))
		return Result{}, false
	}
	if !ok || stored.Iterations != a.cfg.Iterations {
		return Result{}, false
	}
	return Result{
		Symbol:     symbol,
		NMutations: stored.NMutations,
		Observed:   stored.Observed,
		PValue:     stored.PValue,
		Cached:     true,
	}, true
}

func (a *Analyzer) save(results []Result) error {
	if a.store == nil {
		return nil
	}
	rows := make([]duckdb.GeneResult, 0, len(results))
	for _, r := range results {
		if r.Err != nil || r.Cached {
			continue
		}
		rows = append(rows, duckdb.GeneResult{
			InputKey:   a.inputKey,
			Symbol:     r.Symbol,
			NMutations: r.NMutations,
			Observed:   r.Observed,
			PValue:     r.PValue,
			Iterations: a.cfg.Iterations,
			Seed:       a.seed,
		})
	}
	return a.store.WriteResults(rows)
}
