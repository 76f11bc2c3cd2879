package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-severity/internal/analysis"
	"github.com/inodb/vibe-severity/internal/cache"
	"github.com/inodb/vibe-severity/internal/datasource/cadd"
	"github.com/inodb/vibe-severity/internal/datasource/constraint"
	"github.com/inodb/vibe-severity/internal/duckdb"
	"github.com/inodb/vibe-severity/internal/gene"
	"github.com/inodb/vibe-severity/internal/mutations"
	"github.com/inodb/vibe-severity/internal/output"
	"github.com/inodb/vibe-severity/internal/rates"
	"github.com/inodb/vibe-severity/internal/severity"
)

// analyzeKeys maps config keys to analyze flags.
var analyzeKeys = map[string]string{
	"iterations": "iterations",
	"seed":       "seed",
	"workers":    "workers",
	"assembly":   "assembly",
	"indels":     "indels",
	"weights":    "weights",
	"categories": "categories",
	"rates":      "rates",
	"cadd":       "cadd",
	"constraint": "constraint",
	"gtf":        "gtf",
	"fasta":      "fasta",
	"canonical":  "canonical",
	"rest":       "rest",
	"results_db": "results-db",
}

func newAnalyzeCmd() *cobra.Command {
	var (
		outputFile string
		detail     bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [flags] <mutations.tsv>",
		Short: "Test each gene of a mutation table for excess severity",
		Long: `Test each gene of a mutation table for excess severity.

The table is tab-delimited with symbol, chrom, pos, ref, alt and consequence
columns (MAF column names are accepted). For every gene, mutations are placed
at random according to trinucleotide mutation rates and the summed CADD score
of the observed mutations is compared with the simulated totals. The output
has one row per gene with its p-value, or NA when the gene could not be
analysed.`,
		Example: `  vibe-severity analyze --rates rates.txt --cadd cadd.duckdb de_novos.tsv
  vibe-severity analyze --weights --constraint constraint.tsv -o results.tsv de_novos.tsv
  vibe-severity analyze --rest --assembly GRCh37 --iterations 100000 de_novos.tsv`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd, analyzeKeys); err != nil {
				return err
			}
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), args[0], outputFile, detail)
		},
	}

	f := cmd.Flags()
	f.Int("iterations", analysis.DefaultIterations, "Simulated configurations per gene")
	f.Uint64("seed", 0, "Random seed (0 picks one and logs it)")
	f.Int("workers", 0, "Genes analysed in parallel (0 = all CPUs)")
	f.String("assembly", "GRCh38", "Genome assembly: GRCh37 or GRCh38")
	f.Bool("indels", false, "Keep multi-base mutations (genes with them report NA)")
	f.Bool("weights", false, "Weight scores by consequence and regional constraint")
	f.StringSlice("categories", categoryNames(gene.DefaultCategories), "Consequence categories to sample")
	f.String("rates", "", "Trinucleotide mutation rate table")
	f.String("cadd", "", "CADD DuckDB database built with load-cadd")
	f.String("constraint", "", "Regional constraint table (used with --weights)")
	f.String("gtf", "", "GENCODE GTF (default: downloaded files for --assembly)")
	f.String("fasta", "", "GENCODE protein-coding transcript FASTA")
	f.String("canonical", "", "Canonical transcript list per gene symbol")
	f.Bool("rest", false, "Fetch transcripts from the Ensembl REST API instead of GENCODE files")
	f.String("results-db", "", "DuckDB database of finished genes, reused when rerunning the same input")
	f.StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	f.BoolVar(&detail, "detail", false, "Add mutation count and observed severity columns")
	return cmd
}

func runAnalyze(ctx context.Context, stdout io.Writer, input, outputFile string, detail bool) error {
	logger, err := newLogger(viper.GetBool("verbose"))
	if err != nil {
		return err
	}
	defer logger.Sync()

	ratesPath, caddPath := viper.GetString("rates"), viper.GetString("cadd")
	if ratesPath == "" || caddPath == "" {
		return &usageError{fmt.Errorf("--rates and --cadd are required")}
	}
	categories, err := parseCategories(viper.GetStringSlice("categories"))
	if err != nil {
		return &usageError{err}
	}

	genes, err := mutations.Load(input, mutations.Options{Indels: viper.GetBool("indels")})
	if err != nil {
		return err
	}
	logger.Info("loaded mutations", zap.String("path", input),
		zap.Int("genes", len(genes)), zap.Int("mutations", genes.Count()))

	contextRates, err := rates.LoadContextRates(ratesPath)
	if err != nil {
		return err
	}

	scores, err := cadd.Open(caddPath)
	if err != nil {
		return err
	}
	defer scores.Close()
	if !scores.Loaded() {
		return fmt.Errorf("CADD database %s is empty; load it with: vibe-severity load-cadd --db %s", caddPath, caddPath)
	}

	resolver, sources, err := loadResolver(logger)
	if err != nil {
		return err
	}

	var weights *severity.Weights
	if viper.GetBool("weights") {
		weights = severity.DefaultWeights()
	}
	a := analysis.NewAnalyzer(resolver, rates.NewModel(contextRates), scores, analysis.Config{
		Iterations: viper.GetInt("iterations"),
		Seed:       viper.GetUint64("seed"),
		Categories: categories,
		Weights:    weights,
	})
	a.SetLogger(logger)

	constraintPath := viper.GetString("constraint")
	if constraintPath != "" {
		table, err := constraint.Load(constraintPath)
		if err != nil {
			return err
		}
		a.SetConstraints(table)
		logger.Info("loaded regional constraint", zap.String("path", constraintPath), zap.Int("genes", len(table)))
	}

	if resultsPath := viper.GetString("results_db"); resultsPath != "" {
		files := []string{input, ratesPath, caddPath, constraintPath}
		fps := make([]duckdb.FileFingerprint, 0, len(files)+len(sources))
		for _, p := range files {
			fp, err := duckdb.StatOptional(p)
			if err != nil {
				return err
			}
			fps = append(fps, fp)
		}
		fps = append(fps, sources...)

		store, err := duckdb.Open(resultsPath)
		if err != nil {
			return err
		}
		defer store.Close()

		key := duckdb.InputKey(fps,
			"iterations="+strconv.Itoa(a.Iterations()),
			"weights="+strconv.FormatBool(weights != nil),
			"indels="+strconv.FormatBool(viper.GetBool("indels")),
			"categories="+strings.Join(categoryNames(categories), ","),
			"rest="+strconv.FormatBool(viper.GetBool("rest"))+":"+viper.GetString("assembly"))
		a.SetResultStore(store, key)
		logger.Info("using results database", zap.String("path", resultsPath), zap.String("input_key", key))
	}

	var out io.Writer = stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	w := output.NewTabWriter(out)
	w.SetDetail(detail)
	if err := w.WriteHeader(); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := a.AnalyzeAll(ctx, genes, viper.GetInt("workers"), w.Write)
	if err := w.Flush(); err != nil && runErr == nil {
		runErr = fmt.Errorf("writing results: %w", err)
	}
	if runErr != nil && ctx.Err() != nil {
		logger.Warn("interrupted; results so far were written")
	}
	return runErr
}

// loadResolver returns the transcript resolver selected by the config and
// the fingerprints of the files it was built from.
func loadResolver(logger *zap.Logger) (gene.Resolver, []duckdb.FileFingerprint, error) {
	assembly := viper.GetString("assembly")
	if viper.GetBool("rest") {
		logger.Info("resolving transcripts through the Ensembl REST API", zap.String("assembly", assembly))
		return gene.NewRESTResolver(cache.NewRESTLoader(assembly)), nil, nil
	}

	files := gencodeFiles{
		gtf:       viper.GetString("gtf"),
		fasta:     viper.GetString("fasta"),
		canonical: viper.GetString("canonical"),
	}
	if files.gtf == "" {
		found, ok := findGENCODEFiles(assembly)
		if !ok {
			return nil, nil, fmt.Errorf("no GENCODE files found for %s; run: vibe-severity download --assembly %s (or pass --gtf and --fasta, or --rest)", assembly, assembly)
		}
		files = found
	} else {
		files.dir = filepath.Dir(files.gtf)
	}
	if files.fasta == "" {
		return nil, nil, fmt.Errorf("no transcript FASTA for %s; pass --fasta", files.gtf)
	}

	c, src, err := loadTranscripts(files, logger)
	if err != nil {
		return nil, nil, err
	}
	return gene.NewCacheResolver(c), []duckdb.FileFingerprint{src.GTF, src.FASTA, src.Canonical}, nil
}

// loadTranscripts loads GENCODE transcripts, using the gob cache next to the
// GTF when it matches the source files.
func loadTranscripts(files gencodeFiles, logger *zap.Logger) (*cache.Cache, duckdb.Sources, error) {
	var src duckdb.Sources
	var err error
	if src.GTF, err = duckdb.StatFile(files.gtf); err != nil {
		return nil, src, fmt.Errorf("GTF: %w", err)
	}
	if src.FASTA, err = duckdb.StatFile(files.fasta); err != nil {
		return nil, src, fmt.Errorf("FASTA: %w", err)
	}
	if src.Canonical, err = duckdb.StatOptional(files.canonical); err != nil {
		return nil, src, fmt.Errorf("canonical transcripts: %w", err)
	}

	c := cache.New()
	tc := duckdb.NewTranscriptCache(files.dir)
	if tc.Valid(src) {
		err := tc.Load(c)
		if err == nil {
			logger.Info("loaded cached transcripts", zap.String("dir", files.dir), zap.Int("transcripts", c.TranscriptCount()))
			return c, src, nil
		}
		logger.Warn("transcript cache unreadable, reloading GENCODE", zap.Error(err))
		c = cache.New()
	}

	logger.Info("loading GENCODE transcripts", zap.String("gtf", files.gtf), zap.String("fasta", files.fasta))
	loader := cache.NewGENCODELoader(files.gtf, files.fasta)
	if files.canonical != "" {
		overrides, err := cache.LoadCanonicalOverrides(files.canonical)
		if err != nil {
			logger.Warn("could not load canonical transcripts", zap.String("path", files.canonical), zap.Error(err))
		} else {
			loader.SetCanonicalOverrides(overrides)
		}
	}
	if err := loader.Load(c); err != nil {
		return nil, src, fmt.Errorf("loading GENCODE: %w", err)
	}
	logger.Info("loaded transcripts", zap.Int("transcripts", c.TranscriptCount()))

	if err := tc.Write(c, src); err != nil {
		logger.Warn("could not write transcript cache", zap.String("dir", files.dir), zap.Error(err))
	}
	return c, src, nil
}

func categoryNames(cats []rates.Category) []string {
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return names
}

func parseCategories(names []string) ([]rates.Category, error) {
	var out []rates.Category
	for _, n := range names {
		cat := rates.Category(strings.ToLower(strings.TrimSpace(n)))
		if cat == "" {
			continue
		}
		if !slices.Contains(rates.AllCategories, cat) {
			return nil, fmt.Errorf("unknown category %q (valid: %s)", n, strings.Join(categoryNames(rates.AllCategories), ", "))
		}
		if !slices.Contains(out, cat) {
			out = append(out, cat)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no categories selected")
	}
	return out, nil
}
