package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/inodb/vibe-severity/internal/mutations"
)

// WorkItem holds one gene ready for analysis.
type WorkItem struct {
	Seq       int
	Symbol    string
	Mutations []mutations.Mutation
}

// WorkResult holds the outcome for a single gene.
type WorkResult struct {
	Seq    int
	Result Result
}

// ParallelAnalyze analyses work items using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order.
// If workers is 0, runtime.NumCPU() is used.
//
// Once ctx is done, remaining items are drained without being analysed and
// no result is sent for them. A gene already being simulated runs to the end.
func (a *Analyzer) ParallelAnalyze(ctx context.Context, items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				if ctx.Err() != nil {
					continue
				}
				r, ok := a.analyzeItem(ctx, item)
				if !ok {
					continue
				}
				results <- WorkResult{Seq: item.Seq, Result: r}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (a *Analyzer) analyzeItem(ctx context.Context, item WorkItem) (Result, bool) {
	if r, ok := a.lookup(item.Symbol); ok {
		return r, true
	}
	r, err := a.AnalyzeGene(ctx, item.Symbol, item.Mutations)
	if err != nil {
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return Result{}, false
		}
		r.Err = err
		r.PValue = math.NaN()
	}
	return r, true
}

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}

// AnalyzeAll analyses every gene and calls fn with the results in sorted
// symbol order. A gene that fails yields a Result with Err set and does not
// stop the run. When ctx is cancelled no further genes are started and
// ctx.Err() is returned after the genes in flight finish.
func (a *Analyzer) AnalyzeAll(ctx context.Context, genes mutations.Genes, workers int, fn func(Result) error) error {
	symbols := genes.Symbols()
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	a.logger.Info("analysing genes",
		zap.Int("genes", len(symbols)),
		zap.Int("mutations", genes.Count()),
		zap.Int("iterations", a.cfg.Iterations),
		zap.Uint64("seed", a.seed),
		zap.Int("workers", workers))

	items := make(chan WorkItem, 2*workers)
	go func() {
		defer close(items)
		for seq, symbol := range symbols {
			select {
			case items <- WorkItem{Seq: seq, Symbol: symbol, Mutations: genes[symbol]}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var failed, cached, done int
	err := OrderedCollect(a.ParallelAnalyze(ctx, items, workers), func(wr WorkResult) error {
		r := wr.Result
		done++
		switch {
		case r.Err != nil:
			failed++
			a.logger.Warn("failed to analyse gene",
				zap.String("symbol", r.Symbol),
				zap.Int("mutations", r.NMutations),
				zap.Error(r.Err))
		case r.Cached:
			cached++
		default:
			if err := a.save([]Result{r}); err != nil {
				a.logger.Warn("failed to store result", zap.String("symbol", r.Symbol), zap.Error(err))
			}
		}
		if err := fn(r); err != nil {
			return fmt.Errorf("write result for %s: %w", r.Symbol, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	a.logger.Info("analysis finished",
		zap.Int("genes", done),
		zap.Int("failed", failed),
		zap.Int("from_store", cached))

	return ctx.Err()
}
