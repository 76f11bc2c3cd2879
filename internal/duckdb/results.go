package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"
)

// GeneResult is one stored per-gene outcome.
type GeneResult struct {
	InputKey   string
	Symbol     string
	NMutations int
	Observed   float64
	PValue     float64
	Iterations int
	Seed       uint64
}

type geneKey struct {
	inputKey, symbol string
}

// WriteResult stores a single gene result, replacing any earlier row for the
// same input key and symbol.
func (s *Store) WriteResult(r GeneResult) error {
	return s.WriteResults([]GeneResult{r})
}

// WriteResults batch-inserts gene results using the Appender API. Within a
// batch the last entry for a key wins; rows already stored under the same
// keys are replaced.
func (s *Store) WriteResults(results []GeneResult) error {
	if len(results) == 0 {
		return nil
	}

	index := make(map[geneKey]int, len(results))
	deduped := make([]GeneResult, 0, len(results))
	for _, r := range results {
		k := geneKey{r.InputKey, r.Symbol}
		if i, ok := index[k]; ok {
			deduped[i] = r
			continue
		}
		index[k] = len(deduped)
		deduped = append(deduped, r)
	}

	ctx := context.Background()
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	for _, r := range deduped {
		if _, err := conn.ExecContext(ctx,
			"DELETE FROM gene_results WHERE input_fingerprint=? AND symbol=?",
			r.InputKey, r.Symbol); err != nil {
			return fmt.Errorf("replace gene result %s: %w", r.Symbol, err)
		}
	}

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "gene_results")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, r := range deduped {
		if err := appender.AppendRow(
			r.InputKey, r.Symbol, int64(r.NMutations),
			r.Observed, r.PValue, int64(r.Iterations), r.Seed,
		); err != nil {
			return fmt.Errorf("append gene result: %w", err)
		}
	}

	return appender.Flush()
}

// LookupResult returns the stored result of symbol under inputKey. The
// boolean is false when nothing is stored.
func (s *Store) LookupResult(inputKey, symbol string) (GeneResult, bool, error) {
	r := GeneResult{InputKey: inputKey, Symbol: symbol}
	var nMuts, iterations int64
	err := s.db.QueryRow(`SELECT n_mutations, observed, p_value, iterations, seed
		FROM gene_results
		WHERE input_fingerprint=? AND symbol=?`,
		inputKey, symbol).Scan(&nMuts, &r.Observed, &r.PValue, &iterations, &r.Seed)
	if errors.Is(err, sql.ErrNoRows) {
		return GeneResult{}, false, nil
	}
	if err != nil {
		return GeneResult{}, false, fmt.Errorf("query gene result: %w", err)
	}
	r.NMutations = int(nMuts)
	r.Iterations = int(iterations)
	return r, true, nil
}

// CountResults returns the number of results stored under inputKey.
func (s *Store) CountResults(inputKey string) (int, error) {
	var n int64
	if err := s.db.QueryRow(
		"SELECT count(*) FROM gene_results WHERE input_fingerprint=?", inputKey,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count gene results: %w", err)
	}
	return int(n), nil
}

// Clear removes all stored gene results.
func (s *Store) Clear() error {
	_, err := s.db.Exec("DELETE FROM gene_results")
	return err
}
