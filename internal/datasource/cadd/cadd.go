// Package cadd provides CADD severity score lookups backed by DuckDB. CADD
// data is loaded from the official whole-genome SNV TSV files
// (Rentzsch et al., Nucleic Acids Res. 2019).
package cadd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-severity/internal/severity"
)

// Store provides CADD score range queries backed by DuckDB.
type Store struct {
	db *sql.DB

	prepareOnce sync.Once
	fetchPS     *sql.Stmt // prepared statement for Fetch, lazily initialized
	prepareErr  error
}

// Open opens or creates a DuckDB database for CADD data at the given path.
// An empty path opens an in-memory database.
func Open(dbPath string) (*Store, error) {
	if dbPath != "" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS cadd (
		chrom VARCHAR,
		pos BIGINT,
		ref VARCHAR,
		alt VARCHAR,
		raw_score FLOAT,
		phred FLOAT
	)`); err != nil {
		return err
	}
	// Index for range lookups
	s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_cadd_pos ON cadd (chrom, pos)`)
	return nil
}

// Loaded returns true if the CADD table has data.
func (s *Store) Loaded() bool {
	n, err := s.Count()
	return err == nil && n > 0
}

// Count returns the number of rows in the CADD table.
func (s *Store) Count() (int64, error) {
	var count int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM cadd").Scan(&count); err != nil {
		return 0, fmt.Errorf("count cadd rows: %w", err)
	}
	return count, nil
}

// Load bulk-loads CADD scores from a (optionally gzipped) TSV file using
// DuckDB's read_csv, replacing any existing rows. The file starts with two
// comment lines:
//
//	## CADD GRCh38-v1.6 (c) University of Washington, Hudson-Alpha Institute for Biotechnology and Berlin Institute of Health 2013-2020. All rights reserved.
//	#Chrom	Pos	Ref	Alt	RawScore	PHRED
//
// A "chr" prefix on chromosome names is removed.
func (s *Store) Load(tsvPath string) error {
	if _, err := s.db.Exec(`DELETE FROM cadd`); err != nil {
		return fmt.Errorf("clear cadd table: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO cadd
		SELECT regexp_replace(column0, '^chr', ''), column1, column2, column3,
			CAST(column4 AS FLOAT), CAST(column5 AS FLOAT)
		FROM read_csv('%s', delim='\t', header=false, skip=2,
			columns={
				'column0': 'VARCHAR',
				'column1': 'BIGINT',
				'column2': 'VARCHAR',
				'column3': 'VARCHAR',
				'column4': 'VARCHAR',
				'column5': 'VARCHAR'
			})`, strings.ReplaceAll(tsvPath, "'", "''"))

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("loading CADD data: %w", err)
	}
	return nil
}

// Fetch returns the PHRED-scaled scores of every allele in [start, end) on
// chrom. It implements severity.ScoreSource and is safe for concurrent use.
func (s *Store) Fetch(ctx context.Context, chrom string, start, end int64) ([]severity.Score, error) {
	s.prepareOnce.Do(func() {
		s.fetchPS, s.prepareErr = s.db.Prepare(
			"SELECT DISTINCT pos, alt, phred FROM cadd WHERE chrom=? AND pos>=? AND pos<? ORDER BY pos, alt",
		)
	})
	if s.prepareErr != nil {
		return nil, fmt.Errorf("prepare cadd fetch: %w", s.prepareErr)
	}

	rows, err := s.fetchPS.QueryContext(ctx, strings.TrimPrefix(chrom, "chr"), start, end)
	if err != nil {
		return nil, fmt.Errorf("query cadd: %w", err)
	}
	defer rows.Close()

	var out []severity.Score
	for rows.Next() {
		var sc severity.Score
		var phred float32
		if err := rows.Scan(&sc.Pos, &sc.Alt, &phred); err != nil {
			return nil, fmt.Errorf("scan cadd row: %w", err)
		}
		sc.Value = float64(phred)
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cadd rows: %w", err)
	}
	return out, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.fetchPS != nil {
		s.fetchPS.Close()
	}
	return s.db.Close()
}
