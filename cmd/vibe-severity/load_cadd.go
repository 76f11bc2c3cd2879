package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-severity/internal/datasource/cadd"
)

func newLoadCADDCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "load-cadd",
		Short: "Load CADD whole-genome SNV scores into a DuckDB database",
		Long: `Load a CADD whole-genome SNV score file (plain or gzip TSV) into the DuckDB
database used by analyze. Existing scores in the database are replaced.`,
		Example: `  vibe-severity load-cadd --input whole_genome_SNVs.tsv.gz --db cadd.duckdb`,
		Args:    exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd, map[string]string{"cadd": "db"}); err != nil {
				return err
			}
			dbPath := viper.GetString("cadd")
			if input == "" || dbPath == "" {
				return &usageError{fmt.Errorf("--input and --db are required")}
			}

			logger, err := newLogger(viper.GetBool("verbose"))
			if err != nil {
				return err
			}
			defer logger.Sync()

			store, err := cadd.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			start := time.Now()
			logger.Info("loading CADD scores", zap.String("input", input), zap.String("db", dbPath))
			if err := store.Load(input); err != nil {
				return err
			}
			n, err := store.Count()
			if err != nil {
				return err
			}
			logger.Info("CADD scores loaded", zap.Int64("rows", n), zap.Duration("elapsed", time.Since(start)))
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "CADD whole_genome_SNVs.tsv(.gz) file")
	cmd.Flags().String("db", "", "DuckDB database to create or replace (config: cadd)")
	return cmd
}
