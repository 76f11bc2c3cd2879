package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/inodb/vibe-severity/internal/combine"
)

func newCombineCmd() *cobra.Command {
	var (
		columns    []string
		name       string
		outputFile string
		severity   string
		key        string
	)

	cmd := &cobra.Command{
		Use:   "combine [flags] <table.tsv>",
		Short: "Combine per-gene p-values with Fisher's method",
		Long: `Append a column holding the Fisher combination of several p-value columns
of a tab-delimited table. With --severity, the p_value column of an analyze
result is first joined onto the table by gene symbol as column p_severity.
Missing or NA values are skipped.`,
		Example: `  vibe-severity combine --columns p_func,p_clust --name p_combined enrichment.tsv
  vibe-severity combine --severity results.tsv --key hgnc \
      --columns p_func,p_severity,p_clust --name p_func_sev_clust enrichment.tsv`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(columns) == 0 {
				return &usageError{fmt.Errorf("--columns is required")}
			}

			table, err := readTable(args[0])
			if err != nil {
				return err
			}

			if severity != "" {
				results, err := readTable(severity)
				if err != nil {
					return err
				}
				values, err := results.Lookup("symbol", "p_value")
				if err != nil {
					return fmt.Errorf("%s: %w", severity, err)
				}
				if err := table.Join(key, "p_severity", values); err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
			}

			if err := table.AddFisher(columns, name); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			var out io.Writer = cmd.OutOrStdout()
			if outputFile != "" {
				f, err := os.Create(outputFile)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			return table.Write(out)
		},
	}

	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Comma-separated p-value columns to combine")
	cmd.Flags().StringVar(&name, "name", "p_combined", "Name of the appended column")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&severity, "severity", "", "analyze result table to join as p_severity")
	cmd.Flags().StringVar(&key, "key", "symbol", "Gene symbol column of the input table, used with --severity")
	return cmd
}

func readTable(path string) (*combine.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := combine.ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
