package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/hypothesis-lab/internal/export"
)

var (
	exportOut  string
	exportFrom string
	exportTo   string
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect the analysis job ledger",
}

var jobsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the job ledger to an XLSX workbook",
	Long: `Export writes one row per recorded analysis (status, sizes, provider, error kind).
The ledger never stores analysis content.

Dates are YYYY-MM-DD. Only --from exports through today; only --to exports
everything up to that day.`,
	Args: cobra.NoArgs,
	RunE: runJobsExport,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsExportCmd)
	jobsExportCmd.Flags().StringVarP(&exportOut, "out", "o", "analysis_jobs.xlsx", "output path")
	jobsExportCmd.Flags().StringVar(&exportFrom, "from", "", "first day (YYYY-MM-DD)")
	jobsExportCmd.Flags().StringVar(&exportTo, "to", "", "last day (YYYY-MM-DD)")
}

func runJobsExport(cmd *cobra.Command, args []string) error {
	from, err := parseDay(exportFrom)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	to, err := parseDay(exportTo)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Ledger.Driver == "" {
		return errors.New("the job ledger is disabled (set ledger.driver and ledger.dsn)")
	}
	logger := newLogger(cfg.Log)

	ctx := context.Background()
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	xlsx, err := export.NewService(a.jobs, logger).JobsXLSX(ctx, export.Window(from, to, time.Now()))
	if err != nil {
		return err
	}
	if err := os.WriteFile(exportOut, xlsx, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", exportOut, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", exportOut, len(xlsx))
	return nil
}

func parseDay(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("want YYYY-MM-DD, got %q", s)
	}
	return &t, nil
}
