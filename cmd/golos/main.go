package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golos/adapters/excel"
	"golos/adapters/report"
	"golos/app"
	"golos/internal"
	"golos/internal/cohort"
	"golos/internal/config"
	"golos/internal/dataset"
	"golos/internal/errors"
	"golos/internal/metrics"
	"golos/internal/summary"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "golos: %v (%s)\n", err, errors.GetCode(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "golos",
		Short:         "Length-of-stay factorial ANOVA pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML parameters file (default $GOLOS_CONFIG)")

	load := func() (*config.Config, error) {
		return config.Load(configPath)
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(load),
		newGenerateCmd(),
		newCrosstabCmd(load),
	)
	return rootCmd
}

func newAnalyzeCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		outDir     string
		rule       string
		sheet      string
		metricsOut string
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Run the full pipeline on a CSV or XLSX file and write reports",
		Long: `Run ingestion, derivation, diagnostics, Box-Cox selection, full and reduced
Type II ANOVA and Tukey post-hoc comparisons, then write the workbook and
markdown/HTML reports to the output directory.

Example: golos analyze admissions.xlsx --out ./out --rule hierarchical`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			path := cfg.Data.InputFile
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errors.InvalidInput("no input file given")
			}
			if cmd.Flags().Changed("out") {
				cfg.Output.Dir = outDir
			}
			if cmd.Flags().Changed("rule") {
				cfg.Analysis.ReductionRule = rule
			}
			if cmd.Flags().Changed("sheet") {
				cfg.Data.Sheet = sheet
			}
			if cmd.Flags().Changed("workers") {
				cfg.Analysis.Workers = workers
			}
			if cmd.Flags().Changed("metrics-out") {
				cfg.Output.MetricsFile = metricsOut
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runAnalyze(cmd, *cfg, path)
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "./out", "Output directory for reports")
	cmd.Flags().StringVar(&rule, "rule", "factors", "Reduction rule: factors or hierarchical")
	cmd.Flags().StringVar(&sheet, "sheet", "Sheet1", "Worksheet to read from xlsx input")
	cmd.Flags().StringVar(&metricsOut, "metrics-out", "", "Write Prometheus text metrics to this file")
	cmd.Flags().IntVar(&workers, "workers", 4, "Concurrent Box-Cox grid fits")

	return cmd
}

func runAnalyze(cmd *cobra.Command, cfg config.Config, path string) error {
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return err
	}

	pipeline := app.NewPipeline(cfg)
	res, runErr := pipeline.RunFile(cmd.Context(), path)
	if cfg.Output.MetricsFile != "" {
		if err := writeMetrics(cfg.Output.MetricsFile, reg); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}

	paths, err := report.Write(res, cfg.Output, pipeline.Logger())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %d of %d rows analysed\n", res.RunID, res.Dataset.Len(), res.RawRows)
	fmt.Fprintf(out, "transformation: %s\n", res.Transformation)
	fmt.Fprintf(out, "working model:  %s\n", res.Selection.WorkingFormula())
	if c := res.Selection.Comparison; c != nil {
		fmt.Fprintf(out, "nested F(%d, %d) = %.4g, p = %.4g, delta AIC = %.3g\n", c.DF1, c.DF2, c.F, c.PValue, c.DeltaAIC)
	}
	if res.PostHoc.Skipped != "" {
		fmt.Fprintf(out, "post-hoc skipped: %s\n", res.PostHoc.Skipped)
	}
	for _, p := range paths {
		fmt.Fprintf(out, "wrote %s\n", p)
	}
	return nil
}

func writeMetrics(path string, reg *prometheus.Registry) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.ReportWriteFailed(path, err)
	}
	defer f.Close()
	if err := metrics.WriteText(f, reg); err != nil {
		return errors.ReportWriteFailed(path, err)
	}
	return nil
}

func newGenerateCmd() *cobra.Command {
	var (
		outPath string
		seed    int64
		dirty   int
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic unbalanced admissions cohort",
		Long: `Write a deterministic synthetic cohort of 100 admissions with a known
age_group x cardiac_history structure in length of stay and no sex effect.

Example: golos generate --out cohort.xlsx --seed 7 --dirty 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cohort.DefaultConfig()
			cfg.Seed = seed
			cfg.DirtyRows = dirty

			ds, err := cohort.Generate(cfg)
			if err != nil {
				return err
			}
			switch strings.ToLower(filepath.Ext(outPath)) {
			case ".csv":
				err = cohort.WriteCSV(outPath, ds)
			case ".xlsx":
				err = cohort.WriteXLSX(outPath, ds)
			default:
				return errors.InvalidInput("output must end in .csv or .xlsx: " + outPath)
			}
			if err != nil {
				return errors.ReportWriteFailed(outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", len(ds.Rows), outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "cohort.csv", "Output file (.csv or .xlsx)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	cmd.Flags().IntVar(&dirty, "dirty", 0, "Append this many rows that derivation must exclude")

	return cmd
}

func newCrosstabCmd(load func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crosstab [file]",
		Short: "Print the factor-cell counts and length-of-stay summary of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger := internal.NewLogger(internal.ParseLogLevel(cfg.Logging.Level))
			data, err := excel.NewDataReader(args[0]).WithSheet(cfg.Data.Sheet).WithLogger(logger).ReadData(cfg.Fields.Required()...)
			if err != nil {
				return errors.Wrap(err, "ingest")
			}
			ds := dataset.NewProcessor(cfg.Fields).WithLogger(logger).Prepare(data)
			tab, err := summary.Tabulate(ds, app.ModelFactors...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d of %d rows retained\n\n", ds.Len(), len(data.Rows))
			if err := tab.Write(out); err != nil {
				return err
			}
			fmt.Fprintf(out, "\ncells %d, empty %d, min %d, max %d, balanced %t\n",
				len(tab.Cells), tab.EmptyCells, tab.MinCount, tab.MaxCount, tab.Balanced)
			return nil
		},
	}
	return cmd
}
