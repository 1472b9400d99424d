// Package testkit provides deterministic fixtures shared by package tests.
package testkit

import (
	"path/filepath"
	"testing"

	"golos/adapters/excel"
	"golos/domain/clinical"
	"golos/internal/cohort"
	"golos/internal/config"
	"golos/internal/dataset"
)

// Config returns the default analysis parameters with quiet logging and a
// single grid worker
func Config() config.Config {
	cfg := config.Default()
	cfg.Logging.Level = "ERROR"
	cfg.Analysis.Workers = 1
	return cfg
}

// Cohort generates the default synthetic cohort
func Cohort(tb testing.TB) *cohort.Dataset {
	tb.Helper()
	return CohortWith(tb, cohort.DefaultConfig())
}

// CohortWith generates a cohort from cfg, failing the test on error
func CohortWith(tb testing.TB, cfg cohort.Config) *cohort.Dataset {
	tb.Helper()
	ds, err := cohort.Generate(cfg)
	if err != nil {
		tb.Fatalf("generate cohort: %v", err)
	}
	return ds
}

// Table returns the default cohort in ingested form
func Table(tb testing.TB) *excel.TabularData {
	tb.Helper()
	return Cohort(tb).Tabular()
}

// Prepared derives and filters a generated cohort with the default field map
func Prepared(tb testing.TB, ds *cohort.Dataset) *clinical.Dataset {
	tb.Helper()
	return dataset.NewProcessor(config.Default().Fields).Prepare(ds.Tabular())
}

// WriteCSV writes ds to a CSV file in a per-test temporary directory
func WriteCSV(tb testing.TB, ds *cohort.Dataset) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "cohort.csv")
	if err := cohort.WriteCSV(path, ds); err != nil {
		tb.Fatalf("write csv: %v", err)
	}
	return path
}

// WriteXLSX writes ds to a workbook in a per-test temporary directory
func WriteXLSX(tb testing.TB, ds *cohort.Dataset) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "cohort.xlsx")
	if err := cohort.WriteXLSX(path, ds); err != nil {
		tb.Fatalf("write xlsx: %v", err)
	}
	return path
}
