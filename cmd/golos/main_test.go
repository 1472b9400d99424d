package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerateAnalyze(t *testing.T) {
	t.Setenv("LOG_LEVEL", "ERROR")
	dir := t.TempDir()
	input := filepath.Join(dir, "cohort.xlsx")

	out, err := execute(t, "generate", "--out", input, "--dirty", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 103 rows")

	out, err = execute(t, "crosstab", input)
	require.NoError(t, err)
	assert.Contains(t, out, "100 of 103 rows retained")
	assert.Contains(t, out, "cells 16, empty 0")

	reports := filepath.Join(dir, "out")
	metricsFile := filepath.Join(dir, "metrics.prom")
	out, err = execute(t, "analyze", input, "--out", reports, "--workers", "2", "--metrics-out", metricsFile)
	require.NoError(t, err)
	assert.Contains(t, out, "100 of 103 rows analysed")
	assert.Contains(t, out, "working model:")

	for _, name := range []string{"results.xlsx", "report.md", "report.html"} {
		_, err := os.Stat(filepath.Join(reports, name))
		assert.NoError(t, err, name)
	}

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "golos_pipeline_runs_total")
	assert.Contains(t, string(prom), "golos_stage_seconds")
}

func TestAnalyzeErrors(t *testing.T) {
	t.Setenv("LOG_LEVEL", "ERROR")

	_, err := execute(t, "analyze")
	require.Error(t, err)

	_, err = execute(t, "analyze", filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)

	_, err = execute(t, "analyze", "x.csv", "--rule", "stepwise")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reduction rule")
}

func TestGenerateRejectsUnknownExtension(t *testing.T) {
	_, err := execute(t, "generate", "--out", filepath.Join(t.TempDir(), "cohort.json"))
	require.Error(t, err)
}
