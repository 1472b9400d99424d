package report

import (
	"bytes"
	"context"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"golos/app"
	"golos/internal"
	"golos/internal/config"
	"golos/internal/testkit"
)

func runCohort(t *testing.T) *app.Result {
	t.Helper()
	res, err := app.NewPipeline(testkit.Config()).Run(context.Background(), testkit.Table(t))
	require.NoError(t, err)
	return res
}

func TestMarkdown(t *testing.T) {
	res := runCohort(t)
	md := string(Markdown(res))

	assert.True(t, strings.HasPrefix(md, "# Length of stay analysis\n"))
	for _, heading := range []string{
		"## Findings",
		"## Design balance",
		"## Assumption diagnostics",
		"## Box-Cox profile log-likelihood",
		"## Tukey pairwise comparisons",
		"## Stages",
	} {
		assert.Contains(t, md, heading)
	}
	assert.Contains(t, md, res.RunID.String())
	assert.Contains(t, md, "| stage | ok | ms | warnings | error |")
	assert.Contains(t, md, "Working model: `"+res.Selection.WorkingFormula()+"`")
}

func TestHTML(t *testing.T) {
	page := string(HTML(runCohort(t)))
	assert.Contains(t, page, "<html")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "Length of stay analysis")
}

func TestSheets(t *testing.T) {
	sheets := Sheets(runCohort(t))

	names := make(map[string]bool)
	for _, s := range sheets {
		assert.False(t, names[s.Name], "duplicate sheet %s", s.Name)
		names[s.Name] = true
		for _, row := range s.Rows {
			assert.Len(t, row, len(s.Header), s.Name)
			for _, v := range row {
				_, isP := v.(pvalue)
				assert.False(t, isP, "p-values are plain floats in %s", s.Name)
			}
		}
	}
	for _, want := range []string{"Summary", "Design", "Diagnostics", "BoxCox", "ANOVA full", "Pairwise", "Stages"} {
		assert.True(t, names[want], want)
	}
	assert.Equal(t, "Summary", sheets[0].Name)
}

func TestWrite(t *testing.T) {
	res := runCohort(t)
	out := config.OutputConfig{Dir: filepath.Join(t.TempDir(), "out"), Workbook: true, Markdown: true, HTML: true}

	paths, err := Write(res, out, nil)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	f, err := excelize.OpenFile(filepath.Join(out.Dir, WorkbookFile))
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue("Pairwise", "A1")
	require.NoError(t, err)
	assert.Equal(t, "stratum", v)
}

func TestWriteOnlyMarkdown(t *testing.T) {
	out := config.OutputConfig{Dir: t.TempDir(), Markdown: true}
	paths, err := Write(runCohort(t), out, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(out.Dir, MarkdownFile)}, paths)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "-", number(math.NaN()))
	assert.Equal(t, "Inf", number(math.Inf(1)))
	assert.Equal(t, "1.2346", number(1.234567))
	assert.Equal(t, "<0.0001", formatP(1e-7))
	assert.Equal(t, "0.0420", formatP(0.042))
	assert.Equal(t, "yes", format(true))
	assert.Equal(t, "0.5000", format(pvalue(0.5)))
	assert.Equal(t, `a \| b`, escape("a | b"))
}

func TestWriteUsesGivenLogger(t *testing.T) {
	res := runCohort(t)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	out := config.OutputConfig{Dir: t.TempDir(), Workbook: true, Markdown: true}
	_, err := Write(res, out, internal.NewLogger(internal.LogLevelError))
	require.NoError(t, err)
	assert.Empty(t, buf.String())

	_, err = Write(res, out, internal.NewLogger(internal.LogLevelInfo))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "[INFO] [WorkbookWriter] Wrote")
	assert.Contains(t, buf.String(), "[INFO] [Report] Wrote 2 report files")
}
