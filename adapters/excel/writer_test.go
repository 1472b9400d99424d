package excel

import (
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriterSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.xlsx")
	sheets := []Sheet{
		{
			Name:   "ANOVA",
			Header: []string{"term", "sum_sq", "df", "p_value"},
			Rows: [][]interface{}{
				{"age_group", 1.5, 3, 0.002},
				{"Residuals", 12.25, 92, math.NaN()},
			},
		},
		{
			Name:   strings.Repeat("x", 40),
			Header: []string{"statistic"},
			Rows:   [][]interface{}{{math.Inf(1)}},
		},
	}
	require.NoError(t, NewWriter(path).Write(sheets))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"ANOVA", strings.Repeat("x", 31)}, f.GetSheetList())

	cell := func(sheet, ref string) string {
		v, err := f.GetCellValue(sheet, ref)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "term", cell("ANOVA", "A1"))
	assert.Equal(t, "age_group", cell("ANOVA", "A2"))
	assert.Equal(t, "1.5", cell("ANOVA", "B2"))
	assert.Equal(t, "92", cell("ANOVA", "C3"))
	assert.Equal(t, "", cell("ANOVA", "D3"))
	assert.Equal(t, "Inf", cell(strings.Repeat("x", 31), "A2"))

	// the written workbook is readable as an input table
	data, err := NewDataReader(path).WithSheet("ANOVA").ReadData("term", "df")
	require.NoError(t, err)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, "3", data.Rows[0]["df"])
}

func TestWriterRejectsEmptyAndDuplicate(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, NewWriter(filepath.Join(dir, "a.xlsx")).Write(nil))

	err := NewWriter(filepath.Join(dir, "b.xlsx")).Write([]Sheet{{Name: "T"}, {Name: "T"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate sheet")
}
