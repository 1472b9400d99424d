package excel

import (
	"fmt"
	"math"

	"golos/internal"

	"github.com/xuri/excelize/v2"
)

// maxSheetName is the worksheet name limit of the xlsx format
const maxSheetName = 31

// Sheet is one result table written as a worksheet: a bold, frozen header row
// followed by data rows
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]interface{}
}

// Writer writes result tables to a new workbook, one sheet per table
type Writer struct {
	filePath string
	logger   *internal.Logger
}

// NewWriter creates a writer for the workbook at filePath
func NewWriter(filePath string) *Writer {
	return &Writer{
		filePath: filePath,
		logger:   internal.DefaultLogger.With("WorkbookWriter"),
	}
}

// WithLogger replaces the logger, keeping the WorkbookWriter component prefix
func (w *Writer) WithLogger(logger *internal.Logger) *Writer {
	if logger != nil {
		w.logger = logger.With("WorkbookWriter")
	}
	return w
}

// Write saves sheets in order. The first sheet replaces the default Sheet1.
func (w *Writer) Write(sheets []Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("workbook %s: no sheets to write", w.filePath)
	}

	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(sheets))
	for i, s := range sheets {
		name := sheetName(s.Name)
		if seen[name] {
			return fmt.Errorf("workbook %s: duplicate sheet %q", w.filePath, name)
		}
		seen[name] = true

		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return err
		}

		if err := writeSheet(f, name, s, bold); err != nil {
			return fmt.Errorf("sheet %s: %w", name, err)
		}
	}

	if err := f.SaveAs(w.filePath); err != nil {
		return err
	}
	w.logger.Info("Wrote %d sheets to %s", len(sheets), w.filePath)
	return nil
}

func writeSheet(f *excelize.File, name string, s Sheet, headerStyle int) error {
	header := make([]interface{}, len(s.Header))
	for i, h := range s.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}
	if len(s.Header) > 0 {
		if err := f.SetRowStyle(name, 1, 1, headerStyle); err != nil {
			return err
		}
		if err := f.SetPanes(name, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return err
		}
	}

	for r, row := range s.Rows {
		values := make([]interface{}, len(row))
		for c, v := range row {
			values[c] = cellValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

// cellValue leaves non-finite floats blank; xlsx has no NaN or infinity
func cellValue(v interface{}) interface{} {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		if math.IsInf(x, 1) {
			return "Inf"
		}
		if math.IsInf(x, -1) {
			return "-Inf"
		}
	}
	return v
}

func sheetName(name string) string {
	if name == "" {
		name = "Sheet"
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}
