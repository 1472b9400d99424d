// Package cohort generates deterministic synthetic admission records with a known
// factorial structure in length of stay.
package cohort

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	"golos/adapters/excel"

	"github.com/xuri/excelize/v2"
)

// Dataset is a generated table in source form: headers plus string cells.
//
// Columns:
// - id
// - age
// - sex
// - cardiac_history
// - outcome
// - admission_date
// - discharge_date
// - ward (ignored by the pipeline)
type Dataset struct {
	Headers []string
	Rows    [][]string

	// Generated values for validation/tests, one per clean row
	LengthsOfStay []float64
}

// Config shapes the generated cohort. Length of stay follows
// log(LOS+1) = Base + Age[g] + Cardiac*c + Sex*s + AgeCardiac[g]*c + Noise*N(0,1).
type Config struct {
	Seed      int64
	StartDate time.Time

	// CellCounts is the number of subjects per [sex][age group][cardiac history] cell
	CellCounts [2][4][2]int

	Base       float64
	Age        [4]float64
	Cardiac    float64
	Sex        float64
	AgeCardiac [4]float64
	Noise      float64

	// DirtyRows appends rows that derivation must exclude
	DirtyRows int
}

// DefaultConfig is a 100-subject unbalanced cohort with cells between 3 and 20
// subjects and no sex effect.
func DefaultConfig() Config {
	return Config{
		Seed:      42,
		StartDate: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		CellCounts: [2][4][2]int{
			{{20, 3}, {8, 5}, {4, 9}, {3, 6}},
			{{3, 4}, {10, 3}, {5, 8}, {3, 6}},
		},
		Base:       1.4,
		Age:        [4]float64{0, 0.25, 0.5, 0.8},
		Cardiac:    0.4,
		AgeCardiac: [4]float64{0, 0, 0.2, 0.4},
		Noise:      0.35,
	}
}

// Subjects is the number of clean rows cfg produces
func (c Config) Subjects() int {
	total := 0
	for s := range c.CellCounts {
		for g := range c.CellCounts[s] {
			for h := range c.CellCounts[s][g] {
				total += c.CellCounts[s][g][h]
			}
		}
	}
	return total
}

// Headers are the generated column names; they match the default field map
var Headers = []string{"id", "age", "sex", "cardiac_history", "outcome", "admission_date", "discharge_date", "ward"}

var ageBounds = [4][2]int{{18, 49}, {50, 64}, {65, 79}, {80, 99}}

var wards = []string{"medical", "surgical", "cardiology", "geriatrics"}

type subject struct {
	sex, group, cardiac int
}

// Generate draws the cohort. The same config always yields the same rows.
func Generate(cfg Config) (*Dataset, error) {
	if cfg.Subjects() == 0 {
		return nil, fmt.Errorf("cohort: no subjects configured")
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	var subjects []subject
	for s := range cfg.CellCounts {
		for g := range cfg.CellCounts[s] {
			for h, n := range cfg.CellCounts[s][g] {
				if n < 0 {
					return nil, fmt.Errorf("cohort: negative count in cell %d/%d/%d", s, g, h)
				}
				for i := 0; i < n; i++ {
					subjects = append(subjects, subject{sex: s, group: g, cardiac: h})
				}
			}
		}
	}
	rng.Shuffle(len(subjects), func(i, j int) { subjects[i], subjects[j] = subjects[j], subjects[i] })

	ds := &Dataset{Headers: append([]string(nil), Headers...)}

	for i, sub := range subjects {
		lo, hi := ageBounds[sub.group][0], ageBounds[sub.group][1]
		age := lo + rng.Intn(hi-lo+1)

		c := float64(sub.cardiac)
		logStay := cfg.Base + cfg.Age[sub.group] + cfg.Cardiac*c + cfg.Sex*float64(sub.sex) +
			cfg.AgeCardiac[sub.group]*c + cfg.Noise*rng.NormFloat64()
		los := math.Max(0, math.Round(math.Exp(logStay)-1))

		admission := cfg.StartDate.AddDate(0, 0, rng.Intn(365))
		discharge := admission.AddDate(0, 0, int(los))

		// longer stays carry more adverse outcomes
		outcome := 0
		if rng.Float64() < 0.1+0.04*los {
			outcome = 1
		}

		ds.Rows = append(ds.Rows, []string{
			fmt.Sprintf("P%04d", i+1),
			strconv.Itoa(age),
			strconv.Itoa(sub.sex),
			strconv.Itoa(sub.cardiac),
			strconv.Itoa(outcome),
			admission.Format("2006-01-02"),
			discharge.Format("2006-01-02"),
			wards[rng.Intn(len(wards))],
		})
		ds.LengthsOfStay = append(ds.LengthsOfStay, los)
	}

	for i := 0; i < cfg.DirtyRows; i++ {
		ds.Rows = append(ds.Rows, dirtyRow(len(ds.Rows)+1, i, cfg.StartDate))
	}
	return ds, nil
}

// dirtyRow rotates through the defects derivation excludes
func dirtyRow(n, kind int, start time.Time) []string {
	adm := start.Format("2006-01-02")
	dis := start.AddDate(0, 0, 3).Format("2006-01-02")
	row := []string{fmt.Sprintf("X%04d", n), "55", "1", "0", "0", adm, dis, "medical"}
	switch kind % 5 {
	case 0:
		row[1] = "NA"
	case 1:
		row[1] = "104"
	case 2:
		row[5], row[6] = dis, adm
	case 3:
		row[6] = "not a date"
	case 4:
		row[4] = "unknown"
	}
	return row
}

// Tabular converts the dataset to the reader's representation
func (ds *Dataset) Tabular() *excel.TabularData {
	data := &excel.TabularData{Headers: append([]string(nil), ds.Headers...)}
	for _, row := range ds.Rows {
		raw := make(excel.RawRowData, len(ds.Headers))
		for c, h := range ds.Headers {
			raw[h] = row[c]
		}
		data.Rows = append(data.Rows, raw)
	}
	return data
}

// WriteCSV writes the dataset with a header row
func WriteCSV(path string, ds *Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(ds.Headers); err != nil {
		return err
	}
	for _, row := range ds.Rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

// WriteXLSX writes the dataset to Sheet1 of a new workbook
func WriteXLSX(path string, ds *Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx == -1 {
		idx, err := f.NewSheet(sheet)
		if err != nil {
			return err
		}
		f.SetActiveSheet(idx)
	}

	for i, h := range ds.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r, row := range ds.Rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return f.SaveAs(path)
}
