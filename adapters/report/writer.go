package report

import (
	"os"
	"path/filepath"

	"golos/adapters/excel"
	"golos/app"
	"golos/internal"
	"golos/internal/config"
	"golos/internal/errors"
)

// File names written into the output directory
const (
	WorkbookFile = "results.xlsx"
	MarkdownFile = "report.md"
	HTMLFile     = "report.html"
)

// Write renders res into the formats enabled in out and returns the written paths.
// A nil logger falls back to the LOG_LEVEL default.
func Write(res *app.Result, out config.OutputConfig, logger *internal.Logger) ([]string, error) {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	base := logger
	logger = logger.With("Report")
	if err := os.MkdirAll(out.Dir, 0o755); err != nil {
		return nil, errors.ReportWriteFailed(out.Dir, err)
	}

	var written []string
	if out.Workbook {
		path := filepath.Join(out.Dir, WorkbookFile)
		if err := excel.NewWriter(path).WithLogger(base).Write(Sheets(res)); err != nil {
			return written, errors.ReportWriteFailed(path, err)
		}
		written = append(written, path)
	}

	files := []struct {
		enabled bool
		name    string
		render  func(*app.Result) []byte
	}{
		{out.Markdown, MarkdownFile, Markdown},
		{out.HTML, HTMLFile, HTML},
	}
	for _, f := range files {
		if !f.enabled {
			continue
		}
		path := filepath.Join(out.Dir, f.name)
		if err := os.WriteFile(path, f.render(res), 0o644); err != nil {
			return written, errors.ReportWriteFailed(path, err)
		}
		written = append(written, path)
	}

	logger.Info("Wrote %d report files to %s", len(written), out.Dir)
	return written, nil
}
