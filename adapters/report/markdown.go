package report

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golos/app"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

var cellEscaper = strings.NewReplacer("|", `\|`, "*", `\*`)

// Markdown renders res as a markdown document with one pipe table per result table
func Markdown(res *app.Result) []byte {
	var b bytes.Buffer
	b.WriteString("# Length of stay analysis\n\n")
	if res.Trace != nil {
		fmt.Fprintf(&b, "Run `%s` started %s.\n\n", res.RunID, res.Trace.StartedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	writeFindings(&b, res)
	for _, t := range tables(res) {
		writeTable(&b, t)
	}
	return b.Bytes()
}

// HTML renders the markdown report as a standalone page
func HTML(res *app.Result) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse(Markdown(res))
	renderer := html.NewRenderer(html.RendererOptions{
		Title: "Length of stay analysis " + res.RunID.String(),
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.Render(doc, renderer)
}

func writeFindings(b *bytes.Buffer, res *app.Result) {
	b.WriteString("## Findings\n\n")
	d := res.Diagnostics
	fmt.Fprintf(b, "- Residual normality: W = %s, p = %s.\n", number(d.Normality.Statistic), formatP(d.Normality.PValue))
	fmt.Fprintf(b, "- Equal cell variances: F = %s, p = %s.\n", number(d.Homogeneity.Statistic), formatP(d.Homogeneity.PValue))

	bc := res.BoxCox
	if len(bc.Grid) > 0 {
		fmt.Fprintf(b, "- Box-Cox lambda* = %s, 95%% interval [%s, %s]; working response uses %s.\n",
			number(bc.Best.Lambda), number(bc.CILower), number(bc.CIUpper), escape(res.Transformation.String()))
	}

	if sel := res.Selection; sel != nil {
		switch {
		case sel.Comparison == nil:
			b.WriteString("- The full model is retained; every factor appears in a significant term.\n")
		case sel.AdoptedReduced:
			fmt.Fprintf(b, "- Reduced model adopted (F = %s, p = %s, delta AIC %s).\n",
				number(sel.Comparison.F), formatP(sel.Comparison.PValue), number(sel.Comparison.DeltaAIC))
		default:
			fmt.Fprintf(b, "- Reduced model rejected (F = %s, p = %s).\n", number(sel.Comparison.F), formatP(sel.Comparison.PValue))
		}
		fmt.Fprintf(b, "- Working model: `%s`.\n", sel.WorkingFormula())
	}
	if res.PostHoc.Skipped != "" {
		fmt.Fprintf(b, "- Post-hoc comparisons skipped: %s.\n", escape(res.PostHoc.Skipped))
	}
	b.WriteString("\n")
}

func writeTable(b *bytes.Buffer, t table) {
	fmt.Fprintf(b, "## %s\n\n", escape(t.title))
	if len(t.rows) == 0 {
		b.WriteString("None.\n\n")
		return
	}
	b.WriteString("| " + strings.Join(t.header, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(t.header)) + "\n")
	for _, row := range t.rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = escape(format(v))
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	b.WriteString("\n")
}

func format(v interface{}) string {
	switch x := v.(type) {
	case pvalue:
		return formatP(float64(x))
	case float64:
		return number(x)
	case bool:
		if x {
			return "yes"
		}
		return "no"
	case string:
		return x
	}
	return fmt.Sprint(v)
}

func number(v float64) string {
	switch {
	case math.IsNaN(v):
		return "-"
	case math.IsInf(v, 1):
		return "Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'g', 5, 64)
}

func formatP(p float64) string {
	if math.IsNaN(p) {
		return "-"
	}
	if p < 1e-4 {
		return "<0.0001"
	}
	return strconv.FormatFloat(p, 'f', 4, 64)
}

func escape(s string) string {
	return cellEscaper.Replace(s)
}
