// Package report renders a pipeline result as result tables: a markdown summary,
// its HTML rendering and an xlsx workbook with one sheet per table.
package report

import (
	"fmt"
	"sort"
	"strings"

	"golos/adapters/excel"
	"golos/app"
	"golos/domain/clinical"
	"golos/domain/stats"
)

// pvalue marks a cell rendered with p-value precision
type pvalue float64

// table is one titled result table shared by the markdown and workbook renderers
type table struct {
	title  string
	sheet  string
	header []string
	rows   [][]interface{}
}

func (t *table) add(cells ...interface{}) {
	t.rows = append(t.rows, cells)
}

func overview(res *app.Result) table {
	t := table{title: "Run", sheet: "Summary", header: []string{"item", "value"}}
	t.add("run id", res.RunID.String())
	if res.Source != "" {
		t.add("source", res.Source)
	}
	t.add("rows read", res.RawRows)
	if res.Dataset != nil {
		t.add("rows analysed", res.Dataset.Len())
		t.add("rows excluded", len(res.Dataset.Exclusions))
	}
	t.add("transformation", res.Transformation.String())
	if res.Selection != nil {
		t.add("working model", res.Selection.WorkingFormula())
		t.add("reduction rule", res.Selection.Rule)
	}
	return t
}

func exclusions(res *app.Result) table {
	t := table{title: "Excluded rows", sheet: "Exclusions", header: []string{"reason", "rows"}}
	if res.Dataset == nil {
		return t
	}
	counts := res.Dataset.ExclusionCounts()
	reasons := make([]clinical.ExclusionReason, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	for _, r := range reasons {
		t.add(string(r), counts[r])
	}
	return t
}

func design(res *app.Result) table {
	tab := res.CrossTab
	t := table{
		title:  "Design balance",
		sheet:  "Design",
		header: append(append([]string(nil), tab.Factors...), "n", "mean", "median", "sd", "min", "max"),
	}
	for _, c := range tab.Cells {
		row := make([]interface{}, 0, len(t.header))
		for _, l := range c.Levels {
			row = append(row, l)
		}
		row = append(row, c.N, c.Mean, c.Median, c.SD, c.Min, c.Max)
		t.add(row...)
	}
	return t
}

func diagnostics(res *app.Result) table {
	d := res.Diagnostics
	t := table{
		title:  "Assumption diagnostics",
		sheet:  "Diagnostics",
		header: []string{"test", "statistic", "df", "p_value", "violated"},
	}
	t.add(d.Normality.Method, d.Normality.Statistic, fmt.Sprintf("n=%d", d.Normality.N), pvalue(d.Normality.PValue), d.Normality.Fails)
	t.add(d.Homogeneity.Method, d.Homogeneity.Statistic, fmt.Sprintf("%d, %d", d.Homogeneity.DF1, d.Homogeneity.DF2), pvalue(d.Homogeneity.PValue), d.Homogeneity.Unequal)
	return t
}

func lambdaGrid(res *app.Result) table {
	t := table{title: "Box-Cox profile log-likelihood", sheet: "BoxCox", header: []string{"lambda", "log_likelihood", "in_ci"}}
	for _, p := range res.BoxCox.Grid {
		t.add(p.Lambda, p.LogLik, p.Lambda >= res.BoxCox.CILower && p.Lambda <= res.BoxCox.CIUpper)
	}
	return t
}

func anovaTable(title, sheet string, a stats.ANOVATable) table {
	t := table{
		title:  fmt.Sprintf("%s: %s (Type %s)", title, a.Formula, a.Type),
		sheet:  sheet,
		header: []string{"term", "sum_sq", "df", "mean_sq", "f", "p_value"},
	}
	for _, r := range append(append([]stats.ANOVARow(nil), a.Rows...), a.Residual) {
		t.add(r.Term, r.SumSq, r.DF, r.MeanSq, r.F, pvalue(r.PValue))
	}
	return t
}

func comparison(c *stats.NestedComparison) table {
	t := table{title: "Nested model comparison", sheet: "Comparison", header: []string{"item", "value"}}
	t.add("full", c.FullFormula)
	t.add("reduced", c.ReducedFormula)
	t.add("F", c.F)
	t.add("df", fmt.Sprintf("%d, %d", c.DF1, c.DF2))
	t.add("p_value", pvalue(c.PValue))
	t.add("AIC full / reduced", fmt.Sprintf("%s / %s", number(c.FullAIC), number(c.ReducedAIC)))
	t.add("BIC full / reduced", fmt.Sprintf("%s / %s", number(c.FullBIC), number(c.ReducedBIC)))
	t.add("delta AIC", fmt.Sprintf("%s (%s)", number(c.DeltaAIC), c.AICEvidence))
	t.add("delta BIC", fmt.Sprintf("%s (%s)", number(c.DeltaBIC), c.BICEvidence))
	return t
}

func coefficients(fit *stats.FitSnapshot) table {
	t := table{
		title:  "Working model coefficients",
		sheet:  "Coefficients",
		header: []string{"coefficient", "estimate", "std_error", "t", "p_value"},
	}
	for _, c := range fit.Coefficients {
		t.add(c.Name, c.Estimate, c.StdError, c.TValue, pvalue(c.PValue))
	}
	return t
}

func means(families []stats.PostHocFamily) table {
	t := table{
		title:  "Estimated marginal means",
		sheet:  "Marginal means",
		header: []string{"stratum", "level", "estimate", "std_error", "days"},
	}
	for _, f := range families {
		for _, m := range f.Means {
			t.add(stratum(f), m.Level, m.Estimate, m.StdError, m.ResponseScale)
		}
	}
	return t
}

func pairwise(families []stats.PostHocFamily) table {
	t := table{
		title:  "Tukey pairwise comparisons",
		sheet:  "Pairwise",
		header: []string{"stratum", "contrast", "estimate", "std_error", "df", "ci_lower", "ci_upper", "p_adjusted"},
	}
	for _, f := range families {
		for _, c := range f.Comparisons {
			t.add(stratum(f), c.LevelA+" - "+c.LevelB, c.Estimate, c.StdError, c.DF, c.CILower, c.CIUpper, pvalue(c.PAdjust))
		}
	}
	return t
}

func stages(res *app.Result) table {
	t := table{title: "Stages", sheet: "Stages", header: []string{"stage", "ok", "ms", "warnings", "error"}}
	if res.Trace == nil {
		return t
	}
	for _, r := range res.Trace.Results {
		t.add(string(r.StageName), r.Success, r.Duration, strings.Join(r.Warnings, "; "), r.Error)
	}
	return t
}

func stratum(f stats.PostHocFamily) string {
	if f.Stratum == "" {
		return "all"
	}
	return f.By + "=" + f.Stratum
}

func families(res *app.Result) []stats.PostHocFamily {
	var out []stats.PostHocFamily
	if res.PostHoc.Marginal != nil {
		out = append(out, *res.PostHoc.Marginal)
	}
	return append(out, res.PostHoc.Stratified...)
}

// tables lists every result table of res in report order
func tables(res *app.Result) []table {
	out := []table{overview(res), exclusions(res), design(res), diagnostics(res), lambdaGrid(res)}
	if sel := res.Selection; sel != nil {
		out = append(out, anovaTable("Full model", "ANOVA full", sel.FullANOVA))
		if sel.ReducedANOVA != nil {
			out = append(out, anovaTable("Reduced model", "ANOVA reduced", *sel.ReducedANOVA))
		}
		if sel.Comparison != nil {
			out = append(out, comparison(sel.Comparison))
		}
		if sel.Working != nil {
			out = append(out, coefficients(sel.Working))
		}
	}
	if fams := families(res); len(fams) > 0 {
		out = append(out, means(fams), pairwise(fams))
	}
	return append(out, stages(res))
}

// Sheets converts res to workbook sheets
func Sheets(res *app.Result) []excel.Sheet {
	tabs := tables(res)
	sheets := make([]excel.Sheet, 0, len(tabs))
	for _, t := range tabs {
		s := excel.Sheet{Name: t.sheet, Header: t.header}
		for _, row := range t.rows {
			values := make([]interface{}, len(row))
			for i, v := range row {
				if p, ok := v.(pvalue); ok {
					v = float64(p)
				}
				values[i] = v
			}
			s.Rows = append(s.Rows, values)
		}
		sheets = append(sheets, s)
	}
	return sheets
}
