// Package report renders compatibility reports for human and machine
// consumption: indented JSON for tooling, CSV for spreadsheets, and a
// self-contained HTML page for people.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strconv"

	"github.com/hazyhaar/fidelity/compat"
)

// RenderJSON writes the report as indented JSON.
func RenderJSON(w io.Writer, r *compat.CompatibilityReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

// RenderCSV writes the per-platform rows as CSV with a header line.
func RenderCSV(w io.Writer, r *compat.CompatibilityReport) error {
	cw := csv.NewWriter(w)
	header := []string{"platform", "total_carriers", "preserved", "modified", "lost", "survival_rate", "critical_failures", "tolerance_passed", "partial"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("report: write csv header: %w", err)
	}
	for _, p := range r.Platforms {
		row := []string{
			p.Platform,
			strconv.Itoa(p.TotalCarriers),
			strconv.Itoa(p.Preserved),
			strconv.Itoa(p.Modified),
			strconv.Itoa(p.Lost),
			strconv.FormatFloat(p.SurvivalRate, 'f', 1, 64),
			strconv.Itoa(len(p.CriticalFailures)),
			strconv.FormatBool(p.TolerancePassed),
			strconv.FormatBool(p.Partial),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("report: write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report: flush csv: %w", err)
	}
	return nil
}

var htmlTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8"><meta name="viewport" content="width=device-width,initial-scale=1">
<title>Template Compatibility &mdash; {{.DocType}}</title>
<style>
body{font-family:system-ui,sans-serif;max-width:900px;margin:2rem auto;padding:0 1rem;color:#222;background:#fafafa}
h1{font-size:1.4rem;border-bottom:2px solid #e0e0e0;padding-bottom:.5rem}
table{border-collapse:collapse;width:100%;background:#fff;margin-bottom:1.5rem}
th,td{border:1px solid #e0e0e0;padding:.4rem .6rem;text-align:left;font-size:.9rem}
th{background:#f0f0f0}
.ok{color:#2e7d32}.bad{color:#c62828}.partial{color:#ef6c00;font-style:italic}
.metrics{background:#fff;border:1px solid #e0e0e0;border-radius:6px;padding:1rem;margin-bottom:1.5rem}
.rec{background:#fff8e1;border:1px solid #ffe082;border-radius:6px;padding:.6rem 1rem;margin-bottom:.5rem;font-size:.9rem}
</style></head><body>
<h1>Template Compatibility &mdash; {{.DocType}} ({{.Profile}})</h1>
<div class="metrics">
Overall survival {{printf "%.1f" .OverallMetrics.OverallSurvivalRate}}% &mdash;
critical success {{printf "%.1f" .OverallMetrics.CriticalSuccessRate}}% &mdash;
reliability {{printf "%.1f" .OverallMetrics.ReliabilityScore}}
</div>
<h2>Platforms</h2>
<table><tr><th>Platform</th><th>Tokens</th><th>Preserved</th><th>Modified</th><th>Lost</th><th>Survival</th><th>Tolerance</th></tr>
{{- range .Platforms}}
<tr{{if .Partial}} class="partial"{{end}}><td>{{.Platform}}</td><td>{{.TotalCarriers}}</td><td>{{.Preserved}}</td><td>{{.Modified}}</td><td>{{.Lost}}</td>
<td>{{printf "%.1f" .SurvivalRate}}%</td>
<td>{{if .TolerancePassed}}<span class="ok">pass</span>{{else}}<span class="bad">fail</span>{{end}}</td></tr>
{{- end}}
</table>
<h2>Carriers</h2>
<table><tr><th>Kind</th><th>Tokens</th><th>Failing tokens</th></tr>
{{- range .Carriers}}
<tr><td>{{.Kind}}</td><td>{{.TotalTokens}}</td><td>{{range $i, $f := .CommonFailures}}{{if $i}}, {{end}}{{$f}}{{end}}</td></tr>
{{- end}}
</table>
{{- if .Recommendations}}
<h2>Recommendations</h2>
{{- range .Recommendations}}
<div class="rec">{{.}}</div>
{{- end}}
{{- end}}
</body></html>`))

// RenderHTML writes the report as a standalone HTML page.
func RenderHTML(w io.Writer, r *compat.CompatibilityReport) error {
	if err := htmlTmpl.Execute(w, r); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	return nil
}
