// Package report writes the optional output/report.html summary named in
// spec §6's project layout table but left unspecified there. Grounded on
// scrapewizard/report/html_generator.py (original_source): gather the
// output rows and session URL, render a static page with row count and a
// sample table. Adapted from the teacher's text/template usage in
// internal/autopoiesis/toolgen.go, using html/template instead since this
// output is rendered in a browser and must escape untrusted field values.
package report

import (
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"time"

	"scrapeforge/internal/artifact"
)

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>scrapeforge report: {{.URL}}</title>
<style>
body { font-family: -apple-system, sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.6rem; text-align: left; }
th { background: #f4f4f4; }
.meta { color: #555; margin-bottom: 1rem; }
</style>
</head>
<body>
<h1>{{.URL}}</h1>
<p class="meta">{{.RecordCount}} records &middot; generated {{.GeneratedAt}}</p>
{{if .Fields}}
<table>
<thead><tr>{{range .Fields}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Sample}}{{$row := .}}<tr>{{range $.Fields}}<td>{{index $row .}}</td>{{end}}</tr>
{{end}}
</tbody>
</table>
{{else}}
<p>No records extracted.</p>
{{end}}
</body>
</html>
`

var tmpl = template.Must(template.New("report").Parse(pageTemplate))

type viewRow map[string]interface{}

type viewData struct {
	URL         string
	RecordCount int
	GeneratedAt string
	Fields      []string
	Sample      []viewRow
}

const sampleSize = 10

// Generate writes output/report.html from the project's output/data.json
// and session.json, matching html_generator.py's shape (row count, field
// list, sample rows). It is best-effort: callers log failures and never
// fail a run because of them (spec §3 calls it cosmetic).
func Generate(store *artifact.Store, session *artifact.Session) error {
	sample, total, err := store.ReadOutputPreview(sampleSize)
	if err != nil {
		sample, total = nil, 0
	}

	data := viewData{
		URL:         session.URL,
		RecordCount: total,
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
		Fields:      fieldsOf(sample),
	}
	for _, row := range sample {
		data.Sample = append(data.Sample, row)
	}

	path := filepath.Join(store.Dir(), "output", "report.html")
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := tmpl.Execute(f, data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// fieldsOf derives a stable column order from every sample row, the same
// "sorted field union" idea the runtime's CSV/XLSX writers use.
func fieldsOf(sample []map[string]interface{}) []string {
	if len(sample) == 0 {
		return nil
	}
	seen := map[string]bool{}
	var fields []string
	for _, row := range sample {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				fields = append(fields, k)
			}
		}
	}
	sort.Strings(fields)
	return fields
}
