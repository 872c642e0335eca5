package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
)

// WriteJSON serializes the document with stable field names.
func WriteJSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// markdownTemplate renders the human-readable summary.
const markdownTemplate = `# MySQL Upgrade Precheck Report
**Target Version:** {{.TargetVersion}}
**Generated:** {{.GeneratedAt}}
**Fleet Status:** {{.Status}}

## 1. Summary
| Severity | Count |
| :--- | ---: |
| Critical | {{.Counts.Critical}} |
| Warning | {{.Counts.Warning}} |
| Info | {{.Counts.Info}} |
| Pass | {{.Counts.Pass}} |

## 2. Recommended Upgrade Order
{{range $i, $id := .UpgradeOrder}}{{inc $i}}. {{$id}}
{{end}}
## 3. Targets
{{range .Targets}}
### {{.Target.Identifier}} ({{.Target.EngineVersion}}): {{.Status}}, score {{.Score}}
{{- range .Findings}}{{if ne .Severity "pass"}}
* **[{{.Severity}}]** {{if .Object}}` + "`{{.Object}}`" + `: {{end}}{{.Message}}{{end}}{{end}}
{{- range .Failures}}
* **[failed]** {{.CheckKey}}: {{.Reason}}{{end}}
{{- range .Skipped}}
* **[skipped]** {{.CheckKey}}: {{.Reason}}{{end}}
{{end}}`

// WriteMarkdown renders the document for humans. The JSON document remains
// the contract; this rendering may change freely.
func WriteMarkdown(w io.Writer, doc *Document) error {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).Parse(markdownTemplate)
	if err != nil {
		return fmt.Errorf("parse report template: %w", err)
	}
	if err := tmpl.Execute(w, doc); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
