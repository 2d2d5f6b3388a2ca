package proposal

import (
	"html/template"
	"strings"
)

var documentTemplate = template.Must(template.New("proposal").Parse(
	`<!doctype html><html><head><meta charset="utf-8" /><meta name="viewport" content="width=device-width, initial-scale=1" />` +
		`<title>Wazimu Proposal</title>` +
		`<style>body{font-family:Inter,Arial,sans-serif;background:#f5f5f5;color:#111;margin:0;padding:24px}` +
		`main{max-width:760px;margin:0 auto;background:#fff;border-radius:16px;padding:28px;box-shadow:0 8px 24px rgba(0,0,0,0.06)}` +
		`h1{font-size:24px;margin:0 0 16px}h2{font-size:16px;margin:20px 0 8px}p{line-height:1.6;margin:0}</style>` +
		`</head><body><main><h1>Client Proposal</h1>` +
		`{{range .}}<section><h2>{{.Title}}</h2><p>{{range $i, $line := .Lines}}{{if $i}}<br />{{end}}{{$line}}{{end}}</p></section>{{end}}` +
		`</main></body></html>`))

// Format renders text as a standalone HTML document. Every piece of
// proposal text passes through html/template escaping.
func (s Script) Format(text string) string {
	var b strings.Builder
	// Execute only fails on writer errors, which strings.Builder never returns.
	_ = documentTemplate.Execute(&b, s.Parse(text))
	return b.String()
}

// Format renders text using DefaultScript.
func Format(text string) string {
	return DefaultScript.Format(text)
}
