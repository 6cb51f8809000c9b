package report

import (
	"fmt"
	"html/template"
	"io"

	"github.com/starford/fitrunner/internal/results"
)

var suiteTemplate = template.Must(template.New("suite").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Suite Results: {{.Root}}</title>
<style>
.pass{background:#cfffcf}.fail{background:#ffcfcf}.ignore{background:#efefef}.error{background:#ffffaf}
</style>
</head>
<body>
<h1>{{.Root}}</h1>
<div id="test-summary"><strong>Test Pages:</strong> {{.Pages}}&nbsp;&nbsp;&nbsp;&nbsp;&nbsp;<strong>Assertions:</strong> {{.Assertions}}</div>
<div id="execution-status" class="{{.StatusClass}}">{{.Status}}{{range .Errors}}<br/>{{.}}{{end}}</div>
<ul class="test-summaries">
{{- range .Docs}}
<li class="{{.Class}}"><a href="#{{.Anchor}}">{{.Name}}</a> {{.Summary}}</li>
{{- end}}
</ul>
{{- range .Docs}}
{{- if .Header}}
<h3>{{.Command}}</h3>
{{- end}}
<div class="test-output" id="{{.Anchor}}">
<h2 class="{{.Class}}"><a href="{{.Path}}">{{.Path}}</a></h2>
{{.Content}}
</div>
{{- end}}
</body>
</html>
`))

type htmlDoc struct {
	Anchor  string
	Name    string
	Path    string
	Class   string
	Summary string
	Header  bool
	Command string
	Content template.HTML
}

type htmlSuite struct {
	Root        string
	Pages       string
	Assertions  string
	Status      string
	StatusClass string
	Errors      []string
	Docs        []htmlDoc
}

// cssClass classifies a document the way its tally does.
func cssClass(doc results.DocumentResult) string {
	t := doc.Summary.Tally()
	switch {
	case t.Wrong > 0:
		return "fail"
	case t.Exceptions > 0:
		return "error"
	case t.Ignores > 0:
		return "ignore"
	}
	return "pass"
}

// WriteHTML renders res as a suite page. Each document gets an anchor
// "<displayName><ordinal>" linked from the summary list, and a header
// naming the fixture command whenever it changes.
func WriteHTML(w io.Writer, res *results.SuiteResult, opts Options) error {
	root := res.Root.String()
	if root == "" {
		root = "root"
	}
	data := htmlSuite{
		Root:        root,
		Pages:       res.Pages.String(),
		Assertions:  res.Summary.String(),
		Status:      "Tests executed OK",
		StatusClass: "ok",
	}

	command := ""
	for _, doc := range res.Documents {
		d := htmlDoc{
			Anchor:  doc.Anchor(),
			Name:    RelativeName(res.Root, doc),
			Path:    doc.Path.String(),
			Class:   cssClass(doc),
			Summary: doc.Summary.String(),
			Command: doc.Command,
		}
		if doc.Command != "" && doc.Command != command {
			d.Header = true
			command = doc.Command
		}
		if opts.IncludeContent {
			// Content is the annotated markup returned by the fixture server.
			d.Content = template.HTML(doc.Content)
		}
		if doc.Error != "" {
			data.Errors = append(data.Errors, fmt.Sprintf("%s: %s", doc.Path, doc.Error))
		}
		data.Docs = append(data.Docs, d)
	}
	switch {
	case res.Stopped:
		data.Status, data.StatusClass = "Run stopped", "stopped"
	case len(data.Errors) > 0:
		data.Status, data.StatusClass = "Errors occurred", "errors"
	}

	if err := suiteTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	return nil
}
