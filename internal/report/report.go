// Package report renders suite results as XML, HTML, JSON or a text table.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/starford/fitrunner/internal/models"
	"github.com/starford/fitrunner/internal/results"
)

// Format selects a renderer.
type Format string

const (
	FormatHTML Format = "html"
	FormatXML  Format = "xml"
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat maps a format name to a Format. The empty string is HTML.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatHTML, nil
	case FormatHTML, FormatXML, FormatJSON, FormatText:
		return f, nil
	}
	return "", fmt.Errorf("report: unknown format %q", s)
}

// ContentType returns the HTTP content type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatXML:
		return "text/xml; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatText:
		return "text/plain; charset=utf-8"
	}
	return "text/html; charset=utf-8"
}

// Options control what the renderers include.
type Options struct {
	// IncludeContent embeds each document's annotated content.
	IncludeContent bool
}

// Write renders res to w in format f.
func Write(w io.Writer, f Format, res *results.SuiteResult, opts Options) error {
	switch f {
	case FormatXML:
		return WriteXML(w, res, opts)
	case FormatJSON:
		return WriteJSON(w, res, opts)
	case FormatText:
		return WriteText(w, res)
	}
	return WriteHTML(w, res, opts)
}

// WriteJSON encodes res. Content is dropped unless opts.IncludeContent.
func WriteJSON(w io.Writer, res *results.SuiteResult, opts Options) error {
	out := *res
	if !opts.IncludeContent {
		out.Documents = stripContent(res.Documents)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*results.SuiteResult
		ExitCode int `json:"exit_code"`
	}{&out, res.ExitCode()})
}

func stripContent(docs []results.DocumentResult) []results.DocumentResult {
	out := make([]results.DocumentResult, len(docs))
	for i, d := range docs {
		d.Content = ""
		out[i] = d
	}
	return out
}

// RelativeName is the document's path relative to the run root, or its
// own name when it is the root.
func RelativeName(root models.PagePath, doc results.DocumentResult) string {
	if doc.Path.HasPrefix(root) && !doc.Path.Equal(root) {
		return doc.Path.RelativeTo(root).String()
	}
	if doc.Path.IsRoot() {
		return doc.DisplayName
	}
	return doc.Path.Name()
}

// PageHistoryLink links to the history record of doc written for a run
// started at ts.
func PageHistoryLink(doc results.DocumentResult, ts time.Time) string {
	return doc.Path.String() + "?pageHistory&resultDate=" + ts.Format(models.ResultDateFormat)
}
