package report

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/starford/fitrunner/internal/models"
	"github.com/starford/fitrunner/internal/results"
)

// TestResults is the XML document produced for a run.
type TestResults struct {
	XMLName  xml.Name `xml:"testResults"`
	RootPath string   `xml:"rootPath"`
	RunID    string   `xml:"runId,omitempty"`
	Date     string   `xml:"date"`
	Results  []Result `xml:"result"`
	// FinalCounts tallies documents by their worst counter.
	FinalCounts models.Summary `xml:"finalCounts"`
	// FinalAssertionCounts is the sum of every document's assertions.
	FinalAssertionCounts models.Summary `xml:"finalAssertionCounts"`
	TotalRunTimeInMillis int64          `xml:"totalRunTimeInMillis"`
	Stopped              bool           `xml:"stopped,omitempty"`
}

// Result is one document's entry in TestResults.
type Result struct {
	Counts           models.Summary `xml:"counts"`
	RunTimeInMillis  int64          `xml:"runTimeInMillis"`
	Content          *CDATA         `xml:"content,omitempty"`
	RelativePageName string         `xml:"relativePageName"`
	PageHistoryLink  string         `xml:"pageHistoryLink"`
	Error            string         `xml:"error,omitempty"`
}

// CDATA wraps text emitted as a CDATA section.
type CDATA struct {
	Text string `xml:",cdata"`
}

// NewTestResults builds the XML model of res. Documents' resultDate links
// point at the run's start time.
func NewTestResults(res *results.SuiteResult, opts Options) *TestResults {
	out := &TestResults{
		RootPath:             res.Root.String(),
		RunID:                res.RunID,
		Date:                 res.StartedAt.Format(models.ResultDateFormat),
		FinalCounts:          res.Pages,
		FinalAssertionCounts: res.Summary,
		TotalRunTimeInMillis: res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
		Stopped:              res.Stopped,
	}
	for _, doc := range res.Documents {
		r := Result{
			Counts:           doc.Summary,
			RunTimeInMillis:  doc.Duration.Milliseconds(),
			RelativePageName: RelativeName(res.Root, doc),
			PageHistoryLink:  PageHistoryLink(doc, res.StartedAt),
			Error:            doc.Error,
		}
		if opts.IncludeContent && doc.Content != "" {
			r.Content = &CDATA{Text: doc.Content}
		}
		out.Results = append(out.Results, r)
	}
	return out
}

// WriteXML renders res as a testResults document.
func WriteXML(w io.Writer, res *results.SuiteResult, opts Options) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(NewTestResults(res, opts)); err != nil {
		return fmt.Errorf("report: encode xml: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// DecodeXML parses a document written by WriteXML.
func DecodeXML(r io.Reader) (*TestResults, error) {
	var out TestResults
	if err := xml.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("report: decode xml: %w", err)
	}
	return &out, nil
}
