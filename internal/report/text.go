package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/starford/fitrunner/internal/results"
)

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}

func status(doc results.DocumentResult) string {
	switch cssClass(doc) {
	case "error":
		return "ERROR"
	case "fail":
		return "FAIL"
	case "pass":
		return "PASS"
	}
	return "IGNORED"
}

// WriteText renders res as a table followed by the page and assertion
// summary lines.
func WriteText(w io.Writer, res *results.SuiteResult) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	title := res.Root.String()
	if title == "" {
		title = "root"
	}
	t.SetTitle(title)
	t.AppendHeader(table.Row{"#", "Page", "System", "Duration", "Right", "Wrong", "Ignored", "Exceptions", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Page", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Right", Align: text.AlignRight},
		{Name: "Wrong", Align: text.AlignRight},
		{Name: "Ignored", Align: text.AlignRight},
		{Name: "Exceptions", Align: text.AlignRight},
	})

	for _, doc := range res.Documents {
		t.AppendRow(table.Row{
			doc.Ordinal,
			doc.Path.String(),
			doc.Kind,
			formatDuration(doc.Duration),
			doc.Summary.Right,
			doc.Summary.Wrong,
			doc.Summary.Ignores,
			doc.Summary.Exceptions,
			status(doc),
		})
	}

	overall := "PASS"
	switch {
	case res.Stopped:
		overall = "STOPPED"
	case res.Summary.Failed():
		overall = "FAIL"
	}
	t.AppendFooter(table.Row{
		"", "TOTAL", "",
		formatDuration(res.FinishedAt.Sub(res.StartedAt)),
		res.Summary.Right,
		res.Summary.Wrong,
		res.Summary.Ignores,
		res.Summary.Exceptions,
		overall,
	})
	t.SetStyle(table.StyleLight)
	t.Render()

	_, err := fmt.Fprintf(w, "Test Pages: %s\nAssertions: %s\nExit code: %d\n", res.Pages, res.Summary, res.ExitCode())
	return err
}
