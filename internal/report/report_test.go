package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/fitrunner/internal/models"
	"github.com/starford/fitrunner/internal/results"
)

var started = time.Date(2008, 12, 5, 1, 19, 0, 0, time.UTC)

func suiteResult() *results.SuiteResult {
	agg := results.NewAggregator("run-1", models.ParsePath("SuitePage"), started)
	_ = agg.Add(results.DocumentResult{
		Ordinal: 1, Path: models.ParsePath("SuitePage.TestOne"), DisplayName: "TestOne",
		Summary: models.Summary{Right: 1}, Kind: "fit", Command: "fit:fit.FitServer",
		Content: `<table><tr><td class="pass">fitnesse.testutil.PassFixture</td></tr></table>`,
	})
	_ = agg.Add(results.DocumentResult{
		Ordinal: 2, Path: models.ParsePath("SuitePage.SlimTest"), DisplayName: "SlimTest",
		Summary: models.Summary{Right: 2}, Kind: "slim", Command: "slim:fitnesse.slim.SlimService",
		Content: `<table><tr><td class="pass">wow</td></tr></table>`,
	})
	return agg.Final(started.Add(1500*time.Millisecond), false)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatHTML, "XML": FormatXML, "json": FormatJSON, " text ": FormatText} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)
	assert.Equal(t, "text/xml; charset=utf-8", FormatXML.ContentType())
}

func TestWriteXML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXML(&buf, suiteResult(), Options{}))
	out := buf.String()
	assert.NotContains(t, out, "<content>")

	doc, err := DecodeXML(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, doc.Results, 2)
	for _, r := range doc.Results {
		assert.Contains(t, r.PageHistoryLink, r.RelativePageName+"?pageHistory&resultDate=20081205011900")
	}
	assert.Equal(t, "TestOne", doc.Results[0].RelativePageName)
	assert.Equal(t, models.Summary{Right: 1}, doc.Results[0].Counts)
	assert.Equal(t, models.Summary{Right: 2}, doc.Results[1].Counts)
	assert.Equal(t, models.Summary{Right: 2}, doc.FinalCounts)
	assert.Equal(t, models.Summary{Right: 3}, doc.FinalAssertionCounts)
	assert.Equal(t, int64(1500), doc.TotalRunTimeInMillis)
	assert.Equal(t, "SuitePage", doc.RootPath)
}

func TestWriteXMLIncludeContent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXML(&buf, suiteResult(), Options{IncludeContent: true}))
	assert.Contains(t, buf.String(), "<content><![CDATA[")

	doc, err := DecodeXML(&buf)
	require.NoError(t, err)
	require.NotNil(t, doc.Results[1].Content)
	assert.Equal(t, `<table><tr><td class="pass">wow</td></tr></table>`, doc.Results[1].Content.Text)
}

func TestWriteHTML(t *testing.T) {
	res := suiteResult()
	res.Documents = append(res.Documents, results.DocumentResult{
		Ordinal: 3, Path: models.ParsePath("SuitePage.SlimTwo"), DisplayName: "SlimTwo",
		Summary: models.Summary{Wrong: 2}, Command: "slim:fitnesse.slim.SlimService",
	})

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, res, Options{IncludeContent: true}))
	out := buf.String()

	assert.Contains(t, out, `href="#TestOne1"`)
	assert.Contains(t, out, `id="TestOne1"`)
	assert.Contains(t, out, `href="#SlimTest2"`)
	assert.Contains(t, out, ` href="SuitePage.TestOne"`)
	assert.Contains(t, out, "<td class=\"pass\">fitnesse.testutil.PassFixture</td>")
	assert.Contains(t, out, "<h3>fit:fit.FitServer</h3>")
	assert.Equal(t, 1, strings.Count(out, "<h3>slim:fitnesse.slim.SlimService</h3>"))
	assert.Regexp(t, `<div id="test-summary"><strong>Test Pages:</strong>.*?&nbsp;&nbsp;&nbsp;&nbsp;&nbsp;<strong>Assertions:</strong>.*?</div>`, out)
	assert.Regexp(t, `<div id="execution-status"[^>]*>Tests executed OK</div>`, out)
	assert.Contains(t, out, "1 right")
}

func TestWriteHTMLWithoutContent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, suiteResult(), Options{}))
	assert.NotContains(t, buf.String(), "PassFixture")
}

func TestWriteHTMLReportsErrors(t *testing.T) {
	res := suiteResult()
	res.Documents[0].Error = "fixture server disconnected"
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, res, Options{}))
	assert.Contains(t, buf.String(), "Errors occurred")
	assert.Contains(t, buf.String(), "SuitePage.TestOne: fixture server disconnected")
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, suiteResult()))
	out := buf.String()
	assert.Contains(t, out, "SuitePage.SlimTest")
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "Test Pages: 2 right, 0 wrong, 0 ignored, 0 exceptions")
	assert.Contains(t, out, "Assertions: 3 right, 0 wrong, 0 ignored, 0 exceptions")
	assert.Contains(t, out, "Exit code: 0")
}

func TestWriteJSONStripsContent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, suiteResult(), Options{}))
	assert.NotContains(t, buf.String(), "PassFixture")
	assert.Contains(t, buf.String(), `"exit_code": 0`)
	assert.Contains(t, buf.String(), `"path": "SuitePage.TestOne"`)
}

func TestRelativeName(t *testing.T) {
	root := models.ParsePath("SuitePage")
	assert.Equal(t, "Sub.TestOne", RelativeName(root, results.DocumentResult{Path: models.ParsePath("SuitePage.Sub.TestOne")}))
	assert.Equal(t, "XrefOne", RelativeName(root, results.DocumentResult{Path: models.ParsePath("Other.XrefOne")}))
	assert.Equal(t, "SuitePage", RelativeName(root, results.DocumentResult{Path: root}))
	assert.Equal(t, "root", RelativeName(nil, results.DocumentResult{DisplayName: "root"}))
}
