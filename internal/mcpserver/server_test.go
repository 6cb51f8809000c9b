package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/fitrunner/internal/report"
	"github.com/starford/fitrunner/internal/suiteservice/suiteservicetest"
)

func testServer(t *testing.T, opts suiteservicetest.Options) (*Server, *suiteservicetest.Stack) {
	t.Helper()
	stack := suiteservicetest.New(t, opts)
	stack.SuitePage()
	return New(stack.Service, "test"), stack
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "run_suite":
		result, err = srv.runSuite(ctx, req)
	case "plan_suite":
		result, err = srv.planSuite(ctx, req)
	case "list_history":
		result, err = srv.listHistory(ctx, req)
	case "read_history":
		result, err = srv.readHistory(ctx, req)
	case "get_document_format":
		result, err = srv.getDocumentFormat(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestRunSuiteText(t *testing.T) {
	srv, _ := testServer(t, suiteservicetest.Options{})

	r := callTool(t, srv, "run_suite", map[string]interface{}{"path": "SuitePage"})
	if r.IsError {
		t.Fatalf("run_suite error: %s", resultText(r))
	}
	text := resultText(r)
	for _, want := range []string{"TestOne", "TestTwo", "Assertions: 1 right, 2 wrong", "Exit code: 2"} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
}

func TestRunSuiteJSON(t *testing.T) {
	srv, _ := testServer(t, suiteservicetest.Options{NoHistory: true})

	r := callTool(t, srv, "run_suite", map[string]interface{}{
		"path":       "SuitePage",
		"first_test": "TestTwo",
		"format":     "json",
	})
	var out struct {
		Documents []json.RawMessage `json:"documents"`
		ExitCode  int               `json:"exit_code"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out.Documents) != 1 || out.ExitCode != 2 {
		t.Errorf("documents = %d, exit = %d", len(out.Documents), out.ExitCode)
	}
}

func TestRunSuiteRejectsHTML(t *testing.T) {
	srv, _ := testServer(t, suiteservicetest.Options{NoHistory: true})
	r := callTool(t, srv, "run_suite", map[string]interface{}{"path": "SuitePage", "format": "html"})
	if !r.IsError {
		t.Error("expected error for html format")
	}
}

func TestRunSuiteMissing(t *testing.T) {
	srv, _ := testServer(t, suiteservicetest.Options{NoHistory: true})
	r := callTool(t, srv, "run_suite", map[string]interface{}{"path": "Nope"})
	if !r.IsError {
		t.Error("expected error for missing root")
	}
	if !strings.HasPrefix(resultText(r), "not found") {
		t.Errorf("error = %q", resultText(r))
	}
}

func TestPlanSuite(t *testing.T) {
	srv, stack := testServer(t, suiteservicetest.Options{})
	r := callTool(t, srv, "plan_suite", map[string]interface{}{"path": "SuitePage"})
	text := resultText(r)
	if !strings.Contains(text, "SuitePage.TestOne") || !strings.Contains(text, "SuitePage.TestTwo") {
		t.Errorf("plan = %s", text)
	}
	if n := len(stack.Launcher.Launches()); n != 0 {
		t.Errorf("plan launched %d fixtures", n)
	}
}

func TestHistoryTools(t *testing.T) {
	srv, _ := testServer(t, suiteservicetest.Options{})
	_ = callTool(t, srv, "run_suite", map[string]interface{}{"path": "SuitePage"})

	r := callTool(t, srv, "list_history", map[string]interface{}{})
	if !strings.Contains(resultText(r), "SuitePage.TestTwo") {
		t.Errorf("pages = %s", resultText(r))
	}

	r = callTool(t, srv, "list_history", map[string]interface{}{"path": "SuitePage", "limit": float64(5)})
	var recs []struct {
		File string `json:"file"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &recs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}

	r = callTool(t, srv, "read_history", map[string]interface{}{"path": "SuitePage.TestOne"})
	tr, err := report.DecodeXML(strings.NewReader(resultText(r)))
	if err != nil {
		t.Fatalf("DecodeXML: %v", err)
	}
	if len(tr.Results) != 1 || tr.Results[0].Counts.Right != 1 {
		t.Errorf("record = %+v", tr.Results)
	}
}

func TestHistoryToolsDisabled(t *testing.T) {
	srv, _ := testServer(t, suiteservicetest.Options{NoHistory: true})
	r := callTool(t, srv, "read_history", map[string]interface{}{"path": "SuitePage"})
	if !r.IsError {
		t.Error("expected error when history is disabled")
	}
}

func TestDocumentFormat(t *testing.T) {
	srv, _ := testServer(t, suiteservicetest.Options{NoHistory: true})
	r := callTool(t, srv, "get_document_format", nil)
	if resultText(r) != DocumentFormatContract {
		t.Error("contract mismatch")
	}
}
