// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes fitrunner tools for LLM integration via stdio transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/fitrunner/internal/apperr"
	"github.com/starford/fitrunner/internal/report"
	"github.com/starford/fitrunner/internal/suiteservice"
)

const formatResourceURI = "fitrunner://document-format"

// Server wraps the MCP server with fitrunner tools.
type Server struct {
	mcp *server.MCPServer
	svc *suiteservice.Service
}

// New creates a new MCP server with all fitrunner tools registered.
func New(svc *suiteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"fitrunner",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("run_suite",
		mcp.WithDescription("Run every test document under a page and report the counts. "+
			"The result's exit code is wrong + exceptions; 0 means the suite passed."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Dotted page path of the suite or test (e.g. SuitePage.TestOne)")),
		mcp.WithString("suite_filter", mcp.Description("Comma separated tags; only documents carrying one run")),
		mcp.WithString("exclude_suite_filter", mcp.Description("Comma separated tags to skip")),
		mcp.WithString("first_test", mcp.Description("Skip every planned document before this one")),
		mcp.WithBoolean("no_history", mcp.Description("Do not write history records")),
		mcp.WithString("format", mcp.Description("Report format: text (default), json or xml")),
	), s.runSuite)

	s.mcp.AddTool(mcp.NewTool("plan_suite",
		mcp.WithDescription("List, in execution order, the documents run_suite would run. Nothing is executed."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Dotted page path of the suite")),
		mcp.WithString("suite_filter", mcp.Description("Comma separated tags; only documents carrying one are planned")),
		mcp.WithString("exclude_suite_filter", mcp.Description("Comma separated tags to skip")),
		mcp.WithString("first_test", mcp.Description("Skip every planned document before this one")),
	), s.planSuite)

	s.mcp.AddTool(mcp.NewTool("list_history",
		mcp.WithDescription("List history records of a page, newest first. Without a path, list every page with history."),
		mcp.WithString("path", mcp.Description("Dotted page path (empty for all pages)")),
		mcp.WithNumber("limit", mcp.Description("Max records (default all)")),
	), s.listHistory)

	s.mcp.AddTool(mcp.NewTool("read_history",
		mcp.WithDescription("Read the XML of one history record."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Dotted page path")),
		mcp.WithString("result_date", mcp.Description("yyyyMMddHHmmss timestamp; empty for the newest record")),
	), s.readHistory)

	s.mcp.AddTool(mcp.NewTool("get_document_format",
		mcp.WithDescription("Returns how test documents, tags, directives and history records are laid out."),
	), s.getDocumentFormat)

	// Resource: document format contract.
	s.mcp.AddResource(
		mcp.NewResource(formatResourceURI, "Document Format",
			mcp.WithResourceDescription("Layout of test documents in the vault."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDocumentFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func runRequest(req mcp.CallToolRequest, path string) suiteservice.RunRequest {
	return suiteservice.RunRequest{
		Root:               path,
		SuiteFilter:        req.GetString("suite_filter", ""),
		ExcludeSuiteFilter: req.GetString("exclude_suite_filter", ""),
		FirstTest:          req.GetString("first_test", ""),
		NoHistory:          req.GetBool("no_history", false),
	}
}

func toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %v", err))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) runSuite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format := report.FormatText
	if f := req.GetString("format", ""); f != "" {
		if format, err = report.ParseFormat(f); err != nil || format == report.FormatHTML {
			return mcp.NewToolResultError(fmt.Sprintf("unsupported format: %s", f)), nil
		}
	}

	resp, err := s.svc.Run(ctx, runRequest(req, path))
	if err != nil && !errors.Is(err, apperr.ErrStopped) {
		return toolError(err), nil
	}
	var buf bytes.Buffer
	if err := report.Write(&buf, format, resp.Result, report.Options{}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *Server) planSuite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	plan, err := s.svc.Plan(ctx, runRequest(req, path))
	if err != nil {
		return toolError(err), nil
	}
	out, _ := json.MarshalIndent(plan, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")

	var v any
	var err error
	if path == "" {
		v, err = s.svc.HistoryPages(ctx)
	} else {
		v, err = s.svc.History(ctx, path, req.GetInt("limit", 0))
	}
	if err != nil {
		return toolError(err), nil
	}
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	_, data, err := s.svc.ReadHistory(ctx, path, req.GetString("result_date", ""))
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getDocumentFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormatContract), nil
}

func (s *Server) readDocumentFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatResourceURI,
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
