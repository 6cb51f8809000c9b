package api

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/fitrunner/internal/apperr"
	"github.com/starford/fitrunner/internal/report"
	"github.com/starford/fitrunner/internal/suiteservice"
)

// ExitCodeHeader carries wrong + exceptions of a completed run.
const ExitCodeHeader = "Exit-Code"

// Handler holds API route handlers.
type Handler struct {
	svc *suiteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *suiteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// pagePath extracts the dotted page path from the URL. Slashes are accepted
// as separators too, so /suites/SuitePage/TestOne works.
func pagePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	return strings.ReplaceAll(strings.Trim(raw, "/"), "/", ".")
}

// queryBool treats a bare flag (?nohistory) as true.
func queryBool(q url.Values, key string) bool {
	if !q.Has(key) {
		return false
	}
	v := q.Get(key)
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func runRequest(r *http.Request) suiteservice.RunRequest {
	q := r.URL.Query()
	return suiteservice.RunRequest{
		Root:               pagePath(r),
		SuiteFilter:        q.Get("suiteFilter"),
		ExcludeSuiteFilter: q.Get("excludeSuiteFilter"),
		FirstTest:          q.Get("firstTest"),
		NoHistory:          queryBool(q, "nohistory"),
		IncludeContent:     queryBool(q, "includehtml"),
	}
}

// RunSuite handles GET and POST /api/suites/*.
//
//	@Summary		Run the suite rooted at a page
//	@Tags			suites
//	@Produce		html,xml,json,plain
//	@Param			path				path	string	true	"Dotted page path"
//	@Param			format				query	string	false	"Report format"	Enums(html, xml, json, text)
//	@Param			suiteFilter			query	string	false	"Comma separated include tags"
//	@Param			excludeSuiteFilter	query	string	false	"Comma separated exclude tags"
//	@Param			firstTest			query	string	false	"First document to run"
//	@Param			nohistory			query	bool	false	"Skip history records"
//	@Param			includehtml			query	bool	false	"Embed annotated content"
//	@Success		200	{string}	string	"Report; Exit-Code header holds wrong + exceptions"
//	@Failure		404	{object}	errResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/suites/{path} [get]
func (h *Handler) RunSuite(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	req := runRequest(r)

	resp, err := h.svc.Run(r.Context(), req)
	if err != nil && !errors.Is(err, apperr.ErrStopped) {
		writeError(w, r, "run suite", err, slog.String("root", req.Root))
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, format, resp.Result, report.Options{IncludeContent: req.IncludeContent}); err != nil {
		writeError(w, r, "render report", err, slog.String("root", req.Root))
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set(ExitCodeHeader, strconv.Itoa(resp.Result.ExitCode()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Plan handles GET /api/plan/*.
//
//	@Summary		Resolve a suite without running it
//	@Tags			suites
//	@Produce		json
//	@Param			path	path		string	true	"Dotted page path"
//	@Success		200		{object}	suite.Plan
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/plan/{path} [get]
func (h *Handler) Plan(w http.ResponseWriter, r *http.Request) {
	req := runRequest(r)
	plan, err := h.svc.Plan(r.Context(), req)
	if err != nil {
		writeError(w, r, "plan suite", err, slog.String("root", req.Root))
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// HistoryPages handles GET /api/history.
//
//	@Summary		List pages with history
//	@Tags			history
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Security		BearerAuth
//	@Router			/history [get]
func (h *Handler) HistoryPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.svc.HistoryPages(r.Context())
	if err != nil {
		writeError(w, r, "list history pages", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pages": pages,
	})
}

// History handles GET /api/history/*. Without resultDate it lists the
// page's records newest first; with resultDate (or resultDate=latest) it
// returns that record's XML.
//
//	@Summary		Page history
//	@Tags			history
//	@Produce		json,xml
//	@Param			path		path	string	true	"Dotted page path"
//	@Param			resultDate	query	string	false	"yyyyMMddHHmmss or latest"
//	@Param			limit		query	int		false	"Max records"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/history/{path} [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	path := pagePath(r)
	q := r.URL.Query()

	if q.Has("resultDate") {
		date := q.Get("resultDate")
		if date == "latest" {
			date = ""
		}
		rec, data, err := h.svc.ReadHistory(r.Context(), path, date)
		if err != nil {
			writeError(w, r, "read history", err, slog.String("path", path))
			return
		}
		w.Header().Set("Content-Type", report.FormatXML.ContentType())
		w.Header().Set("ETag", `"`+rec.Checksum+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	recs, err := h.svc.History(r.Context(), path, limit)
	if err != nil {
		writeError(w, r, "list history", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":    path,
		"records": recs,
	})
}
