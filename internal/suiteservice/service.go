// Package suiteservice wires resolution, execution and history together
// for the HTTP API, the CLI and the MCP server.
package suiteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/fitrunner/internal/apperr"
	"github.com/starford/fitrunner/internal/history"
	"github.com/starford/fitrunner/internal/models"
	"github.com/starford/fitrunner/internal/results"
	"github.com/starford/fitrunner/internal/runner"
	"github.com/starford/fitrunner/internal/suite"
	"github.com/starford/fitrunner/internal/tags"
)

// ErrHistoryDisabled is returned by history lookups when no index is configured.
var ErrHistoryDisabled = errors.New("history disabled")

// RunRequest is one suite run as requested by a client.
type RunRequest struct {
	// Root is the dotted path of the suite (or test page) to run.
	Root string `json:"root"`
	// SuiteFilter and ExcludeSuiteFilter are comma separated tag lists.
	SuiteFilter        string `json:"suite_filter,omitempty"`
	ExcludeSuiteFilter string `json:"exclude_suite_filter,omitempty"`
	// FirstTest drops every planned document before it.
	FirstTest      string `json:"first_test,omitempty"`
	NoHistory      bool   `json:"no_history,omitempty"`
	IncludeContent bool   `json:"include_content,omitempty"`
}

// RunResponse carries the outcome of a run.
type RunResponse struct {
	Plan    *suite.Plan          `json:"plan"`
	Result  *results.SuiteResult `json:"result"`
	Records []history.Record     `json:"records,omitempty"`
}

// Deps are the collaborators of a Service. Index may be nil when history
// is not indexed.
type Deps struct {
	Resolver         *suite.Resolver
	Coordinator      *runner.Coordinator
	Recorder         *history.Recorder
	Index            history.Index
	ExecutionTimeout time.Duration
	Logger           *slog.Logger
}

// Service coordinates suite resolution, execution and history.
type Service struct {
	resolver         *suite.Resolver
	coord            *runner.Coordinator
	recorder         *history.Recorder
	index            history.Index
	executionTimeout time.Duration
	logger           *slog.Logger
}

// NewService creates a new suite service.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver:         d.Resolver,
		coord:            d.Coordinator,
		recorder:         d.Recorder,
		index:            d.Index,
		executionTimeout: d.ExecutionTimeout,
		logger:           logger,
	}
}

// Plan resolves the documents req would run, without running them.
func (s *Service) Plan(ctx context.Context, req RunRequest) (*suite.Plan, error) {
	filter := tags.Parse(req.SuiteFilter, req.ExcludeSuiteFilter)
	return s.resolver.Resolve(ctx, models.ParsePath(req.Root), filter, req.FirstTest)
}

// Run resolves and executes req, then records history. History failures
// are logged and swallowed. A cancelled run returns its partial response
// together with an error wrapping apperr.ErrStopped.
func (s *Service) Run(ctx context.Context, req RunRequest, listeners ...runner.Listener) (*RunResponse, error) {
	plan, err := s.Plan(ctx, req)
	if err != nil {
		return nil, err
	}

	record := s.recorder.Enabled() && !req.NoHistory
	res, runErr := s.coord.Execute(ctx, plan, runner.Options{
		ExecutionTimeout: s.executionTimeout,
		// History records keep the annotated content.
		IncludeContent: req.IncludeContent || record,
		Listeners:      listeners,
	})
	if runErr != nil && !errors.Is(runErr, apperr.ErrStopped) {
		return nil, runErr
	}

	resp := &RunResponse{Plan: plan, Result: res}
	if runErr != nil || res.Stopped {
		if record {
			s.logger.Info("history skipped for stopped run", slog.String("run_id", res.RunID))
		}
		return resp, runErr
	}
	recs, err := s.recorder.Record(context.WithoutCancel(ctx), res, history.Options{
		Disabled:   !record,
		SinglePage: plan.SinglePage(),
	})
	if err != nil {
		s.logger.Warn("history record failed",
			slog.String("run_id", res.RunID),
			slog.String("error", err.Error()),
		)
	}
	resp.Records = recs
	return resp, runErr
}

// History lists the records of path, newest first.
func (s *Service) History(_ context.Context, path string, limit int) ([]history.Record, error) {
	if s.index == nil {
		return nil, ErrHistoryDisabled
	}
	return s.index.List(models.ParsePath(path), limit)
}

// HistoryPages lists every page that has history.
func (s *Service) HistoryPages(_ context.Context) ([]history.PageSummary, error) {
	if s.index == nil {
		return nil, ErrHistoryDisabled
	}
	return s.index.Pages()
}

// ReadHistory returns the record of path written at resultDate (the newest
// one when resultDate is empty) together with its XML.
func (s *Service) ReadHistory(_ context.Context, path, resultDate string) (*history.Record, []byte, error) {
	if s.index == nil || !s.recorder.Enabled() {
		return nil, nil, ErrHistoryDisabled
	}
	rec, err := s.index.Get(models.ParsePath(path), resultDate)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.recorder.Read(*rec)
	if err != nil {
		return nil, nil, fmt.Errorf("suiteservice: read %s: %w: %w", rec.File, apperr.ErrNotFound, err)
	}
	return rec, data, nil
}
