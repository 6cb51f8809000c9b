// Package runner executes a suite plan one document at a time, one fixture
// session per document, and aggregates the counts.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/fitrunner/internal/apperr"
	"github.com/starford/fitrunner/internal/docstore"
	"github.com/starford/fitrunner/internal/models"
	"github.com/starford/fitrunner/internal/protocol"
	"github.com/starford/fitrunner/internal/results"
	"github.com/starford/fitrunner/internal/suite"
	"github.com/starford/fitrunner/internal/tables"
)

// Loader reads planned documents.
type Loader interface {
	Load(ctx context.Context, p models.PagePath) (*docstore.Document, error)
}

// SessionOpener opens one fixture session per document.
type SessionOpener interface {
	Open(ctx context.Context, spec protocol.LaunchSpec) (*protocol.Session, error)
	Command(kind protocol.Kind) string
}

// Options configure one Execute call.
type Options struct {
	// RunID identifies the run; a random UUID is used when empty.
	RunID string
	// ExecutionTimeout bounds each document's session. Zero means no bound.
	ExecutionTimeout time.Duration
	// IncludeContent keeps the annotated content on each document result.
	IncludeContent bool
	// Listeners receive this run's events in addition to the coordinator's.
	Listeners []Listener
}

// Coordinator drives plans through fixture sessions.
type Coordinator struct {
	loader    Loader
	opener    SessionOpener
	limits    protocol.Limits
	listeners listeners
	logger    *slog.Logger
	now       func() time.Time
}

// NewCoordinator creates a Coordinator. listeners receive the events of
// every run.
func NewCoordinator(loader Loader, opener SessionOpener, limits protocol.Limits, logger *slog.Logger, ls ...Listener) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		loader:    loader,
		opener:    opener,
		limits:    limits,
		listeners: ls,
		logger:    logger,
		now:       time.Now,
	}
}

// Execute runs plan in ordinal order.
//
// Document-level failures (fixture crash, timeout, protocol error) are
// folded into that document's exceptions and the run continues.
// Infrastructure failures abort the run and return a nil result with an
// error wrapping apperr.ErrInfrastructure. When ctx is cancelled the
// in-flight document is dropped and Execute returns the results so far,
// marked Stopped, together with apperr.ErrStopped.
func (c *Coordinator) Execute(ctx context.Context, plan *suite.Plan, opts Options) (*results.SuiteResult, error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	var root models.PagePath
	var entries []suite.Entry
	if plan != nil {
		root, entries = plan.Root, plan.Entries
	}
	emit := append(append(listeners(nil), c.listeners...), opts.Listeners...).emit

	agg := results.NewAggregator(runID, root, c.now())
	logger := c.logger.With(slog.String("run_id", runID), slog.String("root", root.String()))
	logger.Info("suite started", slog.Int("documents", len(entries)))
	emit(Event{Type: SuiteStarted, RunID: runID, Root: root, Total: len(entries)})

	stop := func() (*results.SuiteResult, error) {
		res := agg.Final(c.now(), true)
		logger.Warn("suite stopped", slog.Int("executed", len(res.Documents)), slog.Int("planned", len(entries)))
		emit(Event{Type: SuiteCompleted, RunID: runID, Root: root, Total: len(entries), Partial: res.Summary, Result: res})
		return res, fmt.Errorf("runner: %w: %w", apperr.ErrStopped, context.Cause(ctx))
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return stop()
		}
		emit(Event{Type: DocumentStarted, RunID: runID, Root: root, Total: len(entries),
			Ordinal: entry.Ordinal, Path: entry.Path, Partial: agg.Partial()})

		base := agg.Partial()
		progress := func(s models.Summary) {
			emit(Event{Type: DocumentProgress, RunID: runID, Root: root, Total: len(entries),
				Ordinal: entry.Ordinal, Path: entry.Path, Partial: base.Add(s)})
		}

		doc, err := c.executeDocument(ctx, runID, entry, opts, progress)
		if err != nil {
			if ctx.Err() != nil {
				return stop()
			}
			logger.Error("suite aborted",
				slog.String("path", entry.Path.String()),
				slog.Int("ordinal", entry.Ordinal),
				slog.String("error", err.Error()),
			)
			emit(Event{Type: SuiteFailed, RunID: runID, Root: root, Total: len(entries),
				Ordinal: entry.Ordinal, Path: entry.Path, Partial: agg.Partial(), Error: err.Error()})
			return nil, err
		}
		if err := agg.Add(doc); err != nil {
			return nil, fmt.Errorf("runner: %w", err)
		}
		logger.Info("document completed",
			slog.String("path", entry.Path.String()),
			slog.Int("ordinal", entry.Ordinal),
			slog.String("summary", doc.Summary.String()),
			slog.Duration("duration", doc.Duration),
		)
		emit(Event{Type: DocumentCompleted, RunID: runID, Root: root, Total: len(entries),
			Ordinal: entry.Ordinal, Path: entry.Path, Partial: agg.Partial(), Document: &doc})
	}

	res := agg.Final(c.now(), false)
	logger.Info("suite completed",
		slog.String("summary", res.Summary.String()),
		slog.Int("exit_code", res.ExitCode()),
	)
	emit(Event{Type: SuiteCompleted, RunID: runID, Root: root, Total: len(entries), Partial: res.Summary, Result: res})
	return res, nil
}

// executeDocument runs one entry. A non-nil error is either an
// infrastructure failure or the parent context's cancellation; every other
// failure is recorded on the returned result.
func (c *Coordinator) executeDocument(ctx context.Context, runID string, entry suite.Entry, opts Options, progress protocol.Observer) (results.DocumentResult, error) {
	started := c.now()
	res := results.DocumentResult{
		Ordinal:     entry.Ordinal,
		Path:        entry.Path,
		DisplayName: entry.DisplayName,
		Aliases:     entry.Aliases,
	}

	doc, err := c.loader.Load(ctx, entry.Path)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, fmt.Errorf("runner: load %s: %w: %w", entry.Path, apperr.ErrInfrastructure, err)
	}
	if len(tables.Parse(doc.Body)) == 0 {
		res.Duration = c.now().Sub(started)
		return res, nil
	}

	kind := protocol.ParseKind(doc.TestSystem)
	res.Kind = kind.String()
	res.Command = c.opener.Command(kind)

	sess, err := c.opener.Open(ctx, protocol.LaunchSpec{
		Kind:      kind,
		ClassPath: doc.ClassPath,
		ID:        fmt.Sprintf("%s-%d", runID, entry.Ordinal),
		Document:  entry.Path.String(),
	})
	if err != nil {
		return res, err
	}
	defer sess.Close()

	runCtx := ctx
	if opts.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.ExecutionTimeout)
		defer cancel()
	}

	out, err := protocol.New(kind, c.limits).Run(runCtx, sess.Conn,
		protocol.Request{Path: entry.Path.String(), Body: doc.Body}, progress)
	if out != nil {
		res.Summary = out.Summary
		if opts.IncludeContent {
			res.Content = out.Content
		}
	}
	res.Duration = c.now().Sub(started)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Summary.Exceptions++
		res.Error = err.Error()
		c.logger.Warn("document failed",
			slog.String("run_id", runID),
			slog.String("path", entry.Path.String()),
			slog.Bool("timeout", errors.Is(err, apperr.ErrTimeout)),
			slog.String("error", err.Error()),
		)
	}
	return res, nil
}
