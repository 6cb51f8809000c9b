// Package results aggregates per-document counts into suite results.
package results

import (
	"fmt"
	"sync"
	"time"

	"github.com/starford/fitrunner/internal/models"
)

// DocumentResult is the outcome of executing one plan entry.
type DocumentResult struct {
	Ordinal     int             `json:"ordinal"`
	Path        models.PagePath `json:"path"`
	DisplayName string          `json:"display_name"`
	Aliases     []string        `json:"aliases,omitempty"`
	Summary     models.Summary  `json:"summary"`
	// Kind is the test system the document ran under; empty when nothing ran.
	Kind string `json:"kind,omitempty"`
	// Command describes the fixture server, e.g. "fit:fit.FitServer".
	Command  string        `json:"command,omitempty"`
	Content  string        `json:"content,omitempty"`
	Duration time.Duration `json:"duration"`
	// Error describes the document-level failure folded into Summary.Exceptions.
	Error string `json:"error,omitempty"`
}

// Anchor is the cross-link anchor, e.g. "TestOne1".
func (d DocumentResult) Anchor() string {
	return fmt.Sprintf("%s%d", d.DisplayName, d.Ordinal)
}

// SuiteResult is the terminal snapshot of a run.
type SuiteResult struct {
	RunID      string           `json:"run_id"`
	Root       models.PagePath  `json:"root"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Documents  []DocumentResult `json:"documents"`
	// Summary is the field-wise sum of every document's assertions.
	Summary models.Summary `json:"summary"`
	// Pages tallies documents by their worst counter.
	Pages   models.Summary `json:"pages"`
	Stopped bool           `json:"stopped,omitempty"`
}

// ExitCode is wrong + exceptions; 0 when the suite passed.
func (r *SuiteResult) ExitCode() int {
	return ExitCode(r.Summary)
}

// ExitCode derives an exit status from a summary.
func ExitCode(s models.Summary) int {
	return s.Wrong + s.Exceptions
}

// Aggregator accumulates document results in ordinal order. It is safe for
// concurrent use: the coordinator adds while readers take snapshots.
type Aggregator struct {
	mu        sync.Mutex
	runID     string
	root      models.PagePath
	startedAt time.Time
	docs      []DocumentResult
	summary   models.Summary
	pages     models.Summary
	final     *SuiteResult
}

// NewAggregator starts aggregating a run.
func NewAggregator(runID string, root models.PagePath, startedAt time.Time) *Aggregator {
	return &Aggregator{runID: runID, root: root, startedAt: startedAt}
}

// Add records the next document. Ordinals must arrive densely from 1.
func (a *Aggregator) Add(r DocumentResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.final != nil {
		return fmt.Errorf("results: add ordinal %d after final", r.Ordinal)
	}
	if want := len(a.docs) + 1; r.Ordinal != want {
		return fmt.Errorf("results: ordinal %d out of order, want %d", r.Ordinal, want)
	}
	a.docs = append(a.docs, r)
	a.summary = a.summary.Add(r.Summary)
	a.pages = a.pages.Add(r.Summary.Tally())
	return nil
}

// Partial returns the running totals.
func (a *Aggregator) Partial() models.Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summary
}

// Count returns the number of documents added so far.
func (a *Aggregator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.docs)
}

// Final seals the aggregator and returns the terminal snapshot. Later calls
// return the same snapshot.
func (a *Aggregator) Final(finishedAt time.Time, stopped bool) *SuiteResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.final == nil {
		a.final = &SuiteResult{
			RunID:      a.runID,
			Root:       a.root,
			StartedAt:  a.startedAt,
			FinishedAt: finishedAt,
			Documents:  append([]DocumentResult(nil), a.docs...),
			Summary:    a.summary,
			Pages:      a.pages,
			Stopped:    stopped,
		}
	}
	return a.final
}

// ExitCode derives the exit status from the accumulated summary.
func (a *Aggregator) ExitCode() int {
	return ExitCode(a.Partial())
}
