// Package history persists run snapshots as XML files named by timestamp
// and counts, and indexes them in SQLite for lookup by page and date.
package history

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/fitrunner/internal/checksum"
	"github.com/starford/fitrunner/internal/report"
	"github.com/starford/fitrunner/internal/results"
	"github.com/starford/fitrunner/internal/storage"
)

// Options control one Record call.
type Options struct {
	// Disabled skips recording (the nohistory request flag).
	Disabled bool
	// SinglePage marks a run of one test page on itself; its document
	// record already covers it so no suite record is written.
	SinglePage bool
}

// Recorder writes history records into a storage.Provider rooted at the
// history directory.
type Recorder struct {
	store  storage.Provider
	index  Index
	logger *slog.Logger
}

// NewRecorder creates a Recorder. A nil store disables history; a nil
// index skips indexing.
func NewRecorder(store storage.Provider, index Index, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, index: index, logger: logger}
}

// Enabled reports whether records are written at all.
func (r *Recorder) Enabled() bool {
	return r != nil && r.store != nil
}

// Record writes one record per executed document and, unless no document
// ran or opts.SinglePage is set, one suite record under the run root. All
// records share the run's start time. A stopped run writes nothing.
// Failures do not stop later records; the returned error joins them.
func (r *Recorder) Record(ctx context.Context, res *results.SuiteResult, opts Options) ([]Record, error) {
	if !r.Enabled() || opts.Disabled || res == nil || res.Stopped || len(res.Documents) == 0 {
		return nil, nil
	}

	var (
		out  []Record
		errs []error
	)
	for _, doc := range res.Documents {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		single := &results.SuiteResult{
			RunID:      res.RunID,
			Root:       res.Root,
			StartedAt:  res.StartedAt,
			FinishedAt: res.StartedAt.Add(doc.Duration),
			Documents:  []results.DocumentResult{doc},
			Summary:    doc.Summary,
			Pages:      doc.Summary.Tally(),
		}
		rec, err := r.write(Record{Path: doc.Path, Timestamp: res.StartedAt, Summary: doc.Summary, PageCount: 1},
			single, report.Options{IncludeContent: true})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, rec)
	}

	if !opts.SinglePage {
		rec, err := r.write(Record{Path: res.Root, Timestamp: res.StartedAt, Summary: res.Pages, PageCount: len(res.Documents)},
			res, report.Options{})
		if err != nil {
			errs = append(errs, err)
		} else {
			out = append(out, rec)
		}
	}
	return out, errors.Join(errs...)
}

func (r *Recorder) write(rec Record, body *results.SuiteResult, opts report.Options) (Record, error) {
	var buf bytes.Buffer
	if err := report.WriteXML(&buf, body, opts); err != nil {
		return rec, fmt.Errorf("history: render %s: %w", rec.Path, err)
	}
	rec.File = RecordFile(rec.Path, rec.Timestamp, rec.Summary)
	rec.Checksum = checksum.Sum(buf.Bytes())
	if err := r.store.Write(rec.File, buf.Bytes()); err != nil {
		return rec, fmt.Errorf("history: write %s: %w", rec.File, err)
	}
	r.logger.Debug("history record written", slog.String("file", rec.File), slog.String("summary", rec.Summary.String()))

	if r.index != nil {
		if err := r.index.Upsert(rec); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// Read returns the raw XML of rec.
func (r *Recorder) Read(rec Record) ([]byte, error) {
	if !r.Enabled() {
		return nil, fmt.Errorf("history: disabled")
	}
	return r.store.Read(rec.File)
}
