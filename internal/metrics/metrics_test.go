package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/fitrunner/internal/models"
	"github.com/starford/fitrunner/internal/results"
	"github.com/starford/fitrunner/internal/runner"
)

func TestOnEvent(t *testing.T) {
	m := New(func() int { return 3 })
	start := time.Now()

	m.OnEvent(runner.Event{Type: runner.SuiteStarted, RunID: "r1"})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsInFlight))

	m.OnEvent(runner.Event{Type: runner.DocumentCompleted, Document: &results.DocumentResult{
		Kind: "fit", Summary: models.Summary{Right: 1}, Duration: time.Second,
	}})
	m.OnEvent(runner.Event{Type: runner.DocumentCompleted, Document: &results.DocumentResult{
		Kind: "slim", Summary: models.Summary{Right: 1, Wrong: 2},
	}})
	m.OnEvent(runner.Event{Type: runner.SuiteCompleted, Result: &results.SuiteResult{
		Root: models.ParsePath("SuitePage"), StartedAt: start, FinishedAt: start.Add(time.Second),
		Summary: models.Summary{Right: 2, Wrong: 2},
	}})

	assert.Equal(t, 0.0, testutil.ToFloat64(m.runsInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documentsTotal.WithLabelValues("fit", "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documentsTotal.WithLabelValues("slim", "fail")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.assertionsTotal.WithLabelValues("right")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.assertionsTotal.WithLabelValues("wrong")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("fail")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.lastExitCode.WithLabelValues("SuitePage")))
}

func TestAbortedRun(t *testing.T) {
	m := New(nil)
	m.OnEvent(runner.Event{Type: runner.SuiteStarted})
	m.OnEvent(runner.Event{Type: runner.SuiteFailed, Error: "infrastructure failure"})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("aborted")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.runsInFlight))
}

func TestHandler(t *testing.T) {
	m := New(func() int { return 3 })
	m.OnEvent(runner.Event{Type: runner.SuiteStarted})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "fitrunner_fixture_ports_in_use 3")
	assert.Contains(t, string(body), "fitrunner_runs_in_flight 1")
}
