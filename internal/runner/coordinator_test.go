package runner_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/fitrunner/internal/apperr"
	"github.com/starford/fitrunner/internal/models"
	"github.com/starford/fitrunner/internal/protocol"
	"github.com/starford/fitrunner/internal/runner"
	"github.com/starford/fitrunner/internal/suite"
	"github.com/starford/fitrunner/internal/tags"
	"github.com/starford/fitrunner/internal/testutil"
)

type recorder struct {
	mu     sync.Mutex
	events []runner.Event
}

func (r *recorder) OnEvent(e runner.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []runner.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []runner.EventType
	for _, e := range r.events {
		if e.Type != runner.DocumentProgress {
			out = append(out, e.Type)
		}
	}
	return out
}

type harness struct {
	vault    *testutil.Vault
	launcher *testutil.FakeLauncher
	coord    *runner.Coordinator
	events   *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{vault: testutil.NewVault(t), launcher: &testutil.FakeLauncher{}, events: &recorder{}}
	dealer := protocol.NewDealer("127.0.0.1", nil, h.launcher, 2*time.Second, nil)
	h.coord = runner.NewCoordinator(h.vault.Tree, dealer, protocol.DefaultLimits(), nil, h.events)
	t.Cleanup(h.launcher.Wait)
	return h
}

func (h *harness) plan(t *testing.T, root string) *suite.Plan {
	t.Helper()
	plan, err := suite.NewResolver(h.vault.Tree, nil).Resolve(context.Background(), models.ParsePath(root), tags.Filter{}, "")
	require.NoError(t, err)
	return plan
}

func TestExecute_TestOneTestTwo(t *testing.T) {
	h := newHarness(t)
	h.vault.Page("SuitePage", "")
	h.vault.TestPage("SuitePage.TestOne", testutil.FitPass)
	h.vault.TestPage("SuitePage.TestTwo", testutil.FitFail+"\n"+testutil.FitFail)

	res, err := h.coord.Execute(context.Background(), h.plan(t, "SuitePage"), runner.Options{RunID: "run-1"})
	require.NoError(t, err)

	assert.Equal(t, models.Summary{Right: 1, Wrong: 2}, res.Summary)
	assert.Greater(t, res.ExitCode(), 0)
	assert.Equal(t, "run-1", res.RunID)
	require.Len(t, res.Documents, 2)
	assert.Equal(t, "TestOne1", res.Documents[0].Anchor())
	assert.Equal(t, "TestTwo2", res.Documents[1].Anchor())
	assert.Equal(t, "fit", res.Documents[0].Kind)
	assert.Equal(t, "fit:fake", res.Documents[0].Command)
	assert.Empty(t, res.Documents[0].Content)
	assert.Len(t, h.launcher.Launches(), 2)

	assert.Equal(t, []runner.EventType{
		runner.SuiteStarted,
		runner.DocumentStarted, runner.DocumentCompleted,
		runner.DocumentStarted, runner.DocumentCompleted,
		runner.SuiteCompleted,
	}, h.events.types())
}

func TestExecute_IncludeContent(t *testing.T) {
	h := newHarness(t)
	h.vault.TestPage("SuitePage.TestOne", testutil.FitPass)

	res, err := h.coord.Execute(context.Background(), h.plan(t, "SuitePage"), runner.Options{IncludeContent: true})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Contains(t, res.Documents[0].Content, `class="pass"`)
	assert.NotEmpty(t, res.RunID)
}

func TestExecute_DocumentWithoutTablesOpensNoSession(t *testing.T) {
	h := newHarness(t)
	h.vault.TestPage("SuitePage.Prose", "just words, no tables\n")
	h.vault.TestPage("SuitePage.Empty", "")

	res, err := h.coord.Execute(context.Background(), h.plan(t, "SuitePage"), runner.Options{})
	require.NoError(t, err)
	assert.Equal(t, models.Summary{}, res.Summary)
	assert.Equal(t, 0, res.ExitCode())
	assert.Len(t, res.Documents, 2)
	assert.Empty(t, h.launcher.Launches())
}

func TestExecute_MixedTestSystems(t *testing.T) {
	h := newHarness(t)
	h.vault.TestPage("SuitePage.FitTest", testutil.FitPass)
	h.vault.TestPage("SuitePage.SlimTest", testutil.SlimDecisionTable)

	res, err := h.coord.Execute(context.Background(), h.plan(t, "SuitePage"), runner.Options{})
	require.NoError(t, err)
	assert.Equal(t, models.Summary{Right: 2}, res.Summary)
	require.Len(t, res.Documents, 2)
	assert.Equal(t, "fit", res.Documents[0].Kind)
	assert.Equal(t, "slim", res.Documents[1].Kind)
	assert.Equal(t, "slim:fake", res.Documents[1].Command)

	launches := h.launcher.Launches()
	require.Len(t, launches, 2)
	assert.Equal(t, protocol.KindSlim, launches[1].Kind)
	assert.Equal(t, "SuitePage.SlimTest", launches[1].Document)
}

func TestExecute_FixtureCrashIsOneException(t *testing.T) {
	h := newHarness(t)
	h.vault.TestPage("SuitePage.TestCrash", testutil.FitPass+"\n|CrashFixture|\n")
	h.vault.TestPage("SuitePage.TestOne", testutil.FitPass)

	res, err := h.coord.Execute(context.Background(), h.plan(t, "SuitePage"), runner.Options{})
	require.NoError(t, err)
	require.Len(t, res.Documents, 2)
	assert.Equal(t, models.Summary{Right: 1, Exceptions: 1}, res.Documents[0].Summary)
	assert.NotEmpty(t, res.Documents[0].Error)
	assert.Equal(t, models.Summary{Right: 1}, res.Documents[1].Summary)
	assert.Equal(t, 1, res.ExitCode())
}

func TestExecute_TimeoutIsOneException(t *testing.T) {
	h := newHarness(t)
	h.vault.TestPage("SuitePage.TestSlow", "|SlowFixture|\n")
	h.vault.TestPage("SuitePage.TestTwo", testutil.FitPass)

	start := time.Now()
	res, err := h.coord.Execute(context.Background(), h.plan(t, "SuitePage"),
		runner.Options{ExecutionTimeout: 150 * time.Millisecond})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	require.Len(t, res.Documents, 2)
	assert.Equal(t, models.Summary{Exceptions: 1}, res.Documents[0].Summary)
	assert.Contains(t, res.Documents[0].Error, apperr.ErrTimeout.Error())
	assert.Equal(t, models.Summary{Right: 1, Exceptions: 1}, res.Summary)
}

func TestExecute_InfrastructureFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.vault.TestPage("SuitePage.TestOne", testutil.FitPass)
	dealer := protocol.NewDealer("127.0.0.1", nil, &testutil.FakeLauncher{FailLaunch: true}, time.Second, nil)
	coord := runner.NewCoordinator(h.vault.Tree, dealer, protocol.DefaultLimits(), nil, h.events)

	res, err := coord.Execute(context.Background(), h.plan(t, "SuitePage"), runner.Options{})
	assert.ErrorIs(t, err, apperr.ErrInfrastructure)
	assert.Nil(t, res)
	assert.Equal(t, []runner.EventType{runner.SuiteStarted, runner.DocumentStarted, runner.SuiteFailed}, h.events.types())
}

func TestExecute_CancellationExcludesUnstartedDocuments(t *testing.T) {
	h := newHarness(t)
	h.vault.TestPage("SuitePage.TestOne", testutil.FitPass)
	h.vault.TestPage("SuitePage.TestSlow", "|SlowFixture|\n")
	h.vault.TestPage("SuitePage.TestThree", testutil.FitPass)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cancelOnSlow := runner.ListenerFunc(func(e runner.Event) {
		if e.Type == runner.DocumentStarted && e.Ordinal == 2 {
			time.AfterFunc(100*time.Millisecond, cancel)
		}
	})

	res, err := h.coord.Execute(ctx, h.plan(t, "SuitePage"), runner.Options{Listeners: []runner.Listener{cancelOnSlow}})
	assert.ErrorIs(t, err, apperr.ErrStopped)
	require.NotNil(t, res)
	assert.True(t, res.Stopped)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "SuitePage.TestOne", res.Documents[0].Path.String())
	assert.Equal(t, models.Summary{Right: 1}, res.Summary)
}

func TestExecute_EmptyPlan(t *testing.T) {
	h := newHarness(t)
	res, err := h.coord.Execute(context.Background(), &suite.Plan{}, runner.Options{})
	require.NoError(t, err)
	assert.Equal(t, models.Summary{}, res.Summary)
	assert.Equal(t, 0, res.ExitCode())
	assert.Empty(t, res.Documents)
}

func TestExecute_ProgressEventsCarryRunningTotals(t *testing.T) {
	h := newHarness(t)
	h.vault.TestPage("SuitePage.TestOne", testutil.FitPass)
	h.vault.TestPage("SuitePage.TestTwo", testutil.FitPass+"\n"+testutil.FitFail)

	_, err := h.coord.Execute(context.Background(), h.plan(t, "SuitePage"), runner.Options{})
	require.NoError(t, err)

	var last runner.Event
	for _, e := range h.events.events {
		if e.Type == runner.DocumentProgress && e.Ordinal == 2 {
			last = e
		}
	}
	assert.Equal(t, models.Summary{Right: 2, Wrong: 1}, last.Partial)
}
