// Package suiteservicetest assembles a complete suite service over a temp
// vault and fake fixture servers.
package suiteservicetest

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/fitrunner/internal/history"
	"github.com/starford/fitrunner/internal/protocol"
	"github.com/starford/fitrunner/internal/runner"
	"github.com/starford/fitrunner/internal/storage"
	"github.com/starford/fitrunner/internal/suite"
	"github.com/starford/fitrunner/internal/suiteservice"
	"github.com/starford/fitrunner/internal/testutil"
)

// Options tune the stack.
type Options struct {
	// NoHistory builds the service without a history directory or index.
	NoHistory bool
	// ExecutionTimeout bounds each document; zero means 2s.
	ExecutionTimeout time.Duration
	// Listeners receive the events of every run.
	Listeners []runner.Listener
	// FailLaunch makes every fixture launch fail.
	FailLaunch bool
}

// Stack is a ready-to-use service and the pieces behind it.
type Stack struct {
	Vault    *testutil.Vault
	Launcher *testutil.FakeLauncher
	History  *storage.FS
	DB       *history.DB
	Service  *suiteservice.Service
}

// New builds a Stack.
func New(t testing.TB, opts Options) *Stack {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	s := &Stack{Vault: testutil.NewVault(t), Launcher: &testutil.FakeLauncher{FailLaunch: opts.FailLaunch}}
	t.Cleanup(s.Launcher.Wait)

	var idx history.Index
	if !opts.NoHistory {
		store, err := storage.NewFS(t.TempDir(), history.Ext)
		if err != nil {
			t.Fatal(err)
		}
		s.History = store
		s.DB = testutil.TestDB(t)
		idx = s.DB
	}
	var historyStore storage.Provider
	if s.History != nil {
		historyStore = s.History
	}

	timeout := opts.ExecutionTimeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	dealer := protocol.NewDealer("127.0.0.1", nil, s.Launcher, 2*time.Second, logger)
	s.Service = suiteservice.NewService(suiteservice.Deps{
		Resolver:         suite.NewResolver(s.Vault.Tree, logger),
		Coordinator:      runner.NewCoordinator(s.Vault.Tree, dealer, protocol.DefaultLimits(), logger, opts.Listeners...),
		Recorder:         history.NewRecorder(historyStore, idx, logger),
		Index:            idx,
		ExecutionTimeout: timeout,
		Logger:           logger,
	})
	return s
}

// SuitePage writes the suite used across service tests: SuitePage with
// TestOne (one pass) and TestTwo (two failures).
func (s *Stack) SuitePage() {
	s.Vault.Page("SuitePage", "")
	s.Vault.TestPage("SuitePage.TestOne", testutil.FitPass)
	s.Vault.TestPage("SuitePage.TestTwo", testutil.FitFail+"\n"+testutil.FitFail)
}
