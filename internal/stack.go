package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/fitrunner/internal/docstore"
	"github.com/starford/fitrunner/internal/history"
	"github.com/starford/fitrunner/internal/protocol"
	"github.com/starford/fitrunner/internal/runner"
	"github.com/starford/fitrunner/internal/storage"
	"github.com/starford/fitrunner/internal/suite"
	"github.com/starford/fitrunner/internal/suiteservice"
)

// Stack is the set of components built from a Config and shared by the
// server, the one-shot CLI commands and the MCP server.
type Stack struct {
	Service *suiteservice.Service
	Ports   *protocol.PortAllocator
	// History and Index are nil when history is disabled.
	History *storage.FS
	Index   *history.DB
}

// NewPorts creates the fixture port allocator described by cfg.
func NewPorts(cfg *Config) (*protocol.PortAllocator, error) {
	return protocol.NewPortAllocator(cfg.Fixture.PortMin, cfg.Fixture.PortMax)
}

// Build opens the vault and history and assembles the suite service.
// listeners receive the events of every run.
func Build(cfg *Config, ports *protocol.PortAllocator, logger *slog.Logger, listeners ...runner.Listener) (*Stack, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(cfg.Vault.Path); err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	vault, err := storage.NewFS(cfg.Vault.Path, ".md")
	if err != nil {
		return nil, fmt.Errorf("init vault: %w", err)
	}
	tree := docstore.New(vault)

	s := &Stack{Ports: ports}

	// A nil *storage.FS must not reach the recorder as a non-nil interface.
	var historyStore storage.Provider
	var idx history.Index
	if !cfg.History.Disabled {
		if err := os.MkdirAll(cfg.History.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
		if s.History, err = storage.NewFS(cfg.History.Path, history.Ext); err != nil {
			return nil, fmt.Errorf("init history: %w", err)
		}
		if s.Index, err = history.Open(cfg.History.IndexPath); err != nil {
			return nil, fmt.Errorf("init history index: %w", err)
		}
		historyStore, idx = s.History, s.Index
	}

	launcher := protocol.NewExecLauncher(cfg.Fixture.Commands(), logger)
	dealer := protocol.NewDealer(cfg.Fixture.Host, ports, launcher, cfg.Fixture.AcceptTimeout, logger)

	s.Service = suiteservice.NewService(suiteservice.Deps{
		Resolver:         suite.NewResolver(tree, logger),
		Coordinator:      runner.NewCoordinator(tree, dealer, cfg.Fixture.Limits(), logger, listeners...),
		Recorder:         history.NewRecorder(historyStore, idx, logger),
		Index:            idx,
		ExecutionTimeout: cfg.Fixture.ExecutionTimeout,
		Logger:           logger,
	})
	return s, nil
}

// SyncHistory reconciles the index with the history directory.
func (s *Stack) SyncHistory(logger *slog.Logger) error {
	if s.Index == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return history.Sync(s.Index, s.History, logger)
}

// Close releases the history index.
func (s *Stack) Close() error {
	var errs []error
	if s.Index != nil {
		errs = append(errs, s.Index.Close())
	}
	return errors.Join(errs...)
}
