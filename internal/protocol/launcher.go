package protocol

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// LaunchSpec describes one fixture server to start for one document.
type LaunchSpec struct {
	Kind      Kind
	Host      string
	Port      int
	ClassPath []string
	// ID identifies the session to the fixture server, e.g. "<run id>-<ordinal>".
	ID       string
	Document string
}

// Process is a running fixture server.
type Process interface {
	Stop() error
}

// Launcher starts fixture servers that connect back to Host:Port.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Process, error)
	// Command describes what runs documents of kind, e.g. "fit:fit.FitServer".
	Command(kind Kind) string
}

// ExecLauncher starts fixture servers as child processes from command
// templates. Templates may use {host}, {port}, {classpath}, {id} and {document}.
type ExecLauncher struct {
	commands map[Kind]string
	logger   *slog.Logger
}

// NewExecLauncher creates a launcher with one command template per kind.
func NewExecLauncher(commands map[Kind]string, logger *slog.Logger) *ExecLauncher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecLauncher{commands: commands, logger: logger}
}

func (l *ExecLauncher) Command(kind Kind) string {
	return kind.String() + ":" + l.commands[kind]
}

// expand fills the template placeholders and splits the result into argv.
func expand(tmpl string, spec LaunchSpec) []string {
	r := strings.NewReplacer(
		"{host}", spec.Host,
		"{port}", strconv.Itoa(spec.Port),
		"{classpath}", strings.Join(spec.ClassPath, string(os.PathListSeparator)),
		"{id}", spec.ID,
		"{document}", spec.Document,
	)
	return strings.Fields(r.Replace(tmpl))
}

func (l *ExecLauncher) Launch(ctx context.Context, spec LaunchSpec) (Process, error) {
	tmpl := strings.TrimSpace(l.commands[spec.Kind])
	if tmpl == "" {
		return nil, fmt.Errorf("protocol: no %s fixture command configured", spec.Kind)
	}
	argv := expand(tmpl, spec)
	cmd := exec.Command(argv[0], argv[1:]...)
	p := &execProcess{cmd: cmd, done: make(chan struct{}), logger: l.logger, id: spec.ID}
	cmd.Stdout = &p.output
	cmd.Stderr = &p.output
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("protocol: start %s: %w", argv[0], err)
	}
	l.logger.Debug("fixture started",
		slog.String("kind", spec.Kind.String()),
		slog.String("id", spec.ID),
		slog.Int("pid", cmd.Process.Pid),
		slog.Int("port", spec.Port),
	)
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	done   chan struct{}
	err    error
	output syncBuffer
	logger *slog.Logger
	id     string
}

// Stop kills the process if it is still running and waits for it to exit.
func (p *execProcess) Stop() error {
	select {
	case <-p.done:
	default:
		_ = p.cmd.Process.Kill()
		<-p.done
	}
	if out := p.output.String(); out != "" {
		p.logger.Debug("fixture output", slog.String("id", p.id), slog.String("output", out))
	}
	return nil
}

// syncBuffer is a bytes.Buffer safe for the concurrent writes of a child's
// stdout and stderr.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
