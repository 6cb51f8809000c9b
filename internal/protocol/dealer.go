package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/starford/fitrunner/internal/apperr"
)

// Dealer opens one socket session per document: it reserves a port,
// listens on it, launches the fixture server and accepts its connection.
type Dealer struct {
	host          string
	ports         *PortAllocator
	launcher      Launcher
	acceptTimeout time.Duration
	logger        *slog.Logger
}

// NewDealer creates a Dealer. A nil ports allocator listens on an
// ephemeral port chosen by the OS.
func NewDealer(host string, ports *PortAllocator, launcher Launcher, acceptTimeout time.Duration, logger *slog.Logger) *Dealer {
	if logger == nil {
		logger = slog.Default()
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return &Dealer{host: host, ports: ports, launcher: launcher, acceptTimeout: acceptTimeout, logger: logger}
}

// Command describes the fixture command used for kind.
func (d *Dealer) Command(kind Kind) string {
	return d.launcher.Command(kind)
}

// Session is an accepted fixture connection. Close releases everything
// Open acquired.
type Session struct {
	Conn    net.Conn
	Port    int
	process Process
	release func()
}

func (s *Session) Close() error {
	err := s.Conn.Close()
	if s.process != nil {
		_ = s.process.Stop()
	}
	if s.release != nil {
		s.release()
	}
	return err
}

// Open launches a fixture server for spec and returns its connection.
// Failures are infrastructure errors unless ctx was cancelled.
func (d *Dealer) Open(ctx context.Context, spec LaunchSpec) (*Session, error) {
	ln, port, release, err := d.listen()
	if err != nil {
		return nil, fmt.Errorf("protocol: %w: %w", apperr.ErrInfrastructure, err)
	}

	spec.Host, spec.Port = d.host, port
	proc, err := d.launcher.Launch(ctx, spec)
	if err != nil {
		_ = ln.Close()
		release()
		return nil, fmt.Errorf("protocol: launch fixture: %w: %w", apperr.ErrInfrastructure, err)
	}

	conn, err := d.accept(ctx, ln)
	_ = ln.Close()
	if err != nil {
		_ = proc.Stop()
		release()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("protocol: accept on port %d: %w: %w", port, apperr.ErrInfrastructure, err)
	}

	d.logger.Debug("fixture connected",
		slog.String("id", spec.ID),
		slog.String("kind", spec.Kind.String()),
		slog.Int("port", port),
	)
	return &Session{Conn: conn, Port: port, process: proc, release: release}, nil
}

// listen reserves a port and listens on it. Ports that fail to bind are
// released and the next one is tried.
func (d *Dealer) listen() (net.Listener, int, func(), error) {
	if d.ports == nil {
		ln, err := net.Listen("tcp", net.JoinHostPort(d.host, "0"))
		if err != nil {
			return nil, 0, nil, err
		}
		return ln, ln.Addr().(*net.TCPAddr).Port, func() {}, nil
	}

	var lastErr error
	for i := 0; i < d.ports.Size(); i++ {
		port, err := d.ports.Acquire()
		if err != nil {
			return nil, 0, nil, err
		}
		ln, err := net.Listen("tcp", net.JoinHostPort(d.host, strconv.Itoa(port)))
		if err != nil {
			d.ports.Release(port)
			lastErr = err
			continue
		}
		return ln, port, func() { d.ports.Release(port) }, nil
	}
	if lastErr == nil {
		lastErr = ErrNoPort
	}
	return nil, 0, nil, lastErr
}

// accept waits for one connection, bounded by the accept timeout and ctx.
func (d *Dealer) accept(ctx context.Context, ln net.Listener) (net.Conn, error) {
	if d.acceptTimeout > 0 {
		if tl, ok := ln.(*net.TCPListener); ok {
			_ = tl.SetDeadline(time.Now().Add(d.acceptTimeout))
		}
	}
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-stop:
		}
	}()

	conn, err := ln.Accept()
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, fmt.Errorf("%w after %s", apperr.ErrTimeout, d.acceptTimeout)
		}
		return nil, err
	}
	return conn, nil
}
