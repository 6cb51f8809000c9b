// Package protocol drives fixture servers over a socket. Two wire
// protocols are supported: "fit", which exchanges whole annotated HTML
// documents, and "slim", which exchanges one framed statement at a time.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"regexp"
	"strings"
	"syscall"

	"github.com/starford/fitrunner/internal/apperr"
	"github.com/starford/fitrunner/internal/models"
)

// Kind selects the wire protocol for a document.
type Kind int

const (
	KindFit Kind = iota
	KindSlim
)

// ParseKind maps a declared test system name to a Kind. Anything other
// than "slim" is fit.
func ParseKind(testSystem string) Kind {
	if strings.EqualFold(strings.TrimSpace(testSystem), "slim") {
		return KindSlim
	}
	return KindFit
}

func (k Kind) String() string {
	if k == KindSlim {
		return "slim"
	}
	return "fit"
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ErrProtocol is returned when the fixture server violates the wire format.
var ErrProtocol = errors.New("protocol violation")

// Request is one document to execute.
type Request struct {
	Path string
	Body string
}

// Outcome is the result of one session. It is returned even when Run
// fails, carrying the counts observed before the failure.
type Outcome struct {
	Summary models.Summary
	// Content is the annotated HTML returned by (or rendered for) the fixture server.
	Content string
	// Reported holds the counters the fit server sent after its final frame.
	Reported *models.Summary
}

// Observer receives running totals while a session progresses. It may be nil.
type Observer func(partial models.Summary)

func (o Observer) notify(s models.Summary) {
	if o != nil {
		o(s)
	}
}

// Protocol runs one document over an established connection.
type Protocol interface {
	Kind() Kind
	Run(ctx context.Context, conn net.Conn, req Request, observe Observer) (*Outcome, error)
}

// New returns the Protocol implementation for kind.
func New(kind Kind, limits Limits) Protocol {
	if kind == KindSlim {
		return &Slim{Limits: limits}
	}
	return &Fit{Limits: limits}
}

// watch applies ctx to conn: its deadline becomes the I/O deadline and
// cancellation closes the connection. The returned func stops watching.
func watch(ctx context.Context, conn net.Conn) func() {
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// classify maps I/O failures onto apperr sentinels.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%w: %w", apperr.ErrTimeout, err)
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return fmt.Errorf("%w: %w", apperr.ErrFixtureDisconnected, err)
	}
	return err
}

var annotationRe = regexp.MustCompile(`class\s*=\s*"(pass|fail|ignore|error)"`)

// CountAnnotations counts pass/fail/ignore/error cell classes in annotated HTML.
func CountAnnotations(content string) models.Summary {
	var s models.Summary
	for _, m := range annotationRe.FindAllStringSubmatch(content, -1) {
		switch m[1] {
		case classPass:
			s.Right++
		case classFail:
			s.Wrong++
		case classIgnore:
			s.Ignores++
		case classError:
			s.Exceptions++
		}
	}
	return s
}
