package protocol

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/starford/fitrunner/internal/models"
)

const (
	fitLenDigits  = 10
	slimLenDigits = 6

	// maxSlimFrameBytes is the largest length a six digit prefix can carry.
	maxSlimFrameBytes = 999999
)

var (
	ErrShortFrame    = errors.New("frame: short length prefix")
	ErrBadLength     = errors.New("frame: malformed length prefix")
	ErrFrameTooLarge = errors.New("frame: payload too large")
	ErrBadSeparator  = errors.New("frame: missing ':' after length")
)

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxFrameBytes int
}

func DefaultLimits() Limits {
	return Limits{MaxFrameBytes: 16 * 1024 * 1024}
}

func writeLength(w io.Writer, n, digits int) error {
	_, err := fmt.Fprintf(w, "%0*d", digits, n)
	return err
}

func readLength(r io.Reader, digits int) (int, error) {
	buf := make([]byte, digits)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, fmt.Errorf("%w: %w", ErrShortFrame, err)
		}
		return 0, err
	}
	for _, b := range buf {
		if b < '0' || b > '9' {
			return 0, fmt.Errorf("%w: %q", ErrBadLength, buf)
		}
	}
	n, err := strconv.Atoi(string(buf))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadLength, buf)
	}
	return n, nil
}

// WriteFitFrame writes a 10-digit length prefix followed by payload. An
// empty payload is the terminator frame.
func WriteFitFrame(w io.Writer, payload []byte, limits Limits) error {
	if len(payload) > limits.MaxFrameBytes {
		return ErrFrameTooLarge
	}
	if err := writeLength(w, len(payload), fitLenDigits); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// ReadFitFrame reads one length-prefixed frame. A zero-length frame returns
// an empty, non-nil slice.
func ReadFitFrame(r io.Reader, limits Limits) ([]byte, error) {
	n, err := readLength(r, fitLenDigits)
	if err != nil {
		return nil, err
	}
	if n > limits.MaxFrameBytes {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// WriteFitCounts writes the four 10-digit counters that follow the final
// zero-length frame.
func WriteFitCounts(w io.Writer, s models.Summary) error {
	for _, n := range []int{s.Right, s.Wrong, s.Ignores, s.Exceptions} {
		if err := writeLength(w, n, fitLenDigits); err != nil {
			return err
		}
	}
	return nil
}

// ReadFitCounts reads the four trailing counters.
func ReadFitCounts(r io.Reader) (models.Summary, error) {
	var v [4]int
	for i := range v {
		n, err := readLength(r, fitLenDigits)
		if err != nil {
			return models.Summary{}, err
		}
		v[i] = n
	}
	return models.Summary{Right: v[0], Wrong: v[1], Ignores: v[2], Exceptions: v[3]}, nil
}

// WriteSlimFrame writes "NNNNNN:" followed by msg. NNNNNN is the byte length of msg.
func WriteSlimFrame(w io.Writer, msg string, limits Limits) error {
	if len(msg) > limits.MaxFrameBytes || len(msg) > maxSlimFrameBytes {
		return ErrFrameTooLarge
	}
	if err := writeLength(w, len(msg), slimLenDigits); err != nil {
		return err
	}
	_, err := io.WriteString(w, ":"+msg)
	return err
}

// ReadSlimFrame reads one "NNNNNN:msg" frame.
func ReadSlimFrame(r io.Reader, limits Limits) (string, error) {
	n, err := readLength(r, slimLenDigits)
	if err != nil {
		return "", err
	}
	if n > limits.MaxFrameBytes {
		return "", ErrFrameTooLarge
	}
	buf := make([]byte, n+1)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	if buf[0] != ':' {
		return "", ErrBadSeparator
	}
	return string(buf[1:]), nil
}
