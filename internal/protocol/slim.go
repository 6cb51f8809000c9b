package protocol

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/starford/fitrunner/internal/models"
	"github.com/starford/fitrunner/internal/tables"
)

// SlimGreetingPrefix starts the version line a slim server sends on connect.
const SlimGreetingPrefix = "Slim -- V"

// SlimBye ends a slim session.
const SlimBye = "bye"

// Slim compiles the document's tables into statements and exchanges them
// one frame at a time.
type Slim struct {
	Limits Limits
}

func (s *Slim) Kind() Kind { return KindSlim }

func (s *Slim) Run(ctx context.Context, conn net.Conn, req Request, observe Observer) (*Outcome, error) {
	stop := watch(ctx, conn)
	defer stop()

	out := &Outcome{}
	br := bufio.NewReader(conn)
	greeting, err := br.ReadString('\n')
	if err != nil {
		return out, classify(ctx, err)
	}
	if !strings.HasPrefix(greeting, SlimGreetingPrefix) {
		return out, fmt.Errorf("%w: unexpected greeting %q", ErrProtocol, strings.TrimSpace(greeting))
	}

	prog := compile(tables.Parse(req.Body))
	sc := newScorer(prog)
	finish := func() {
		out.Summary = sc.summary
		out.Content = sc.render()
	}

	for _, st := range prog.statements {
		msg := EncodeList([]any{append([]any{st.id}, st.args...)})
		if err := WriteSlimFrame(conn, msg, s.Limits); err != nil {
			finish()
			return out, classify(ctx, err)
		}
		resp, err := ReadSlimFrame(br, s.Limits)
		if err != nil {
			finish()
			return out, classify(ctx, err)
		}
		id, result, err := firstResult(resp)
		if err != nil {
			finish()
			return out, err
		}
		if id != st.id {
			finish()
			return out, fmt.Errorf("%w: response for %q, want %q", ErrProtocol, id, st.id)
		}
		sc.apply(st, result)
		observe.notify(sc.summary)
	}

	_ = WriteSlimFrame(conn, SlimBye, s.Limits)
	finish()
	return out, nil
}

// firstResult extracts [[id, result]] from a response frame.
func firstResult(resp string) (string, string, error) {
	items, err := DecodeList(resp)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	if len(items) == 0 {
		return "", "", fmt.Errorf("%w: empty response", ErrProtocol)
	}
	pair, ok := items[0].([]any)
	if !ok || len(pair) != 2 {
		return "", "", fmt.Errorf("%w: response is not an [id, result] pair", ErrProtocol)
	}
	id, _ := pair[0].(string)
	result, ok := pair[1].(string)
	if !ok {
		result = EncodeList(asList(pair[1]))
	}
	return id, result, nil
}

func asList(v any) []any {
	if l, ok := v.([]any); ok {
		return l
	}
	return []any{v}
}

// scorer maps statement results back onto table cells.
type scorer struct {
	prog    *program
	classes [][][]string
	summary models.Summary
	symbols map[string]string
}

func newScorer(p *program) *scorer {
	classes := make([][][]string, len(p.tables))
	for i, t := range p.tables {
		classes[i] = make([][]string, len(t.Rows))
		for r, row := range t.Rows {
			classes[i][r] = make([]string, len(row))
		}
	}
	return &scorer{prog: p, classes: classes, symbols: make(map[string]string)}
}

func (s *scorer) mark(st statement, class string) {
	rows := s.classes[st.table]
	if st.row < len(rows) && st.col < len(rows[st.row]) {
		rows[st.row][st.col] = class
	}
}

func (s *scorer) score(st statement, right bool) {
	if right {
		s.summary.Right++
		s.mark(st, classPass)
		return
	}
	s.summary.Wrong++
	s.mark(st, classFail)
}

func (s *scorer) apply(st statement, result string) {
	if strings.HasPrefix(result, slimException) {
		if st.optional && strings.Contains(result, slimNoMethod) {
			return
		}
		s.summary.Exceptions++
		s.mark(st, classError)
		return
	}
	if st.assign != "" {
		s.symbols[st.assign] = result
		return
	}
	switch st.check {
	case checkEqual, checkNotEq:
		expected := substitute(st.expected, s.symbols)
		if expected == "" {
			s.summary.Ignores++
			s.mark(st, classIgnore)
			return
		}
		s.score(st, (result == expected) == (st.check == checkEqual))
	case checkTrue:
		s.score(st, result == "true")
	case checkFalse:
		s.score(st, result == "false")
	case checkBoolean:
		switch result {
		case "true":
			s.score(st, true)
		case "false":
			s.score(st, false)
		}
	}
}

func (s *scorer) render() string {
	var sb strings.Builder
	for i, t := range s.prog.tables {
		sb.WriteString(tables.RenderTable(t, s.classes[i]))
	}
	return sb.String()
}
