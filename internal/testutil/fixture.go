package testutil

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/starford/fitrunner/internal/models"
	"github.com/starford/fitrunner/internal/protocol"
)

// FakeLauncher is a protocol.Launcher whose "fixture servers" are
// goroutines that dial back and speak fit or slim.
//
// The fit server marks each table by the fixture named in its first cell:
// PassFixture, FailFixture, IgnoreFixture and ErrorFixture annotate the
// cell, CrashFixture drops the connection and SlowFixture never answers.
//
// The slim server understands make, import, set<Field>, get<Field>, echo
// and raise. Classes named CrashFixture drop the connection.
type FakeLauncher struct {
	// FailLaunch makes Launch return an error.
	FailLaunch bool
	// NoConnect launches servers that never dial back.
	NoConnect bool

	mu       sync.Mutex
	launches []protocol.LaunchSpec
	wg       sync.WaitGroup
}

// Launches returns every spec passed to Launch, in order.
func (f *FakeLauncher) Launches() []protocol.LaunchSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.LaunchSpec(nil), f.launches...)
}

// Wait blocks until every fake server goroutine has returned.
func (f *FakeLauncher) Wait() { f.wg.Wait() }

func (f *FakeLauncher) Command(kind protocol.Kind) string {
	return kind.String() + ":fake"
}

func (f *FakeLauncher) Launch(_ context.Context, spec protocol.LaunchSpec) (protocol.Process, error) {
	f.mu.Lock()
	f.launches = append(f.launches, spec)
	f.mu.Unlock()

	if f.FailLaunch {
		return nil, errors.New("fake launch failure")
	}
	if f.NoConnect {
		return fakeProcess{}, nil
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		conn, err := net.Dial("tcp", net.JoinHostPort(spec.Host, strconv.Itoa(spec.Port)))
		if err != nil {
			return
		}
		defer conn.Close()
		if spec.Kind == protocol.KindSlim {
			ServeSlim(conn)
		} else {
			ServeFit(conn)
		}
	}()
	return fakeProcess{}, nil
}

type fakeProcess struct{}

func (fakeProcess) Stop() error { return nil }

// ServeFit plays a fit server on conn.
func ServeFit(conn net.Conn) {
	limits := protocol.DefaultLimits()
	br := bufio.NewReader(conn)
	doc, err := protocol.ReadFitFrame(br, limits)
	if err != nil {
		return
	}
	if _, err := protocol.ReadFitFrame(br, limits); err != nil {
		return
	}

	var total models.Summary
	for _, table := range splitTables(string(doc)) {
		class := ""
		switch {
		case strings.Contains(table, "CrashFixture"):
			return
		case strings.Contains(table, "SlowFixture"):
			_, _ = br.ReadByte()
			return
		case strings.Contains(table, "PassFixture"):
			class, total.Right = "pass", total.Right+1
		case strings.Contains(table, "FailFixture"):
			class, total.Wrong = "fail", total.Wrong+1
		case strings.Contains(table, "IgnoreFixture"):
			class, total.Ignores = "ignore", total.Ignores+1
		case strings.Contains(table, "ErrorFixture"):
			class, total.Exceptions = "error", total.Exceptions+1
		}
		if class != "" {
			table = strings.Replace(table, "<td>", `<td class="`+class+`">`, 1)
		}
		if err := protocol.WriteFitFrame(conn, []byte(table), limits); err != nil {
			return
		}
	}
	if err := protocol.WriteFitFrame(conn, nil, limits); err != nil {
		return
	}
	_ = protocol.WriteFitCounts(conn, total)
}

func splitTables(doc string) []string {
	var out []string
	for {
		start := strings.Index(doc, "<table")
		if start < 0 {
			return out
		}
		end := strings.Index(doc[start:], "</table>")
		if end < 0 {
			return append(out, doc[start:])
		}
		end += start + len("</table>")
		out = append(out, doc[start:end])
		doc = doc[end:]
	}
}

// ServeSlim plays a slim server on conn.
func ServeSlim(conn net.Conn) {
	limits := protocol.DefaultLimits()
	if _, err := conn.Write([]byte(protocol.SlimGreetingPrefix + "0.5\n")); err != nil {
		return
	}
	br := bufio.NewReader(conn)
	fields := make(map[string]map[string]string)
	symbols := make(map[string]string)
	for {
		msg, err := protocol.ReadSlimFrame(br, limits)
		if err != nil || msg == protocol.SlimBye {
			return
		}
		list, err := protocol.DecodeList(msg)
		if err != nil || len(list) == 0 {
			return
		}
		instr, ok := list[0].([]any)
		if !ok || len(instr) < 2 {
			return
		}
		args := make([]string, len(instr))
		for i, v := range instr {
			args[i], _ = v.(string)
			if i > 1 && strings.HasPrefix(args[i], "$") {
				if val, ok := symbols[args[i][1:]]; ok {
					args[i] = val
				}
			}
		}
		result, crash := slimExecute(fields, args)
		if crash {
			return
		}
		if args[1] == "callAndAssign" && len(args) > 2 {
			symbols[args[2]] = result
		}
		resp := protocol.EncodeList([]any{[]any{args[0], result}})
		if err := protocol.WriteSlimFrame(conn, resp, limits); err != nil {
			return
		}
	}
}

func slimExecute(fields map[string]map[string]string, instr []string) (string, bool) {
	const void = "/__VOID__/"
	switch instr[1] {
	case "import":
		return "OK", false
	case "make":
		if len(instr) < 4 {
			return "__EXCEPTION__:message:<<MALFORMED_INSTRUCTION>>", false
		}
		if strings.Contains(instr[3], "CrashFixture") {
			return "", true
		}
		if strings.Contains(instr[3], "Missing") {
			return "__EXCEPTION__:message:<<COULD_NOT_INVOKE_CONSTRUCTOR " + instr[3] + ">>", false
		}
		fields[instr[2]] = make(map[string]string)
		return "OK", false
	case "callAndAssign":
		if len(instr) < 5 {
			return "__EXCEPTION__:message:<<MALFORMED_INSTRUCTION>>", false
		}
		// [id, callAndAssign, symbol, instance, method, args...] -> call form
		instr = append([]string{instr[0], "call"}, instr[3:]...)
		fallthrough
	case "call":
		if len(instr) < 4 {
			return "__EXCEPTION__:message:<<MALFORMED_INSTRUCTION>>", false
		}
		inst, ok := fields[instr[2]]
		if !ok {
			return "__EXCEPTION__:message:<<NO_INSTANCE " + instr[2] + ">>", false
		}
		method, args := instr[3], instr[4:]
		switch {
		case strings.HasPrefix(method, "set") && len(args) == 1:
			inst[lowerFirst(method[3:])] = args[0]
			return void, false
		case method == "echo" && len(args) == 1:
			return args[0], false
		case method == "raise":
			return "__EXCEPTION__:message:<<raised>>", false
		case strings.HasPrefix(method, "get") && len(args) == 0:
			name := lowerFirst(strings.TrimSuffix(method[3:], "Arg"))
			if v, ok := inst[name]; ok {
				return v, false
			}
		}
		return "__EXCEPTION__:message:<<NO_METHOD_IN_CLASS " + method + ">>", false
	}
	return "__EXCEPTION__:message:<<MALFORMED_INSTRUCTION>>", false
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
