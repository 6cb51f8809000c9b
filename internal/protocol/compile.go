package protocol

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/starford/fitrunner/internal/tables"
)

// Slim result markers.
const (
	slimOK        = "OK"
	slimVoid      = "/__VOID__/"
	slimException = "__EXCEPTION__:"
	slimNoMethod  = "NO_METHOD_IN_CLASS"
)

// Cell classes shared by both protocols.
const (
	classPass   = "pass"
	classFail   = "fail"
	classIgnore = "ignore"
	classError  = "error"
)

// checkKind says how an instruction's result is scored.
type checkKind int

const (
	checkNone    checkKind = iota // only an exception counts
	checkEqual                    // result must equal expected
	checkNotEq                    // result must differ from expected
	checkTrue                     // result must be "true"
	checkFalse                    // result must be "false"
	checkBoolean                  // "true" is right, "false" is wrong, anything else is not scored
	checkShow                     // result is displayed, never scored
)

// statement is one compiled slim instruction plus where its result lands.
type statement struct {
	id       string
	args     []any
	table    int
	row, col int
	check    checkKind
	expected string
	assign   string // symbol name without '$' for callAndAssign
	optional bool   // a missing method is not an exception
}

type program struct {
	tables     []tables.Table
	statements []statement
}

var symbolRe = regexp.MustCompile(`\$([A-Za-z]\w*)`)

// compile turns executable tables into slim statements. Comment tables and
// tables of unknown shape compile to nothing.
func compile(tbls []tables.Table) *program {
	p := &program{tables: tbls}
	for i, t := range tbls {
		name := strings.TrimSpace(t.Name())
		lower := strings.ToLower(name)
		switch {
		case lower == "comment" || strings.HasPrefix(lower, "comment:"):
		case lower == "import" || strings.HasPrefix(lower, "import:"):
			p.compileImport(i, t)
		case lower == "script" || strings.HasPrefix(lower, "script:"):
			p.compileScript(i, t)
		default:
			p.compileDecision(i, t)
		}
	}
	return p
}

func (p *program) add(s statement) {
	s.id = fmt.Sprintf("t%d_%d", s.table, len(p.statements))
	p.statements = append(p.statements, s)
}

func (p *program) compileImport(ti int, t tables.Table) {
	for r := 1; r < len(t.Rows); r++ {
		path := strings.TrimSpace(t.Rows[r][0])
		if path == "" {
			continue
		}
		p.add(statement{table: ti, row: r, args: []any{"import", path}})
	}
}

// stripPrefix removes a "dt:"/"decision:"/"script:" style table type prefix.
func stripPrefix(name string) string {
	if i := strings.Index(name, ":"); i >= 0 {
		switch strings.ToLower(name[:i]) {
		case "dt", "decision", "script":
			return strings.TrimSpace(name[i+1:])
		}
	}
	return name
}

func (p *program) compileDecision(ti int, t tables.Table) {
	if len(t.Rows) < 2 {
		return
	}
	instance := fmt.Sprintf("decisionTable_%d", ti)
	head := t.Rows[0]
	class := stripPrefix(head[0])
	if class == "" {
		return
	}
	mk := []any{"make", instance, class}
	for _, a := range head[1:] {
		mk = append(mk, a)
	}
	p.add(statement{table: ti, row: 0, col: 0, args: mk})

	columns := t.Rows[1]
	for r := 2; r < len(t.Rows); r++ {
		row := t.Rows[r]
		p.add(statement{table: ti, row: r, col: 0, optional: true, args: []any{"call", instance, "reset"}})
		for c, h := range columns {
			if c >= len(row) || strings.HasSuffix(h, "?") || strings.HasSuffix(h, "!") {
				continue
			}
			p.add(statement{table: ti, row: r, col: c, args: []any{"call", instance, "set" + camel(h, true), row[c]}})
		}
		p.add(statement{table: ti, row: r, col: 0, optional: true, args: []any{"call", instance, "execute"}})
		for c, h := range columns {
			if !strings.HasSuffix(h, "?") {
				continue
			}
			method := camel(strings.TrimSuffix(h, "?"), false)
			cell := ""
			if c < len(row) {
				cell = row[c]
			}
			if sym, ok := assignment(cell); ok {
				p.add(statement{table: ti, row: r, col: c, assign: sym, args: []any{"callAndAssign", sym, instance, method}})
				continue
			}
			p.add(statement{table: ti, row: r, col: c, check: checkEqual, expected: cell, args: []any{"call", instance, method}})
		}
	}
}

func (p *program) compileScript(ti int, t tables.Table) {
	const actor = "scriptTableActor"
	head := t.Rows[0]
	class := stripPrefix(head[0])
	args := head[1:]
	if strings.EqualFold(class, "script") {
		class = ""
	}
	if class == "" && len(args) > 0 {
		class, args = args[0], args[1:]
	}
	if class != "" {
		mk := []any{"make", actor, class}
		for _, a := range args {
			mk = append(mk, a)
		}
		p.add(statement{table: ti, row: 0, col: 0, args: mk})
	}

	for r := 1; r < len(t.Rows); r++ {
		row := t.Rows[r]
		first := strings.TrimSpace(row[0])
		keyword := strings.ToLower(first)
		switch {
		case first == "" || keyword == "note" || strings.HasPrefix(first, "#") || strings.HasPrefix(first, "*"):
		case keyword == "check" || keyword == "check not":
			if len(row) < 3 {
				continue
			}
			kind := checkEqual
			if keyword == "check not" {
				kind = checkNotEq
			}
			method, margs := action(row[1 : len(row)-1])
			p.add(statement{table: ti, row: r, col: len(row) - 1, check: kind, expected: row[len(row)-1],
				args: append([]any{"call", actor, method}, margs...)})
		case keyword == "ensure" || keyword == "reject" || keyword == "show":
			if len(row) < 2 {
				continue
			}
			kind := map[string]checkKind{"ensure": checkTrue, "reject": checkFalse, "show": checkShow}[keyword]
			method, margs := action(row[1:])
			p.add(statement{table: ti, row: r, col: 0, check: kind, args: append([]any{"call", actor, method}, margs...)})
		default:
			if sym, ok := assignment(first); ok && len(row) > 1 {
				method, margs := action(row[1:])
				p.add(statement{table: ti, row: r, col: 0, assign: sym,
					args: append([]any{"callAndAssign", sym, actor, method}, margs...)})
				continue
			}
			method, margs := action(row)
			p.add(statement{table: ti, row: r, col: 0, check: checkBoolean, args: append([]any{"call", actor, method}, margs...)})
		}
	}
}

// action interleaves keyword and argument cells: even cells form the
// method name, odd cells are its arguments.
func action(cells []string) (string, []any) {
	var (
		words []string
		args  []any
	)
	for i, c := range cells {
		if i%2 == 0 {
			words = append(words, c)
		} else {
			args = append(args, c)
		}
	}
	return camel(strings.Join(words, " "), false), args
}

// assignment recognises "$name=" cells.
func assignment(cell string) (string, bool) {
	cell = strings.TrimSpace(cell)
	if len(cell) < 3 || cell[0] != '$' || !strings.HasSuffix(cell, "=") {
		return "", false
	}
	return cell[1 : len(cell)-1], true
}

// camel turns "get string arg" into "getStringArg" (or "GetStringArg" when
// upper is set). Punctuation separates words.
func camel(s string, upper bool) string {
	var sb strings.Builder
	capNext := upper
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			capNext = true
			continue
		}
		switch {
		case capNext && sb.Len() > 0, capNext && upper:
			sb.WriteRune(unicode.ToUpper(r))
		case sb.Len() == 0 && !upper:
			sb.WriteRune(unicode.ToLower(r))
		default:
			sb.WriteRune(r)
		}
		capNext = false
	}
	return sb.String()
}

// substitute replaces $symbols in expected values with assigned results.
func substitute(s string, symbols map[string]string) string {
	return symbolRe.ReplaceAllStringFunc(s, func(m string) string {
		if v, ok := symbols[m[1:]]; ok {
			return v
		}
		return m
	})
}
