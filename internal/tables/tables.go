// Package tables extracts pipe-delimited executable tables from document
// bodies and renders documents to the HTML form fixture servers consume.
package tables

import (
	"html"
	"strings"
)

// Table is one executable table. Rows are never empty.
type Table struct {
	Rows [][]string
}

// Name returns the first cell of the first row.
func (t Table) Name() string {
	if len(t.Rows) == 0 || len(t.Rows[0]) == 0 {
		return ""
	}
	return t.Rows[0][0]
}

// Parse returns the tables found in body in order of appearance. A table is
// a run of consecutive lines starting with '|'.
func Parse(body string) []Table {
	var (
		out []Table
		cur *Table
	)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "|") {
			if cur != nil {
				out = append(out, *cur)
				cur = nil
			}
			continue
		}
		if cur == nil {
			cur = &Table{}
		}
		cur.Rows = append(cur.Rows, splitRow(trimmed))
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}

// splitRow splits "|a|b|" into cells. Text inside !- -! is literal: pipes
// do not separate cells there and the markers are removed.
func splitRow(line string) []string {
	line = strings.TrimPrefix(line, "|")
	var (
		cells []string
		sb    strings.Builder
	)
	for i := 0; i < len(line); i++ {
		if strings.HasPrefix(line[i:], "!-") {
			end := strings.Index(line[i+2:], "-!")
			if end >= 0 {
				sb.WriteString(line[i+2 : i+2+end])
				i += end + 3
				continue
			}
		}
		if line[i] == '|' {
			cells = append(cells, strings.TrimSpace(sb.String()))
			sb.Reset()
			continue
		}
		sb.WriteByte(line[i])
	}
	if rest := strings.TrimSpace(sb.String()); rest != "" {
		cells = append(cells, rest)
	}
	if len(cells) == 0 {
		cells = []string{""}
	}
	return cells
}

// RenderHTML renders body as HTML: tables become <table> elements and every
// other non-directive line becomes escaped text.
func RenderHTML(body string) string {
	var sb strings.Builder
	lines := strings.Split(body, "\n")
	inTable := false
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "|") {
			if !inTable {
				sb.WriteString("<table border=\"1\" cellspacing=\"0\">\n")
				inTable = true
			}
			sb.WriteString("<tr>")
			for _, c := range splitRow(trimmed) {
				sb.WriteString("<td>")
				sb.WriteString(html.EscapeString(c))
				sb.WriteString("</td>")
			}
			sb.WriteString("</tr>\n")
			continue
		}
		if inTable {
			sb.WriteString("</table>\n")
			inTable = false
		}
		switch {
		case trimmed == "":
		case strings.HasPrefix(trimmed, "!define "), strings.HasPrefix(trimmed, "!path "):
		case strings.HasPrefix(trimmed, "!see "):
			ref := strings.TrimSpace(strings.TrimPrefix(trimmed, "!see "))
			sb.WriteString("<b>See: <a href=\"" + html.EscapeString(ref) + "\">" + html.EscapeString(ref) + "</a></b><br/>\n")
		default:
			sb.WriteString(html.EscapeString(trimmed))
			sb.WriteString("<br/>\n")
		}
	}
	if inTable {
		sb.WriteString("</table>\n")
	}
	return sb.String()
}

// RenderTable renders a single table with per-cell classes. classes may be
// shorter than the table; missing entries render unclassified cells.
func RenderTable(t Table, classes [][]string) string {
	var sb strings.Builder
	sb.WriteString("<table border=\"1\" cellspacing=\"0\">\n")
	for i, row := range t.Rows {
		sb.WriteString("<tr>")
		for j, c := range row {
			class := ""
			if i < len(classes) && j < len(classes[i]) {
				class = classes[i][j]
			}
			if class != "" {
				sb.WriteString("<td class=\"" + class + "\">")
			} else {
				sb.WriteString("<td>")
			}
			sb.WriteString(html.EscapeString(c))
			sb.WriteString("</td>")
		}
		sb.WriteString("</tr>\n")
	}
	sb.WriteString("</table>\n")
	return sb.String()
}
