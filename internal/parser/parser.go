// Package parser extracts frontmatter attributes and markup directives
// (!see, !define, !path) from document content.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/fitrunner/internal/models"
)

var (
	seeRe    = regexp.MustCompile(`(?m)^[ \t]*!see[ \t]+(\S+)[ \t]*\r?$`)
	defineRe = regexp.MustCompile(`(?m)^[ \t]*!define[ \t]+([A-Za-z_][A-Za-z0-9_]*)[ \t]+[{(\[](.*?)[})\]][ \t]*\r?$`)
	pathRe   = regexp.MustCompile(`(?m)^[ \t]*!path[ \t]+(\S+)[ \t]*\r?$`)
)

// Result holds the output of parsing a document.
type Result struct {
	Attributes models.Attributes
	Body       string
	SeeAlso    []string
	Variables  map[string]string
	ClassPath  []string
	Title      string
}

// Parse extracts frontmatter attributes, body and directives from raw content.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	return &Result{
		Attributes: attributes(fm),
		Body:       body,
		SeeAlso:    extractSeeAlso(body),
		Variables:  extractDefines(body),
		ClassPath:  extractPaths(body),
		Title:      deriveTitle(fm, body),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML: the whole document is body.
		return nil, string(data), nil
	}

	return fm, body, nil
}

// attributes flattens frontmatter into lower-cased string attributes.
// "tags" is accepted as an alias of "suites"; lists become comma-joined values.
func attributes(fm map[string]interface{}) models.Attributes {
	out := make(models.Attributes, len(fm))
	for k, v := range fm {
		key := strings.ToLower(strings.TrimSpace(k))
		key = strings.ReplaceAll(key, "-", "_")
		if key == "testsystem" {
			key = models.AttrTestSystem
		}
		out[key] = flatten(v)
	}
	if _, ok := out[models.AttrSuites]; !ok {
		if tags, ok := out["tags"]; ok {
			out[models.AttrSuites] = tags
		}
	}
	return out
}

func flatten(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := strings.TrimSpace(flatten(item)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(val)
	}
}

// extractSeeAlso returns !see targets in order of appearance, without duplicates.
func extractSeeAlso(body string) []string {
	matches := seeRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := strings.TrimSpace(m[1])
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractDefines collects !define NAME {value} variables. Later definitions win.
func extractDefines(body string) map[string]string {
	out := make(map[string]string)
	for _, m := range defineRe.FindAllStringSubmatch(body, -1) {
		out[m[1]] = strings.TrimSpace(m[2])
	}
	return out
}

func extractPaths(body string) []string {
	var out []string
	for _, m := range pathRe.FindAllStringSubmatch(body, -1) {
		out = append(out, m[1])
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]interface{}, body string) string {
	if fm != nil {
		if t, ok := fm["title"]; ok {
			if s, ok := t.(string); ok && s != "" {
				return s
			}
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// SplitTags parses a comma-separated suites attribute into a sorted, de-duplicated tag list.
func SplitTags(raw string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
