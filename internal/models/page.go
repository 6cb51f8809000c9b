// Package models defines the domain types shared across fitrunner packages.
package models

import (
	"strings"
	"time"
)

// PagePath addresses a document in the tree as an ordered list of name
// segments. The empty path is the tree root.
type PagePath []string

// ParsePath splits a dot-separated path ("SuitePage.TestOne"). A leading
// dot is accepted and ignored; empty segments are dropped.
func ParsePath(s string) PagePath {
	s = strings.TrimSpace(s)
	if s == "" || s == "." {
		return PagePath{}
	}
	parts := strings.Split(strings.TrimPrefix(s, "."), ".")
	out := make(PagePath, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// String renders the path dot-joined. The root renders as "".
func (p PagePath) String() string {
	return strings.Join(p, ".")
}

// IsRoot reports whether p addresses the tree root.
func (p PagePath) IsRoot() bool { return len(p) == 0 }

// Name returns the last segment, or "" for the root.
func (p PagePath) Name() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Parent returns the enclosing path. The parent of the root is the root.
func (p PagePath) Parent() PagePath {
	if len(p) == 0 {
		return PagePath{}
	}
	return p.clone()[:len(p)-1]
}

// Child returns a new path with name appended.
func (p PagePath) Child(name string) PagePath {
	out := make(PagePath, len(p), len(p)+1)
	copy(out, p)
	return append(out, name)
}

// Join appends all segments of rel.
func (p PagePath) Join(rel PagePath) PagePath {
	out := make(PagePath, 0, len(p)+len(rel))
	out = append(out, p...)
	return append(out, rel...)
}

// Equal reports segment-wise equality.
func (p PagePath) Equal(o PagePath) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is p itself or one of its ancestors.
func (p PagePath) HasPrefix(prefix PagePath) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}

// RelativeTo strips base from p when base is a prefix; otherwise p is returned unchanged.
func (p PagePath) RelativeTo(base PagePath) PagePath {
	if !p.HasPrefix(base) {
		return p.clone()
	}
	return p.clone()[len(base):]
}

// MarshalText renders the path dot-joined.
func (p PagePath) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a dot-joined path.
func (p *PagePath) UnmarshalText(b []byte) error {
	*p = ParsePath(string(b))
	return nil
}

func (p PagePath) clone() PagePath {
	out := make(PagePath, len(p))
	copy(out, p)
	return out
}

// Attribute names understood by the suite resolver.
const (
	AttrTest       = "test"
	AttrPrune      = "prune"
	AttrSuites     = "suites"
	AttrTestSystem = "test_system"
)

// Attributes is the string-valued attribute map of a document. Keys are
// stored lower-cased.
type Attributes map[string]string

// Has reports whether the attribute is present and not explicitly false.
func (a Attributes) Has(name string) bool {
	v, ok := a[strings.ToLower(name)]
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "false", "no", "0", "off":
		return false
	}
	return true
}

// Get returns the attribute value, or "".
func (a Attributes) Get(name string) string {
	return a[strings.ToLower(name)]
}

// FileMetadata is a lightweight representation of a stored file returned by list operations.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
