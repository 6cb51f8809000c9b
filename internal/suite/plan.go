// Package suite turns a document subtree into an ordered execution plan.
package suite

import (
	"strconv"

	"github.com/starford/fitrunner/internal/models"
)

// Entry is one document selected for execution.
type Entry struct {
	Ordinal     int             `json:"ordinal"`
	Path        models.PagePath `json:"path"`
	DisplayName string          `json:"display_name"`
	// Aliases are the cross-reference targets, as written, that reached this
	// entry after it was first planned.
	Aliases []string `json:"aliases,omitempty"`
	// CrossReferenced is true when the entry was planned through a !see link
	// rather than the tree walk.
	CrossReferenced bool `json:"cross_referenced,omitempty"`
}

// Anchor is the cross-link anchor of the entry, e.g. "TestOne1".
func (e Entry) Anchor() string {
	return e.DisplayName + strconv.Itoa(e.Ordinal)
}

// Plan is the ordered list of entries for one run. Ordinals are 1..Len().
type Plan struct {
	Root    models.PagePath `json:"root"`
	Entries []Entry         `json:"entries"`
}

// Len returns the number of planned entries.
func (p *Plan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Entries)
}

// Find returns the entry for path.
func (p *Plan) Find(path models.PagePath) (Entry, bool) {
	if p == nil {
		return Entry{}, false
	}
	for _, e := range p.Entries {
		if e.Path.Equal(path) {
			return e, true
		}
	}
	return Entry{}, false
}

// SinglePage reports whether the plan consists of the run root alone.
func (p *Plan) SinglePage() bool {
	return p.Len() == 1 && p.Entries[0].Path.Equal(p.Root)
}
