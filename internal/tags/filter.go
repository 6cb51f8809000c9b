// Package tags implements the include/exclude suite tag filter.
package tags

import (
	"strings"

	"github.com/starford/fitrunner/internal/parser"
)

// Filter selects documents by their effective tags. Tags compare
// case-insensitively.
type Filter struct {
	Include []string
	Exclude []string
}

// Parse builds a filter from comma-separated include and exclude lists.
func Parse(include, exclude string) Filter {
	return Filter{
		Include: normalize(parser.SplitTags(include)),
		Exclude: normalize(parser.SplitTags(exclude)),
	}
}

func normalize(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, t := range in {
		out[i] = strings.ToLower(t)
	}
	return out
}

// Empty reports whether the filter accepts everything.
func (f Filter) Empty() bool {
	return len(f.Include) == 0 && len(f.Exclude) == 0
}

// Matches reports whether a document with the given effective tags passes:
// (include empty OR intersects) AND (exclude empty OR disjoint).
func (f Filter) Matches(effective []string) bool {
	set := make(map[string]struct{}, len(effective))
	for _, t := range effective {
		set[strings.ToLower(t)] = struct{}{}
	}
	if len(f.Include) > 0 && !intersects(f.Include, set) {
		return false
	}
	return !intersects(f.Exclude, set)
}

func intersects(list []string, set map[string]struct{}) bool {
	for _, t := range list {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

// Effective returns own ∪ inherited without duplicates, own tags first.
func Effective(own, inherited []string) []string {
	out := make([]string, 0, len(own)+len(inherited))
	seen := make(map[string]struct{}, cap(out))
	for _, list := range [][]string{own, inherited} {
		for _, t := range list {
			k := strings.ToLower(t)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// String renders the filter for logs.
func (f Filter) String() string {
	return "include=" + strings.Join(f.Include, ",") + " exclude=" + strings.Join(f.Exclude, ",")
}
