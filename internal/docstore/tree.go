// Package docstore exposes a vault directory as a read-only document tree.
//
// Every directory under the vault root is a document; its content lives in
// ContentFile inside that directory. The vault root is the root document.
package docstore

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/starford/fitrunner/internal/apperr"
	"github.com/starford/fitrunner/internal/models"
	"github.com/starford/fitrunner/internal/parser"
	"github.com/starford/fitrunner/internal/storage"
)

// ContentFile is the name of the file holding a document's markup.
const ContentFile = "content.md"

// DefaultTestSystem is used when neither the document nor its ancestors declare one.
const DefaultTestSystem = "fit"

// Document is a parsed document together with the settings it inherits.
type Document struct {
	Path       models.PagePath
	Attributes models.Attributes
	Body       string
	Title      string
	SeeAlso    []string
	Variables  map[string]string
	// TestSystem is the declared or inherited test system name ("fit", "slim").
	TestSystem string
	// ClassPath is the document's own !path entries followed by its ancestors'.
	ClassPath []string
}

// Tree reads documents from a storage.Provider. It never writes.
type Tree struct {
	store storage.Provider
}

// New creates a Tree over store.
func New(store storage.Provider) *Tree {
	return &Tree{store: store}
}

func dirOf(p models.PagePath) string {
	return strings.Join(p, "/")
}

func contentFileOf(p models.PagePath) string {
	return path.Join(dirOf(p), ContentFile)
}

// Exists reports whether p names a document.
func (t *Tree) Exists(ctx context.Context, p models.PagePath) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if p.IsRoot() {
		return true, nil
	}
	ok, err := t.store.Exists(dirOf(p))
	if err != nil {
		return false, fmt.Errorf("docstore: exists %s: %w", p, err)
	}
	return ok, nil
}

// Children returns the child paths of p in name order.
func (t *Tree) Children(ctx context.Context, p models.PagePath) ([]models.PagePath, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names, err := t.store.Dirs(dirOf(p))
	if err != nil {
		return nil, fmt.Errorf("docstore: children %s: %w", p, err)
	}
	out := make([]models.PagePath, 0, len(names))
	for _, n := range names {
		out = append(out, p.Child(n))
	}
	return out, nil
}

// parse reads and parses the content of p. A document directory without a
// content file is an empty document.
func (t *Tree) parse(ctx context.Context, p models.PagePath) (*parser.Result, error) {
	ok, err := t.Exists(ctx, p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("docstore: %s: %w", p, apperr.ErrNotFound)
	}
	file := contentFileOf(p)
	has, err := t.store.Exists(file)
	if err != nil {
		return nil, fmt.Errorf("docstore: stat %s: %w", p, err)
	}
	if !has {
		return &parser.Result{Attributes: models.Attributes{}, Variables: map[string]string{}}, nil
	}
	data, err := t.store.Read(file)
	if err != nil {
		return nil, fmt.Errorf("docstore: read %s: %w", p, err)
	}
	return parser.Parse(data)
}

// Attributes returns the attributes of p.
func (t *Tree) Attributes(ctx context.Context, p models.PagePath) (models.Attributes, error) {
	r, err := t.parse(ctx, p)
	if err != nil {
		return nil, err
	}
	return r.Attributes, nil
}

// Content returns the body of p without its frontmatter.
func (t *Tree) Content(ctx context.Context, p models.PagePath) (string, error) {
	r, err := t.parse(ctx, p)
	if err != nil {
		return "", err
	}
	return r.Body, nil
}

// Load returns the parsed document at p with its test system and class path
// resolved against its ancestors.
func (t *Tree) Load(ctx context.Context, p models.PagePath) (*Document, error) {
	r, err := t.parse(ctx, p)
	if err != nil {
		return nil, err
	}
	doc := &Document{
		Path:       p,
		Attributes: r.Attributes,
		Body:       r.Body,
		Title:      r.Title,
		SeeAlso:    r.SeeAlso,
		Variables:  r.Variables,
		TestSystem: testSystemOf(r),
		ClassPath:  append([]string(nil), r.ClassPath...),
	}

	for cur := p; !cur.IsRoot(); {
		cur = cur.Parent()
		ar, err := t.parse(ctx, cur)
		if err != nil {
			return nil, err
		}
		if doc.TestSystem == "" {
			doc.TestSystem = testSystemOf(ar)
		}
		doc.ClassPath = append(doc.ClassPath, ar.ClassPath...)
	}
	if doc.TestSystem == "" {
		doc.TestSystem = DefaultTestSystem
	}
	return doc, nil
}

// testSystemOf returns the test system declared by a single document, or "".
// The attribute wins over a !define.
func testSystemOf(r *parser.Result) string {
	if v := strings.TrimSpace(r.Attributes.Get(models.AttrTestSystem)); v != "" {
		return strings.ToLower(v)
	}
	if v := strings.TrimSpace(r.Variables["TEST_SYSTEM"]); v != "" {
		return strings.ToLower(v)
	}
	return ""
}

// CrossReferences resolves the !see targets found in content, written in the
// document at from, into absolute paths in order of appearance. Targets that
// cannot be resolved are omitted.
//
// Reference forms: ".A.B" is absolute, ">B" is a child of from, "<A.B"
// names the nearest ancestor of from called A, and anything else is a
// sibling of from.
func (t *Tree) CrossReferences(ctx context.Context, from models.PagePath, content string) ([]models.PagePath, error) {
	r, err := parser.Parse([]byte(content))
	if err != nil {
		return nil, err
	}
	var out []models.PagePath
	for _, ref := range r.SeeAlso {
		p, ok, err := t.ResolveReference(ctx, from, ref)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// ResolveReference resolves a single reference written in the document at from.
// ok is false when the target does not exist.
func (t *Tree) ResolveReference(ctx context.Context, from models.PagePath, ref string) (models.PagePath, bool, error) {
	ref = strings.TrimSpace(ref)
	var target models.PagePath
	switch {
	case ref == "":
		return nil, false, nil
	case strings.HasPrefix(ref, "."):
		target = models.ParsePath(ref)
	case strings.HasPrefix(ref, ">"):
		target = from.Join(models.ParsePath(ref[1:]))
	case strings.HasPrefix(ref, "<"):
		rel := models.ParsePath(ref[1:])
		if len(rel) == 0 {
			return nil, false, nil
		}
		found := false
		for cur := from; !cur.IsRoot(); cur = cur.Parent() {
			if cur.Name() == rel[0] {
				target = cur.Join(rel[1:])
				found = true
				break
			}
		}
		if !found {
			return nil, false, nil
		}
	default:
		target = from.Parent().Join(models.ParsePath(ref))
	}
	ok, err := t.Exists(ctx, target)
	if err != nil {
		return nil, false, err
	}
	return target, ok, nil
}
