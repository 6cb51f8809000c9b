package suite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/fitrunner/internal/apperr"
	"github.com/starford/fitrunner/internal/models"
	"github.com/starford/fitrunner/internal/parser"
	"github.com/starford/fitrunner/internal/tags"
)

// Store is the read-only document tree the resolver walks.
type Store interface {
	Exists(ctx context.Context, p models.PagePath) (bool, error)
	Children(ctx context.Context, p models.PagePath) ([]models.PagePath, error)
	Attributes(ctx context.Context, p models.PagePath) (models.Attributes, error)
	Content(ctx context.Context, p models.PagePath) (string, error)
	CrossReferences(ctx context.Context, from models.PagePath, content string) ([]models.PagePath, error)
}

// Resolver builds execution plans.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// NewResolver creates a Resolver over store.
func NewResolver(store Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

type xref struct {
	from   models.PagePath
	target models.PagePath
}

// resolution holds the state of one Resolve call.
type resolution struct {
	ctx    context.Context
	store  Store
	filter tags.Filter

	entries  []Entry
	index    map[string]int      // path -> position in entries
	walked   map[string]struct{} // nodes whose subtree has been walked
	pending  []xref
	attrMemo map[string]models.Attributes
}

// Resolve walks the tree below root and returns the plan of test documents
// selected by filter. startAt, when set, names the first entry to keep,
// either relative to root ("TestThree") or as a full path
// ("SuitePage.TestThree").
//
// A missing root is apperr.ErrNotFound. Any other store failure is
// wrapped in apperr.ErrInfrastructure.
func (r *Resolver) Resolve(ctx context.Context, root models.PagePath, filter tags.Filter, startAt string) (*Plan, error) {
	ok, err := r.store.Exists(ctx, root)
	if err != nil {
		return nil, infra(err)
	}
	if !ok {
		return nil, fmt.Errorf("suite: root %q: %w", root.String(), apperr.ErrNotFound)
	}

	res := &resolution{
		ctx:      ctx,
		store:    r.store,
		filter:   filter,
		index:    make(map[string]int),
		walked:   make(map[string]struct{}),
		attrMemo: make(map[string]models.Attributes),
	}

	if err := res.walkFrom(root, false); err != nil {
		return nil, infra(err)
	}
	if err := res.followReferences(); err != nil {
		return nil, infra(err)
	}

	entries := cutBefore(res.entries, root, startAt)
	for i := range entries {
		entries[i].Ordinal = i + 1
	}

	r.logger.Debug("suite resolved",
		slog.String("root", root.String()),
		slog.String("filter", filter.String()),
		slog.String("start_at", startAt),
		slog.Int("entries", len(entries)),
	)
	return &Plan{Root: root, Entries: entries}, nil
}

func infra(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("suite: %w: %w", apperr.ErrInfrastructure, err)
}

func (r *resolution) attributes(p models.PagePath) (models.Attributes, error) {
	key := p.String()
	if a, ok := r.attrMemo[key]; ok {
		return a, nil
	}
	a, err := r.store.Attributes(r.ctx, p)
	if err != nil {
		return nil, err
	}
	r.attrMemo[key] = a
	return a, nil
}

// ancestry returns the tags p inherits from its nearest tagged strict
// ancestor, and whether any strict ancestor is pruned. Ancestry is the real
// tree ancestry, so the outcome never depends on how p was reached.
func (r *resolution) ancestry(p models.PagePath) (inherited []string, pruned bool, err error) {
	for cur := p; !cur.IsRoot(); {
		cur = cur.Parent()
		a, err := r.attributes(cur)
		if err != nil {
			return nil, false, err
		}
		if a.Has(models.AttrPrune) {
			pruned = true
		}
		if inherited == nil {
			if own := parser.SplitTags(a.Get(models.AttrSuites)); len(own) > 0 {
				inherited = own
			}
		}
	}
	return inherited, pruned, nil
}

// walkFrom walks the subtree at start, which was reached either as the run
// root or through a cross-reference. A cross-referenced document below a
// pruned ancestor is never planned.
func (r *resolution) walkFrom(start models.PagePath, viaXref bool) error {
	inherited, pruned, err := r.ancestry(start)
	if err != nil {
		return err
	}
	if pruned && viaXref {
		return nil
	}
	return r.walk(start, inherited, viaXref)
}

func (r *resolution) walk(p models.PagePath, inherited []string, viaXref bool) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	key := p.String()
	if _, done := r.walked[key]; done {
		return nil
	}
	r.walked[key] = struct{}{}

	attrs, err := r.attributes(p)
	if err != nil {
		return err
	}
	if attrs.Has(models.AttrPrune) {
		return nil
	}

	own := parser.SplitTags(attrs.Get(models.AttrSuites))
	if attrs.Has(models.AttrTest) && r.filter.Matches(tags.Effective(own, inherited)) {
		r.plan(p, viaXref)
	}

	content, err := r.store.Content(r.ctx, p)
	if err != nil {
		return err
	}
	refs, err := r.store.CrossReferences(r.ctx, p, content)
	if err != nil {
		return err
	}
	for _, target := range refs {
		r.pending = append(r.pending, xref{from: p, target: target})
	}

	next := inherited
	if len(own) > 0 {
		next = own
	}
	children, err := r.store.Children(r.ctx, p)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := r.walk(c, next, viaXref); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolution) plan(p models.PagePath, viaXref bool) {
	key := p.String()
	if _, ok := r.index[key]; ok {
		return
	}
	name := p.Name()
	if name == "" {
		name = "root"
	}
	r.index[key] = len(r.entries)
	r.entries = append(r.entries, Entry{Path: p, DisplayName: name, CrossReferenced: viaXref})
}

// followReferences drains the cross-reference worklist in discovery order.
// References found while walking a referenced subtree are appended to it.
func (r *resolution) followReferences() error {
	for i := 0; i < len(r.pending); i++ {
		ref := r.pending[i]
		key := ref.target.String()
		if pos, ok := r.index[key]; ok {
			r.alias(pos, ref)
			continue
		}
		if _, done := r.walked[key]; done {
			continue
		}
		if err := r.walkFrom(ref.target, true); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolution) alias(pos int, ref xref) {
	name := ref.target.RelativeTo(ref.from.Parent()).String()
	e := &r.entries[pos]
	for _, a := range e.Aliases {
		if a == name {
			return
		}
	}
	e.Aliases = append(e.Aliases, name)
}

// cutBefore applies the start-at cursor. When the named path is planned,
// every entry before it is dropped. Otherwise entries whose full path sorts
// before the named path are dropped.
func cutBefore(entries []Entry, root models.PagePath, startAt string) []Entry {
	startAt = strings.TrimSpace(startAt)
	if startAt == "" {
		return entries
	}
	full := models.ParsePath(startAt)
	candidates := []models.PagePath{full}
	if !strings.HasPrefix(startAt, ".") {
		candidates = []models.PagePath{root.Join(full), full}
	}

	for _, c := range candidates {
		for i, e := range entries {
			if e.Path.Equal(c) {
				return entries[i:]
			}
		}
	}

	bound := candidates[0]
	if len(candidates) > 1 && len(full) > len(root) && full.HasPrefix(root) {
		bound = full
	}
	var out []Entry
	for _, e := range entries {
		if e.Path.String() >= bound.String() {
			out = append(out, e)
		}
	}
	return out
}
