// Package diff compares two models and produces the ordered statements that
// turn one into the other.
package diff

import (
	"context"
	"fmt"
	"sort"

	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/logger"
	"github.com/ddlkit/ddlkit/internal/resolver"
)

// Plan is the result of a diff.
type Plan struct {
	Dialect ddl.Dialect
	From    *ddl.Model
	To      *ddl.Model
	// Prev is From with every accepted rename applied. It describes the
	// shape entities have when the statements start to alter them.
	Prev       *ddl.Model
	Statements []Statement
	Renames    []AppliedRename
}

// AppliedRename records one rename accepted by the resolver.
type AppliedRename struct {
	Kind ddl.Kind
	From ddl.Key
	To   ddl.Key
}

// Empty reports whether the plan changes nothing.
func (p *Plan) Empty() bool {
	return len(p.Statements) == 0
}

// Diff computes the statements turning from into to. Neither model is
// modified. The resolver is consulted for every kind and scope that has
// both added and removed entities.
func Diff(ctx context.Context, from, to *ddl.Model, r resolver.Resolver) (*Plan, error) {
	if from.Dialect != to.Dialect {
		return nil, fmt.Errorf("cannot diff %s model against %s model", from.Dialect, to.Dialect)
	}
	if r == nil {
		r = resolver.None{}
	}

	d := &differ{
		ctx:      ctx,
		resolver: r,
		dialect:  to.Dialect,
		prev:     from.Clone(),
		to:       to,
		created:  map[ddl.Key]bool{},
		dropped:  map[ddl.Key]bool{},
	}

	steps := []func() error{
		d.diffSchemas,
		d.diffEnums,
		d.diffSequences,
		d.diffRoles,
		d.diffTables,
		d.diffColumns,
		d.diffConstraints,
		d.diffForeignKeys,
		d.diffPolicies,
		d.diffViews,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	plan := &Plan{
		Dialect:    to.Dialect,
		From:       from,
		To:         to,
		Prev:       d.prev,
		Statements: sequence(d.stmts, d.prev, to),
		Renames:    d.renames,
	}
	logger.Get().Debug("Diff completed",
		"dialect", plan.Dialect,
		"statements", len(plan.Statements),
		"renames", len(plan.Renames))
	return plan, nil
}

type differ struct {
	ctx      context.Context
	resolver resolver.Resolver
	dialect  ddl.Dialect

	// prev starts as a deep copy of "from" and receives every rename
	prev *ddl.Model
	to   *ddl.Model

	// created and dropped hold table keys created or dropped in this run
	created map[ddl.Key]bool
	dropped map[ddl.Key]bool

	stmts   []Statement
	renames []AppliedRename
}

func (d *differ) emit(s ...Statement) {
	d.stmts = append(d.stmts, s...)
}

// pair is an entity present on both sides after renames.
type pair[T ddl.Entity] struct {
	From T
	To   T
}

// partition splits two collections by key. Keys for which skip returns true
// are ignored on both sides.
func partition[T ddl.Entity](from, to map[ddl.Key]T, skip func(ddl.Key) bool) (added, removed []T, common []pair[T]) {
	for _, v := range ddl.Sorted(to) {
		k := v.Key()
		if skip != nil && skip(k) {
			continue
		}
		if old, ok := from[k]; ok {
			common = append(common, pair[T]{From: old, To: v})
		} else {
			added = append(added, v)
		}
	}
	for _, v := range ddl.Sorted(from) {
		k := v.Key()
		if skip != nil && skip(k) {
			continue
		}
		if _, ok := to[k]; !ok {
			removed = append(removed, v)
		}
	}
	return added, removed, common
}

// resolve asks the resolver to split added and removed entities. Renamed
// pairs are returned as (removed, added).
func resolve[T ddl.Entity](d *differ, kind ddl.Kind, scope string, added, removed []T) (created, deleted []T, renamed []pair[T], err error) {
	if len(added) == 0 || len(removed) == 0 {
		return added, removed, nil, nil
	}

	req := &resolver.Request{Kind: kind, Scope: scope}
	byKey := map[ddl.Key]T{}
	for _, v := range added {
		req.Added = append(req.Added, resolver.Candidate{Key: v.Key(), Name: v.Key().Qualified()})
		byKey[v.Key()] = v
	}
	for _, v := range removed {
		req.Removed = append(req.Removed, resolver.Candidate{Key: v.Key(), Name: v.Key().Qualified()})
		byKey[v.Key()] = v
	}
	for i, a := range removed {
		for j, b := range added {
			if s := similarity(d.prev, d.to, a, b); s > 0 {
				req.Scores = append(req.Scores, resolver.Score{From: i, To: j, Value: s})
			}
		}
	}
	sort.SliceStable(req.Scores, func(i, j int) bool { return req.Scores[i].Value > req.Scores[j].Value })

	res, err := d.resolver.Resolve(d.ctx, req)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to resolve %s renames: %w", kind, err)
	}
	if err := resolver.Validate(req, res); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid rename resolution: %w", err)
	}

	// keep the sorted input order in the buckets
	isCreated := map[ddl.Key]bool{}
	for _, c := range res.Created {
		isCreated[c.Key] = true
	}
	isDeleted := map[ddl.Key]bool{}
	for _, c := range res.Deleted {
		isDeleted[c.Key] = true
	}
	for _, v := range added {
		if isCreated[v.Key()] {
			created = append(created, v)
		}
	}
	for _, v := range removed {
		if isDeleted[v.Key()] {
			deleted = append(deleted, v)
		}
	}
	for _, r := range res.Renamed {
		renamed = append(renamed, pair[T]{From: byKey[r.From.Key], To: byKey[r.To.Key]})
	}

	logger.Get().Debug("Resolved renames",
		"kind", kind,
		"scope", scope,
		"created", len(created),
		"deleted", len(deleted),
		"renamed", len(renamed))
	return created, deleted, renamed, nil
}

func (d *differ) rename(kind ddl.Kind, from, to ddl.Key) {
	d.renames = append(d.renames, AppliedRename{Kind: kind, From: from, To: to})
}

// ownerGone reports whether the table owning key was created or dropped in
// this run, in which case owned entities need no statements of their own.
func (d *differ) ownerGone(k ddl.Key) bool {
	return d.created[k.Owner()] || d.dropped[k.Owner()]
}

func (d *differ) diffSchemas() error {
	added, removed, _ := partition(d.prev.Schemas, d.to.Schemas, nil)
	created, deleted, renamed, err := resolve(d, ddl.KindSchema, "", added, removed)
	if err != nil {
		return err
	}
	for _, p := range renamed {
		old := *p.From
		d.emit(&RenameSchema{From: &old, To: p.To})
		d.rename(ddl.KindSchema, p.From.Key(), p.To.Key())
		renameSchema(d.prev, p.From.Name, p.To.Name)
	}
	for _, s := range created {
		d.emit(&CreateSchema{Schema: s})
	}
	for _, s := range deleted {
		d.emit(&DropSchema{Schema: s})
	}
	return nil
}

func (d *differ) diffSequences() error {
	added, removed, common := partition(d.prev.Sequences, d.to.Sequences, nil)
	created, deleted, renamed, err := resolve(d, ddl.KindSequence, "", added, removed)
	if err != nil {
		return err
	}
	for _, p := range renamed {
		old := *p.From
		d.emit(&RenameSequence{From: &old, To: p.To})
		d.rename(ddl.KindSequence, p.From.Key(), p.To.Key())
		renameSequence(d.prev, p.From.Key(), p.To.Key())
		common = append(common, p)
	}
	for _, s := range created {
		d.emit(&CreateSequence{Sequence: s})
	}
	for _, s := range deleted {
		d.emit(&DropSequence{Sequence: s})
	}
	for _, p := range common {
		if !sequenceOptionsEqual(p.From, p.To) {
			d.emit(&AlterSequence{From: p.From, To: p.To})
		}
	}
	return nil
}

func sequenceOptionsEqual(a, b *ddl.Sequence) bool {
	return a.Start == b.Start && a.Increment == b.Increment && a.Min == b.Min &&
		a.Max == b.Max && a.Cache == b.Cache && a.Cycle == b.Cycle
}

func (d *differ) diffRoles() error {
	added, removed, common := partition(d.prev.Roles, d.to.Roles, nil)
	created, deleted, renamed, err := resolve(d, ddl.KindRole, "", added, removed)
	if err != nil {
		return err
	}
	for _, p := range renamed {
		old := *p.From
		d.emit(&RenameRole{From: &old, To: p.To})
		d.rename(ddl.KindRole, p.From.Key(), p.To.Key())
		renameRole(d.prev, p.From.Name, p.To.Name)
		common = append(common, p)
	}
	for _, r := range created {
		d.emit(&CreateRole{Role: r})
	}
	for _, r := range deleted {
		d.emit(&DropRole{Role: r})
	}
	for _, p := range common {
		a, b := p.From, p.To
		if a.CreateDB != b.CreateDB || a.CreateRole != b.CreateRole || a.Inherit != b.Inherit {
			d.emit(&AlterRole{From: a, To: b})
		}
	}
	return nil
}
