package diff

import (
	"slices"

	"github.com/ddlkit/ddlkit/internal/ddl"
)

// diffConstraints handles primary keys, uniques, checks and indexes. A
// changed definition is always dropped and recreated. Primary keys, uniques
// and checks of created tables are part of CreateTable. A primary key that
// only changes its name is renamed in place so dependent foreign keys keep
// pointing at it.
func (d *differ) diffConstraints() error {
	pkAdded, pkRemoved, pkCommon := partition(d.prev.PrimaryKeys, d.to.PrimaryKeys, d.ownerGone)
	for _, p := range pkCommon {
		switch {
		case !slices.Equal(p.From.Columns, p.To.Columns):
			pkRemoved = append(pkRemoved, p.From)
			pkAdded = append(pkAdded, p.To)
		case p.From.Name != p.To.Name:
			d.emit(&RenamePrimaryKey{From: p.From, To: p.To})
		}
	}
	for _, pk := range pkRemoved {
		d.emit(&DropPrimaryKey{PrimaryKey: pk})
	}
	for _, pk := range pkAdded {
		d.emit(&CreatePrimaryKey{PrimaryKey: pk})
	}

	uqAdded, uqRemoved, uqCommon := partition(d.prev.Uniques, d.to.Uniques, d.ownerGone)
	for _, p := range uqCommon {
		if p.From.NullsNotDistinct != p.To.NullsNotDistinct || !slices.Equal(p.From.Columns, p.To.Columns) {
			uqRemoved = append(uqRemoved, p.From)
			uqAdded = append(uqAdded, p.To)
		}
	}
	for _, u := range uqRemoved {
		d.emit(&DropUnique{Unique: u})
	}
	for _, u := range uqAdded {
		d.emit(&CreateUnique{Unique: u})
	}

	ckAdded, ckRemoved, ckCommon := partition(d.prev.Checks, d.to.Checks, d.ownerGone)
	for _, p := range ckCommon {
		if p.From.Expression != p.To.Expression {
			ckRemoved = append(ckRemoved, p.From)
			ckAdded = append(ckAdded, p.To)
		}
	}
	for _, c := range ckRemoved {
		d.emit(&DropCheck{Check: c})
	}
	for _, c := range ckAdded {
		d.emit(&CreateCheck{Check: c})
	}

	ixAdded, ixRemoved, ixCommon := partition(d.prev.Indexes, d.to.Indexes, d.ownerDropped)
	for _, p := range ixCommon {
		if !equalIndex(p.From, p.To) {
			ixRemoved = append(ixRemoved, p.From)
			ixAdded = append(ixAdded, p.To)
		}
	}
	for _, i := range ixRemoved {
		d.emit(&DropIndex{Index: i})
	}
	for _, i := range ixAdded {
		d.emit(&CreateIndex{Index: i})
	}
	return nil
}

func (d *differ) ownerDropped(k ddl.Key) bool {
	return d.dropped[k.Owner()]
}

// equalIndex ignores Concurrently, it only affects how the index is built.
func equalIndex(a, b *ddl.Index) bool {
	return a.Unique == b.Unique &&
		a.Method == b.Method &&
		a.Where == b.Where &&
		a.With == b.With &&
		slices.Equal(a.Columns, b.Columns)
}

// diffForeignKeys emits foreign keys of created tables as separate
// statements so table creation order never depends on them.
func (d *differ) diffForeignKeys() error {
	added, removed, common := partition(d.prev.ForeignKeys, d.to.ForeignKeys, d.ownerDropped)
	for _, p := range common {
		if !equalForeignKey(p.From, p.To) {
			removed = append(removed, p.From)
			added = append(added, p.To)
		}
	}
	for _, fk := range removed {
		d.emit(&DropForeignKey{ForeignKey: fk})
	}
	for _, fk := range added {
		d.emit(&CreateForeignKey{ForeignKey: fk})
	}
	return nil
}

func equalForeignKey(a, b *ddl.ForeignKey) bool {
	return a.ToSchema == b.ToSchema &&
		a.ToTable == b.ToTable &&
		a.OnUpdate == b.OnUpdate &&
		a.OnDelete == b.OnDelete &&
		slices.Equal(a.Columns, b.Columns) &&
		slices.Equal(a.ToColumns, b.ToColumns)
}
