package diff

import (
	"github.com/ddlkit/ddlkit/internal/ddl"
)

func (d *differ) diffTables() error {
	added, removed, common := partition(d.prev.Tables, d.to.Tables, nil)
	created, deleted, renamed, err := resolve(d, ddl.KindTable, "", added, removed)
	if err != nil {
		return err
	}
	for _, p := range renamed {
		old := *p.From
		d.emit(&RenameTable{From: &old, To: p.To})
		d.rename(ddl.KindTable, old.Key(), p.To.Key())
		renameTable(d.prev, old.Key(), p.To.Key())
		common = append(common, p)
	}
	for _, t := range created {
		d.created[t.Key()] = true
		d.emit(&CreateTable{
			Table:      t,
			Columns:    d.to.ColumnsOf(t.Schema, t.Name),
			PrimaryKey: d.to.PrimaryKeyOf(t.Schema, t.Name),
			Uniques:    d.to.UniquesOf(t.Schema, t.Name),
			Checks:     d.to.ChecksOf(t.Schema, t.Name),
		})
		if t.RLSEnabled {
			d.emit(&EnableRLS{Table: t})
		}
	}
	for _, t := range deleted {
		d.dropped[t.Key()] = true
		d.emit(&DropTable{Table: t})
	}
	for _, p := range common {
		switch {
		case p.To.RLSEnabled && !p.From.RLSEnabled:
			d.emit(&EnableRLS{Table: p.To})
		case !p.To.RLSEnabled && p.From.RLSEnabled:
			d.emit(&DisableRLS{Table: p.To})
		}
	}
	return nil
}

// diffColumns runs per table that exists on both sides, with the table's
// new identity as the resolver scope.
func (d *differ) diffColumns() error {
	for _, t := range ddl.Sorted(d.to.Tables) {
		k := t.Key()
		if d.created[k] || d.prev.Tables[k] == nil {
			continue
		}
		added, removed, common := partition(
			ownedMap(d.prev.Columns, k),
			ownedMap(d.to.Columns, k),
			nil,
		)
		created, deleted, renamed, err := resolve(d, ddl.KindColumn, k.Qualified(), added, removed)
		if err != nil {
			return err
		}
		for _, p := range renamed {
			old := p.From.Clone()
			d.emit(&RenameColumn{From: old, To: p.To})
			d.rename(ddl.KindColumn, old.Key(), p.To.Key())
			renameColumn(d.prev, k, old.Name, p.To.Name)
			common = append(common, p)
		}
		for _, c := range created {
			d.emit(&AddColumn{Column: c})
		}
		for _, c := range deleted {
			d.emit(&DropColumn{Column: c})
		}
		for _, p := range common {
			if changes := columnChanges(p.From, p.To); changes != 0 {
				d.emit(&AlterColumn{From: p.From, To: p.To, Changes: changes})
			}
		}
	}
	return nil
}

func ownedMap[T ddl.Entity](coll map[ddl.Key]T, owner ddl.Key) map[ddl.Key]T {
	out := map[ddl.Key]T{}
	for k, v := range coll {
		if k.Owner() == owner {
			out[k] = v
		}
	}
	return out
}

func columnChanges(a, b *ddl.Column) ColumnChange {
	var c ColumnChange
	if a.Type != b.Type || a.TypeSchema != b.TypeSchema {
		c |= ChangeType
	}
	if a.NotNull != b.NotNull {
		c |= ChangeNotNull
	}
	if !equalDefault(a.Default, b.Default) {
		c |= ChangeDefault
	}
	if !equalIdentity(a.Identity, b.Identity) {
		c |= ChangeIdentity
	}
	if !equalGenerated(a.Generated, b.Generated) {
		c |= ChangeGenerated
	}
	if a.AutoIncrement != b.AutoIncrement {
		c |= ChangeAutoIncrement
	}
	return c
}

func equalDefault(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalIdentity(a, b *ddl.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalGenerated(a, b *ddl.Generated) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
