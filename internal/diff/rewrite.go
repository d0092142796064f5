package diff

import (
	"slices"
	"strings"

	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/grammar"
)

// The functions below apply an accepted rename to the working copy of the
// "from" model so later kinds compare against post-rename identities.

// rekey applies mutate to every entity of a collection and moves the ones
// it changed to their new key. Old keys are removed before new ones are
// inserted so swaps cannot collide.
func rekey[T ddl.Entity](coll map[ddl.Key]T, mutate func(T) bool) {
	var moved []T
	for k, v := range coll {
		if mutate(v) {
			delete(coll, k)
			moved = append(moved, v)
		}
	}
	for _, v := range moved {
		coll[v.Key()] = v
	}
}

func renameSchema(m *ddl.Model, from, to string) {
	rekey(m.Schemas, func(s *ddl.Schema) bool {
		return swap(&s.Name, from, to)
	})
	rekey(m.Tables, func(t *ddl.Table) bool { return swap(&t.Schema, from, to) })
	rekey(m.Columns, func(c *ddl.Column) bool {
		swap(&c.TypeSchema, from, to)
		return swap(&c.Schema, from, to)
	})
	rekey(m.PrimaryKeys, func(p *ddl.PrimaryKey) bool { return swap(&p.Schema, from, to) })
	rekey(m.Uniques, func(u *ddl.Unique) bool { return swap(&u.Schema, from, to) })
	rekey(m.Checks, func(c *ddl.Check) bool { return swap(&c.Schema, from, to) })
	rekey(m.Indexes, func(i *ddl.Index) bool { return swap(&i.Schema, from, to) })
	rekey(m.ForeignKeys, func(f *ddl.ForeignKey) bool {
		swap(&f.ToSchema, from, to)
		return swap(&f.Schema, from, to)
	})
	rekey(m.Policies, func(p *ddl.Policy) bool { return swap(&p.Schema, from, to) })
	rekey(m.Enums, func(e *ddl.Enum) bool { return swap(&e.Schema, from, to) })
	rekey(m.Sequences, func(s *ddl.Sequence) bool { return swap(&s.Schema, from, to) })
	rekey(m.Views, func(v *ddl.View) bool { return swap(&v.Schema, from, to) })
}

func renameTable(m *ddl.Model, from, to ddl.Key) {
	rekey(m.Tables, func(t *ddl.Table) bool {
		if t.Key() != from {
			return false
		}
		t.Schema, t.Name = to.Schema, to.Name
		return true
	})
	owned := func(schema, table *string) bool {
		if *schema != from.Schema || *table != from.Name {
			return false
		}
		*schema, *table = to.Schema, to.Name
		return true
	}
	rekey(m.Columns, func(c *ddl.Column) bool { return owned(&c.Schema, &c.Table) })
	rekey(m.PrimaryKeys, func(p *ddl.PrimaryKey) bool { return owned(&p.Schema, &p.Table) })
	rekey(m.Uniques, func(u *ddl.Unique) bool { return owned(&u.Schema, &u.Table) })
	rekey(m.Checks, func(c *ddl.Check) bool { return owned(&c.Schema, &c.Table) })
	rekey(m.Indexes, func(i *ddl.Index) bool { return owned(&i.Schema, &i.Table) })
	rekey(m.Policies, func(p *ddl.Policy) bool { return owned(&p.Schema, &p.Table) })
	rekey(m.ForeignKeys, func(f *ddl.ForeignKey) bool {
		owned(&f.ToSchema, &f.ToTable)
		return owned(&f.Schema, &f.Table)
	})
}

func renameColumn(m *ddl.Model, table ddl.Key, from, to string) {
	rekey(m.Columns, func(c *ddl.Column) bool {
		if c.Schema != table.Schema || c.Table != table.Name || c.Name != from {
			return false
		}
		c.Name = to
		return true
	})
	inTable := func(schema, name string) bool { return schema == table.Schema && name == table.Name }
	for _, p := range m.PrimaryKeys {
		if inTable(p.Schema, p.Table) {
			replaceAll(p.Columns, from, to)
		}
	}
	for _, u := range m.Uniques {
		if inTable(u.Schema, u.Table) {
			replaceAll(u.Columns, from, to)
		}
	}
	for _, i := range m.Indexes {
		if !inTable(i.Schema, i.Table) {
			continue
		}
		for j := range i.Columns {
			if !i.Columns[j].IsExpression && i.Columns[j].Value == from {
				i.Columns[j].Value = to
			}
		}
	}
	for _, f := range m.ForeignKeys {
		if inTable(f.Schema, f.Table) {
			replaceAll(f.Columns, from, to)
		}
		if inTable(f.ToSchema, f.ToTable) {
			replaceAll(f.ToColumns, from, to)
		}
	}
}

func renameEnum(m *ddl.Model, from, to ddl.Key) {
	rekey(m.Enums, func(e *ddl.Enum) bool {
		if e.Key() != from {
			return false
		}
		e.Schema, e.Name = to.Schema, to.Name
		return true
	})
	for _, c := range m.Columns {
		if c.TypeSchema != from.Schema || grammar.StripArrayDimensions(c.Type) != from.Name {
			continue
		}
		c.TypeSchema = to.Schema
		c.Type = to.Name + strings.Repeat("[]", grammar.ArrayDimensions(c.Type))
	}
}

func renameSequence(m *ddl.Model, from, to ddl.Key) {
	rekey(m.Sequences, func(s *ddl.Sequence) bool {
		if s.Key() != from {
			return false
		}
		s.Schema, s.Name = to.Schema, to.Name
		return true
	})
}

func renameRole(m *ddl.Model, from, to string) {
	rekey(m.Roles, func(r *ddl.Role) bool { return swap(&r.Name, from, to) })
	for _, p := range m.Policies {
		if slices.Contains(p.To, from) {
			replaceAll(p.To, from, to)
			slices.Sort(p.To)
		}
	}
}

func renamePolicy(m *ddl.Model, from, to ddl.Key) {
	rekey(m.Policies, func(p *ddl.Policy) bool {
		if p.Key() != from {
			return false
		}
		p.Name = to.Name
		return true
	})
}

func renameView(m *ddl.Model, from, to ddl.Key) {
	rekey(m.Views, func(v *ddl.View) bool {
		if v.Key() != from {
			return false
		}
		v.Schema, v.Name = to.Schema, to.Name
		return true
	})
}

func swap(field *string, from, to string) bool {
	if *field != from {
		return false
	}
	*field = to
	return true
}

func replaceAll(values []string, from, to string) {
	for i, v := range values {
		if v == from {
			values[i] = to
		}
	}
}
