package diff

import (
	"sort"
	"strings"

	"github.com/ddlkit/ddlkit/internal/ddl"
)

// phases orders statement kinds so every statement runs after the objects
// it needs exist and before the objects it needs are removed. Renames run
// early so later drops address objects by their new names.
var phases = map[StatementKind]int{
	KindCreateSchema: 0,
	KindRenameSchema: 0,

	KindCreateRole: 1,
	KindRenameRole: 1,
	KindAlterRole:  1,

	KindCreateEnum:      2,
	KindRenameEnum:      2,
	KindAddEnumValue:    2,
	KindRenameEnumValue: 2,

	KindCreateSequence: 3,
	KindRenameSequence: 3,
	KindAlterSequence:  3,

	KindRenameTable:      4,
	KindRenameColumn:     5,
	KindRenamePrimaryKey: 5,

	KindDropView:   6,
	KindDropPolicy: 6,

	KindDropForeignKey: 7,

	KindDropIndex:      8,
	KindDropUnique:     8,
	KindDropCheck:      8,
	KindDropPrimaryKey: 8,

	KindCreateTable: 9,
	KindAddColumn:   10,
	KindAlterColumn: 11,
	KindDropColumn:  12,
	KindDropTable:   13,

	KindCreatePrimaryKey: 14,
	KindCreateUnique:     14,
	KindCreateCheck:      14,
	KindCreateIndex:      14,

	KindCreateForeignKey: 15,

	KindEnableRLS:    16,
	KindDisableRLS:   16,
	KindCreatePolicy: 16,
	KindRenamePolicy: 16,
	KindAlterPolicy:  16,

	KindRenameView: 17,
	KindAlterView:  17,
	KindCreateView: 17,

	KindDropSequence: 18,
	KindDropEnum:     19,
	KindDropRole:     20,
	KindDropSchema:   21,
}

// Phase returns the ordering phase of a statement kind.
func Phase(k StatementKind) int {
	return phases[k]
}

// sequence sorts statements into phases, keeping emission order inside a
// phase, then orders created tables by foreign key dependencies, dropped
// tables in reverse, and created views by the views they select from.
func sequence(stmts []Statement, prev, to *ddl.Model) []Statement {
	out := make([]Statement, len(stmts))
	copy(out, stmts)
	sort.SliceStable(out, func(i, j int) bool {
		return phases[out[i].Kind()] < phases[out[j].Kind()]
	})

	reorder(out, KindCreateTable, func(keys []string) []string {
		return sortByDependency(keys, tableDeps(to))
	})
	reorder(out, KindDropTable, func(keys []string) []string {
		return reverseSlice(sortByDependency(keys, tableDeps(prev)))
	})
	reorder(out, KindCreateView, func(keys []string) []string {
		return sortByDependency(keys, viewDeps(to, keys))
	})
	return out
}

// reorder permutes the statements of one kind in place, keeping the slots
// they occupy.
func reorder(stmts []Statement, kind StatementKind, order func([]string) []string) {
	var slots []int
	byKey := map[string]Statement{}
	var keys []string
	for i, s := range stmts {
		if s.Kind() != kind {
			continue
		}
		k := s.Subject().Qualified()
		slots = append(slots, i)
		byKey[k] = s
		keys = append(keys, k)
	}
	if len(keys) <= 1 {
		return
	}
	for i, k := range order(keys) {
		stmts[slots[i]] = byKey[k]
	}
}

func tableDeps(m *ddl.Model) func(string) []string {
	deps := map[string][]string{}
	for _, fk := range m.ForeignKeys {
		owner := ddl.TableKey(fk.Schema, fk.Table).Qualified()
		target := ddl.TableKey(fk.ToSchema, fk.ToTable).Qualified()
		deps[owner] = append(deps[owner], target)
	}
	return func(k string) []string {
		out := deps[k]
		sort.Strings(out)
		return out
	}
}

// viewDeps treats a view as depending on every other view whose name
// appears in its definition.
func viewDeps(m *ddl.Model, keys []string) func(string) []string {
	byKey := map[string]*ddl.View{}
	for _, v := range m.Views {
		byKey[v.Key().Qualified()] = v
	}
	return func(k string) []string {
		v := byKey[k]
		if v == nil {
			return nil
		}
		def := strings.ToLower(v.Definition)
		var out []string
		for _, other := range keys {
			o := byKey[other]
			if o == nil || other == k {
				continue
			}
			if strings.Contains(def, strings.ToLower(o.Name)) {
				out = append(out, other)
			}
		}
		return out
	}
}
