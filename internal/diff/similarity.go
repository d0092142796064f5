package diff

import (
	"slices"
	"strings"

	"github.com/ddlkit/ddlkit/internal/ddl"
)

// similarity scores how likely removed entity a was renamed to added entity
// b, in [0,1]. It is advisory input for the resolver.
func similarity(from, to *ddl.Model, a, b ddl.Entity) float64 {
	switch a := a.(type) {
	case *ddl.Table:
		b := b.(*ddl.Table)
		return tableSimilarity(from.ColumnsOf(a.Schema, a.Name), to.ColumnsOf(b.Schema, b.Name))
	case *ddl.Column:
		return columnSimilarity(a, b.(*ddl.Column))
	case *ddl.Enum:
		return jaccard(a.Values, b.(*ddl.Enum).Values)
	case *ddl.Sequence:
		b := b.(*ddl.Sequence)
		if a.Start == b.Start && a.Increment == b.Increment && a.Min == b.Min && a.Max == b.Max {
			return 1
		}
		return 0.5
	case *ddl.View:
		b := b.(*ddl.View)
		if a.Materialized != b.Materialized {
			return 0
		}
		if a.Definition == b.Definition {
			return 1
		}
		return 0.3
	case *ddl.Policy:
		b := b.(*ddl.Policy)
		if a.Using == b.Using && a.WithCheck == b.WithCheck && a.For == b.For {
			return 1
		}
		return 0.3
	case *ddl.Schema:
		return jaccard(schemaTables(from, a.Name), schemaTables(to, b.(*ddl.Schema).Name))
	case *ddl.Role:
		b := b.(*ddl.Role)
		if a.CreateDB == b.CreateDB && a.CreateRole == b.CreateRole && a.Inherit == b.Inherit {
			return 1
		}
		return 0.5
	}
	return 0
}

// tableSimilarity weighs shared column names and the overlap of column
// types, so a table whose columns were also renamed still scores.
func tableSimilarity(a, b []*ddl.Column) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0.5
	}
	var an, bn, at, bt []string
	for _, c := range a {
		an = append(an, c.Name)
		at = append(at, c.Type)
	}
	for _, c := range b {
		bn = append(bn, c.Name)
		bt = append(bt, c.Type)
	}
	return 0.5*jaccard(an, bn) + 0.5*multisetOverlap(at, bt)
}

func columnSimilarity(a, b *ddl.Column) float64 {
	if typeCategory(a.Type) != typeCategory(b.Type) {
		return 0
	}
	score := 0.4
	if a.Type == b.Type {
		score += 0.3
	}
	if a.NotNull == b.NotNull {
		score += 0.15
	}
	if equalDefault(a.Default, b.Default) {
		score += 0.15
	}
	return score
}

// typeCategory groups types whose values convert without loss of meaning.
func typeCategory(t string) string {
	if strings.HasSuffix(t, "]") {
		return "array"
	}
	base := ddl.BaseType(t)
	switch {
	case strings.Contains(base, "int"), strings.Contains(base, "serial"),
		base == "numeric", base == "decimal", base == "real", strings.HasPrefix(base, "double"), base == "float":
		return "number"
	case strings.Contains(base, "char"), strings.HasSuffix(base, "text"), base == "citext":
		return "text"
	case strings.HasPrefix(base, "timestamp"), base == "date", strings.HasPrefix(base, "time"), base == "datetime", base == "interval":
		return "time"
	case strings.HasPrefix(base, "bool"):
		return "bool"
	case strings.HasPrefix(base, "json"):
		return "json"
	}
	return base
}

func schemaTables(m *ddl.Model, schema string) []string {
	var out []string
	for _, t := range ddl.Sorted(m.Tables) {
		if t.Schema == schema {
			out = append(out, t.Name)
		}
	}
	return out
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := map[string]int{}
	for _, v := range a {
		set[v] |= 1
	}
	for _, v := range b {
		set[v] |= 2
	}
	both := 0
	for _, m := range set {
		if m == 3 {
			both++
		}
	}
	return float64(both) / float64(len(set))
}

func multisetOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	rest := slices.Clone(b)
	shared := 0
	for _, v := range a {
		if i := slices.Index(rest, v); i >= 0 {
			shared++
			rest = slices.Delete(rest, i, i+1)
		}
	}
	return float64(shared) / float64(max(len(a), len(b)))
}
