package diff

import (
	"slices"

	"github.com/ddlkit/ddlkit/internal/ddl"
)

func (d *differ) diffEnums() error {
	added, removed, common := partition(d.prev.Enums, d.to.Enums, nil)
	created, deleted, renamed, err := resolve(d, ddl.KindEnum, "", added, removed)
	if err != nil {
		return err
	}
	for _, p := range renamed {
		old := *p.From
		d.emit(&RenameEnum{From: &old, To: p.To})
		d.rename(ddl.KindEnum, old.Key(), p.To.Key())
		renameEnum(d.prev, old.Key(), p.To.Key())
		common = append(common, p)
	}
	for _, e := range created {
		d.emit(&CreateEnum{Enum: e})
	}
	for _, e := range deleted {
		d.emit(&DropEnum{Enum: e})
	}
	for _, p := range common {
		stmts, err := d.enumValues(p.From, p.To)
		if err != nil {
			return err
		}
		d.emit(stmts...)
	}
	return nil
}

// enumValues diffs the label lists of one enum. Labels may be inserted
// anywhere or renamed in place; removing or reordering labels would need
// dependent columns rebuilt and is refused.
func (d *differ) enumValues(from, to *ddl.Enum) ([]Statement, error) {
	if slices.Equal(from.Values, to.Values) {
		return nil, nil
	}

	if isSubsequence(from.Values, to.Values) {
		var stmts []Statement
		for i, v := range to.Values {
			if slices.Contains(from.Values, v) {
				continue
			}
			before := ""
			for _, next := range to.Values[i+1:] {
				if slices.Contains(from.Values, next) {
					before = next
					break
				}
			}
			stmts = append(stmts, &AddEnumValue{Enum: to, Value: v, Before: before})
		}
		return stmts, nil
	}

	if len(from.Values) == len(to.Values) && d.dialect.HasNativeEnumRename() {
		var stmts []Statement
		renamable := true
		for i := range from.Values {
			a, b := from.Values[i], to.Values[i]
			if a == b {
				continue
			}
			if slices.Contains(to.Values, a) || slices.Contains(from.Values, b) {
				renamable = false
				break
			}
			stmts = append(stmts, &RenameEnumValue{Enum: to, From: a, To: b})
		}
		if renamable {
			return stmts, nil
		}
	}

	return nil, &UnsupportedChangeError{
		Subject: to.Key(),
		Dialect: d.dialect,
		Reason:  "enum values were removed or reordered",
	}
}

// isSubsequence reports whether every element of sub appears in seq in the
// same relative order.
func isSubsequence(sub, seq []string) bool {
	i := 0
	for _, v := range seq {
		if i < len(sub) && sub[i] == v {
			i++
		}
	}
	return i == len(sub)
}
