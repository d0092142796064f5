package diff

import (
	"slices"

	"github.com/ddlkit/ddlkit/internal/ddl"
)

// diffPolicies resolves policy renames per table. Changing the permissive
// mode or the command recreates the policy; roles and expressions are
// altered in place.
func (d *differ) diffPolicies() error {
	added, removed, common := partition(d.prev.Policies, d.to.Policies, d.ownerDropped)

	owners := map[ddl.Key]bool{}
	for _, p := range added {
		owners[p.Key().Owner()] = true
	}
	for _, p := range removed {
		owners[p.Key().Owner()] = true
	}
	keys := make([]ddl.Key, 0, len(owners))
	for k := range owners {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b ddl.Key) int {
		if a.Less(b) {
			return -1
		}
		if b.Less(a) {
			return 1
		}
		return 0
	})

	for _, owner := range keys {
		inOwner := func(p *ddl.Policy) bool { return p.Key().Owner() == owner }
		created, deleted, renamed, err := resolve(d, ddl.KindPolicy, owner.Qualified(),
			filter(added, inOwner), filter(removed, inOwner))
		if err != nil {
			return err
		}
		for _, p := range renamed {
			old := *p.From
			if old.As != p.To.As || old.For != p.To.For {
				d.emit(&DropPolicy{Policy: &old}, &CreatePolicy{Policy: p.To})
				continue
			}
			d.emit(&RenamePolicy{From: &old, To: p.To})
			d.rename(ddl.KindPolicy, old.Key(), p.To.Key())
			renamePolicy(d.prev, old.Key(), p.To.Key())
			common = append(common, p)
		}
		for _, p := range created {
			d.emit(&CreatePolicy{Policy: p})
		}
		for _, p := range deleted {
			d.emit(&DropPolicy{Policy: p})
		}
	}

	for _, p := range common {
		a, b := p.From, p.To
		switch {
		case a.As != b.As || a.For != b.For:
			d.emit(&DropPolicy{Policy: a}, &CreatePolicy{Policy: b})
		case !slices.Equal(a.To, b.To) || a.Using != b.Using || a.WithCheck != b.WithCheck:
			d.emit(&AlterPolicy{From: a, To: b})
		}
	}
	return nil
}

func filter[T any](in []T, keep func(T) bool) []T {
	var out []T
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
