package diff

import (
	"github.com/ddlkit/ddlkit/internal/ddl"
)

// diffViews never creates or drops existing views, they are owned outside
// the managed schema.
func (d *differ) diffViews() error {
	added, removed, common := partition(d.prev.Views, d.to.Views, nil)
	created, deleted, renamed, err := resolve(d, ddl.KindView, "", added, removed)
	if err != nil {
		return err
	}
	for _, p := range renamed {
		old := *p.From
		if !old.Existing && !p.To.Existing && (old.Definition != p.To.Definition || old.Materialized != p.To.Materialized) {
			d.emit(&DropView{View: &old}, &CreateView{View: p.To})
			continue
		}
		if !old.Existing || !p.To.Existing {
			d.emit(&RenameView{From: &old, To: p.To})
		}
		d.rename(ddl.KindView, old.Key(), p.To.Key())
		renameView(d.prev, old.Key(), p.To.Key())
		common = append(common, p)
	}
	for _, v := range created {
		if !v.Existing {
			d.emit(&CreateView{View: v})
		}
	}
	for _, v := range deleted {
		if !v.Existing {
			d.emit(&DropView{View: v})
		}
	}
	for _, p := range common {
		a, b := p.From, p.To
		if a.Existing || b.Existing {
			continue
		}
		switch {
		case a.Definition != b.Definition || a.Materialized != b.Materialized:
			d.emit(&DropView{View: a}, &CreateView{View: b})
		case a.With != b.With:
			d.emit(&AlterView{From: a, To: b})
		}
	}
	return nil
}
