package ddl

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestModelAddDuplicate(t *testing.T) {
	m := NewModel(PostgreSQL)
	if err := m.Add(&Table{Schema: "public", Name: "users"}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if err := m.Add(&Table{Schema: "public", Name: "users"}); err == nil {
		t.Fatal("Add() accepted a duplicate table")
	}
	if err := m.Add(&Table{Schema: "auth", Name: "users"}); err != nil {
		t.Fatalf("Add() rejected a table in another schema: %v", err)
	}
}

func TestModelCloneIsDeep(t *testing.T) {
	def := "'x'"
	m := NewModel(PostgreSQL)
	mustAdd(t, m,
		&Table{Schema: "public", Name: "users"},
		&Column{Schema: "public", Table: "users", Name: "name", Type: "text", Default: &def},
		&Enum{Schema: "public", Name: "mood", Values: []string{"a", "b"}},
		&Index{Schema: "public", Table: "users", Name: "users_name_index", Columns: []IndexColumn{{Value: "name"}}},
	)

	c := m.Clone()
	if diff := cmp.Diff(m, c); diff != "" {
		t.Fatalf("clone differs (-orig +clone):\n%s", diff)
	}

	col := c.Columns[Key{Kind: KindColumn, Schema: "public", Table: "users", Name: "name"}]
	*col.Default = "'y'"
	c.Enum("public", "mood").Values[0] = "z"
	c.IndexesOf("public", "users")[0].Columns[0].Desc = true

	if def != "'x'" {
		t.Error("clone shares column default with original")
	}
	if m.Enum("public", "mood").Values[0] != "a" {
		t.Error("clone shares enum values with original")
	}
	if m.IndexesOf("public", "users")[0].Columns[0].Desc {
		t.Error("clone shares index columns with original")
	}
}

func TestModelAccessorsAreSorted(t *testing.T) {
	m := NewModel(SQLite)
	mustAdd(t, m,
		&Table{Name: "t"},
		&Column{Table: "t", Name: "b", Position: 0},
		&Column{Table: "t", Name: "a", Position: 1},
		&Index{Table: "t", Name: "z"},
		&Index{Table: "t", Name: "y"},
		&Index{Table: "other", Name: "x"},
	)

	var cols []string
	for _, c := range m.ColumnsOf("", "t") {
		cols = append(cols, c.Name)
	}
	if diff := cmp.Diff([]string{"b", "a"}, cols); diff != "" {
		t.Errorf("ColumnsOf order mismatch (-want +got):\n%s", diff)
	}

	var idx []string
	for _, i := range m.IndexesOf("", "t") {
		idx = append(idx, i.Name)
	}
	if diff := cmp.Diff([]string{"y", "z"}, idx); diff != "" {
		t.Errorf("IndexesOf order mismatch (-want +got):\n%s", diff)
	}
	if got := m.Len(); got != 6 {
		t.Errorf("Len() = %d, want 6", got)
	}
}

func TestKeyQualified(t *testing.T) {
	tests := []struct {
		key  Key
		want string
	}{
		{TableKey("public", "users"), "public.users"},
		{Key{Kind: KindColumn, Schema: "public", Table: "users", Name: "id"}, "public.users.id"},
		{Key{Kind: KindColumn, Table: "users", Name: "id"}, "users.id"},
		{RoleKey("admin"), "admin"},
	}
	for _, tt := range tests {
		if got := tt.key.Qualified(); got != tt.want {
			t.Errorf("%#v.Qualified() = %q, want %q", tt.key, got, tt.want)
		}
	}
	if got := TableKey("public", "users").String(); got != "table public.users" {
		t.Errorf("String() = %q", got)
	}
}

func mustAdd(t *testing.T, m *Model, entities ...Entity) {
	t.Helper()
	for _, e := range entities {
		if err := m.Add(e); err != nil {
			t.Fatalf("Add(%v) error: %v", e.Key(), err)
		}
	}
}
