package diff

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/mock/gomock"

	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/resolver"
	"github.com/ddlkit/ddlkit/internal/resolver/mocks"
)

func model(t *testing.T, raw *ddl.Raw) *ddl.Model {
	t.Helper()
	if raw.Dialect == "" {
		raw.Dialect = ddl.PostgreSQL
	}
	m, issues := ddl.Normalize(raw)
	if len(issues) != 0 {
		t.Fatalf("unexpected normalization issues: %v", issues)
	}
	return m
}

func strptr(s string) *string { return &s }

func usersTable(nameNotNull bool) ddl.RawTable {
	return ddl.RawTable{
		Name: "users",
		Columns: []ddl.RawColumn{
			{Name: "id", Type: "int", PrimaryKey: true},
			{Name: "name", Type: "text", NotNull: nameNotNull},
		},
	}
}

func kinds(stmts []Statement) []StatementKind {
	out := make([]StatementKind, len(stmts))
	for i, s := range stmts {
		out[i] = s.Kind()
	}
	return out
}

func mustDiff(t *testing.T, from, to *ddl.Model, r resolver.Resolver) *Plan {
	t.Helper()
	plan, err := Diff(context.Background(), from, to, r)
	if err != nil {
		t.Fatalf("Diff() error: %v", err)
	}
	return plan
}

func TestDiffSetNotNull(t *testing.T) {
	from := model(t, &ddl.Raw{Tables: []ddl.RawTable{usersTable(false)}})
	to := model(t, &ddl.Raw{Tables: []ddl.RawTable{usersTable(true)}})

	plan := mustDiff(t, from, to, nil)
	if len(plan.Statements) != 1 {
		t.Fatalf("got %d statements, want 1: %v", len(plan.Statements), kinds(plan.Statements))
	}
	alter, ok := plan.Statements[0].(*AlterColumn)
	if !ok {
		t.Fatalf("statement is %T, want *AlterColumn", plan.Statements[0])
	}
	if alter.Changes != ChangeNotNull {
		t.Errorf("Changes = %b, want only ChangeNotNull", alter.Changes)
	}
	want := ddl.Key{Kind: ddl.KindColumn, Schema: "public", Table: "users", Name: "name"}
	if alter.Subject() != want {
		t.Errorf("Subject() = %v, want %v", alter.Subject(), want)
	}
}

func richModel(t *testing.T) *ddl.Model {
	return model(t, &ddl.Raw{
		Roles:     []ddl.Role{{Name: "reader", Inherit: true}},
		Enums:     []ddl.Enum{{Name: "mood", Values: []string{"sad", "happy"}}},
		Sequences: []ddl.Sequence{{Schema: "billing", Name: "invoice_seq"}},
		Tables: []ddl.RawTable{
			{
				Name:       "users",
				RLSEnabled: true,
				Columns: []ddl.RawColumn{
					{Name: "id", Type: "serial", PrimaryKey: true},
					{Name: "email", Type: "varchar(255)", NotNull: true, Unique: true},
					{Name: "mood", Type: "mood", Default: strptr("'happy'::mood")},
				},
				Checks:   []ddl.Check{{Name: "email_check", Expression: "(email <> '')"}},
				Indexes:  []ddl.Index{{Name: "users_mood_idx", Columns: []ddl.IndexColumn{{Value: "mood", Desc: true}}, Where: "mood IS NOT NULL"}},
				Policies: []ddl.Policy{{Name: "read_own", To: []string{"reader"}, Using: "true"}},
			},
			{
				Schema: "billing",
				Name:   "invoices",
				Columns: []ddl.RawColumn{
					{Name: "id", Type: "bigint", Identity: &ddl.Identity{Type: ddl.IdentityAlways}},
					{Name: "user_id", Type: "integer", NotNull: true},
				},
				PrimaryKey:  &ddl.PrimaryKey{Columns: []string{"id"}},
				ForeignKeys: []ddl.ForeignKey{{Columns: []string{"user_id"}, ToTable: "users", ToColumns: []string{"id"}}},
			},
		},
		Views: []ddl.View{{Name: "happy_users", Definition: "select * from users where mood = 'happy'"}},
	})
}

func TestDiffIdempotent(t *testing.T) {
	m := richModel(t)
	ctrl := gomock.NewController(t)
	r := mocks.NewMockResolver(ctrl)
	r.EXPECT().Resolve(gomock.Any(), gomock.Any()).Times(0)

	plan := mustDiff(t, m, m, r)
	if !plan.Empty() {
		t.Errorf("diff(M, M) = %v, want no statements", kinds(plan.Statements))
	}
}

func TestDiffDefaultCastIsNotAChange(t *testing.T) {
	build := func(def string) *ddl.Model {
		return model(t, &ddl.Raw{Tables: []ddl.RawTable{{
			Name:    "t",
			Columns: []ddl.RawColumn{{Name: "a", Type: "text", Default: strptr(def)}},
		}}})
	}
	plan := mustDiff(t, build("'x'::text"), build("'x'"), nil)
	if !plan.Empty() {
		t.Errorf("got %v, want no statements", kinds(plan.Statements))
	}
}

func TestDiffDoesNotMutateInputs(t *testing.T) {
	from := richModel(t)
	fromCopy := from.Clone()
	to := model(t, &ddl.Raw{Tables: []ddl.RawTable{{
		Name:    "people",
		Columns: []ddl.RawColumn{{Name: "id", Type: "serial", PrimaryKey: true}},
	}}})
	toCopy := to.Clone()

	r, err := resolver.NewStatic("public.users->public.people")
	if err != nil {
		t.Fatal(err)
	}
	mustDiff(t, from, to, r)

	if diff := cmp.Diff(fromCopy, from); diff != "" {
		t.Errorf("from was modified (-before +after):\n%s", diff)
	}
	if diff := cmp.Diff(toCopy, to); diff != "" {
		t.Errorf("to was modified (-before +after):\n%s", diff)
	}
}

func TestDiffTableAndColumnRename(t *testing.T) {
	from := model(t, &ddl.Raw{Tables: []ddl.RawTable{{
		Name: "users",
		Columns: []ddl.RawColumn{
			{Name: "id", Type: "integer", PrimaryKey: true},
			{Name: "name", Type: "text"},
		},
		Indexes: []ddl.Index{{Name: "name_idx", Columns: []ddl.IndexColumn{{Value: "name"}}}},
	}}})
	to := model(t, &ddl.Raw{Tables: []ddl.RawTable{{
		Name: "people",
		Columns: []ddl.RawColumn{
			{Name: "id", Type: "integer", PrimaryKey: true},
			{Name: "full_name", Type: "text", NotNull: true},
		},
		Indexes: []ddl.Index{{Name: "name_idx", Columns: []ddl.IndexColumn{{Value: "full_name"}}}},
	}}})

	r, err := resolver.NewStatic("public.users->public.people", "public.people.name->public.people.full_name")
	if err != nil {
		t.Fatal(err)
	}
	plan := mustDiff(t, from, to, r)

	want := []StatementKind{
		KindRenameTable,
		KindRenameColumn,
		KindRenamePrimaryKey,
		KindAlterColumn,
	}
	if diff := cmp.Diff(want, kinds(plan.Statements)); diff != "" {
		t.Fatalf("statement kinds mismatch (-want +got):\n%s", diff)
	}

	rt := plan.Statements[0].(*RenameTable)
	if rt.From.Name != "users" || rt.To.Name != "people" {
		t.Errorf("RenameTable = %s -> %s", rt.From.Name, rt.To.Name)
	}
	rc := plan.Statements[1].(*RenameColumn)
	if rc.From.Table != "people" || rc.From.Name != "name" || rc.To.Name != "full_name" {
		t.Errorf("RenameColumn from %v to %v, want scoped to the new table", rc.From.Key(), rc.To.Key())
	}

	wantRenames := []AppliedRename{
		{Kind: ddl.KindTable, From: ddl.TableKey("public", "users"), To: ddl.TableKey("public", "people")},
		{
			Kind: ddl.KindColumn,
			From: ddl.Key{Kind: ddl.KindColumn, Schema: "public", Table: "people", Name: "name"},
			To:   ddl.Key{Kind: ddl.KindColumn, Schema: "public", Table: "people", Name: "full_name"},
		},
	}
	if diff := cmp.Diff(wantRenames, plan.Renames); diff != "" {
		t.Errorf("renames mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffResolverContract(t *testing.T) {
	from := model(t, &ddl.Raw{Tables: []ddl.RawTable{usersTable(false)}})
	to := model(t, &ddl.Raw{Tables: []ddl.RawTable{{
		Name:    "members",
		Columns: usersTable(false).Columns,
	}}})

	ctrl := gomock.NewController(t)
	r := mocks.NewMockResolver(ctrl)
	r.EXPECT().
		Resolve(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *resolver.Request) (*resolver.Result, error) {
			if req.Kind != ddl.KindTable {
				t.Errorf("request kind = %v, want table", req.Kind)
			}
			if len(req.Added) != 1 || req.Added[0].Name != "public.members" {
				t.Errorf("added = %v", req.Added)
			}
			if len(req.Removed) != 1 || req.Removed[0].Name != "public.users" {
				t.Errorf("removed = %v", req.Removed)
			}
			if len(req.Scores) != 1 || req.Scores[0].Value != 1 {
				t.Errorf("scores = %v, want one perfect score", req.Scores)
			}
			return &resolver.Result{Created: req.Added, Deleted: req.Removed}, nil
		}).
		Times(1)

	plan := mustDiff(t, from, to, r)
	want := []StatementKind{KindCreateTable, KindDropTable}
	if diff := cmp.Diff(want, kinds(plan.Statements)); diff != "" {
		t.Errorf("statement kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffRejectsInvalidResolution(t *testing.T) {
	from := model(t, &ddl.Raw{Tables: []ddl.RawTable{usersTable(false)}})
	to := model(t, &ddl.Raw{Tables: []ddl.RawTable{{Name: "members", Columns: usersTable(false).Columns}}})

	ctrl := gomock.NewController(t)
	r := mocks.NewMockResolver(ctrl)
	r.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(&resolver.Result{}, nil)

	if _, err := Diff(context.Background(), from, to, r); err == nil {
		t.Fatal("Diff() accepted a resolution that drops candidates")
	}
}

func TestDiffAmbiguousRenameIsFatal(t *testing.T) {
	from := model(t, &ddl.Raw{Tables: []ddl.RawTable{
		{Name: "a", Columns: []ddl.RawColumn{{Name: "id", Type: "integer"}}},
		{Name: "b", Columns: []ddl.RawColumn{{Name: "id", Type: "integer"}}},
	}})
	to := model(t, &ddl.Raw{Tables: []ddl.RawTable{
		{Name: "c", Columns: []ddl.RawColumn{{Name: "id", Type: "integer"}}},
	}})

	_, err := Diff(context.Background(), from, to, resolver.Threshold{Min: 0.5})
	var amb *resolver.AmbiguousRenameError
	if !errors.As(err, &amb) {
		t.Fatalf("Diff() error = %v, want *AmbiguousRenameError", err)
	}
}

func TestDiffEnums(t *testing.T) {
	enum := func(values ...string) *ddl.Model {
		return model(t, &ddl.Raw{Enums: []ddl.Enum{{Name: "mood", Values: values}}})
	}
	tests := []struct {
		name        string
		from, to    *ddl.Model
		dialect     ddl.Dialect
		want        []Statement
		unsupported bool
	}{
		{
			name: "append",
			from: enum("sad", "ok"),
			to:   enum("sad", "ok", "happy"),
			want: []Statement{&AddEnumValue{Value: "happy"}},
		},
		{
			name: "insert before existing",
			from: enum("sad", "happy"),
			to:   enum("sad", "ok", "happy"),
			want: []Statement{&AddEnumValue{Value: "ok", Before: "happy"}},
		},
		{
			name: "rename in place",
			from: enum("sad", "ok"),
			to:   enum("sad", "fine"),
			want: []Statement{&RenameEnumValue{From: "ok", To: "fine"}},
		},
		{
			name:        "remove",
			from:        enum("sad", "ok", "happy"),
			to:          enum("sad", "happy"),
			unsupported: true,
		},
		{
			name:        "reorder",
			from:        enum("sad", "happy"),
			to:          enum("happy", "sad"),
			unsupported: true,
		},
	}
	ignoreEnum := cmp.FilterPath(func(p cmp.Path) bool {
		return p.Last().String() == ".Enum"
	}, cmp.Ignore())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Diff(context.Background(), tt.from, tt.to, nil)
			if tt.unsupported {
				var uerr *UnsupportedChangeError
				if !errors.As(err, &uerr) {
					t.Fatalf("Diff() error = %v, want *UnsupportedChangeError", err)
				}
				if uerr.Subject.Kind != ddl.KindEnum {
					t.Errorf("Subject = %v", uerr.Subject)
				}
				return
			}
			if err != nil {
				t.Fatalf("Diff() error: %v", err)
			}
			if diff := cmp.Diff(tt.want, plan.Statements, ignoreEnum); diff != "" {
				t.Errorf("statements mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDiffIndexChangeIsDropAndCreate(t *testing.T) {
	build := func(desc bool) *ddl.Model {
		return model(t, &ddl.Raw{Tables: []ddl.RawTable{{
			Name:    "t",
			Columns: []ddl.RawColumn{{Name: "a", Type: "integer"}},
			Indexes: []ddl.Index{{Name: "t_a_idx", Columns: []ddl.IndexColumn{{Value: "a", Desc: desc}}}},
		}}})
	}
	plan := mustDiff(t, build(false), build(true), nil)
	want := []StatementKind{KindDropIndex, KindCreateIndex}
	if diff := cmp.Diff(want, kinds(plan.Statements)); diff != "" {
		t.Errorf("statement kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffCircularForeignKeys(t *testing.T) {
	from := model(t, &ddl.Raw{})
	to := model(t, &ddl.Raw{Tables: []ddl.RawTable{
		{
			Name:        "b",
			Columns:     []ddl.RawColumn{{Name: "id", Type: "integer", PrimaryKey: true}, {Name: "a_id", Type: "integer"}},
			ForeignKeys: []ddl.ForeignKey{{Columns: []string{"a_id"}, ToTable: "a", ToColumns: []string{"id"}}},
		},
		{
			Name:        "a",
			Columns:     []ddl.RawColumn{{Name: "id", Type: "integer", PrimaryKey: true}, {Name: "b_id", Type: "integer"}},
			ForeignKeys: []ddl.ForeignKey{{Columns: []string{"b_id"}, ToTable: "b", ToColumns: []string{"id"}}},
		},
		{
			Name:        "c",
			Columns:     []ddl.RawColumn{{Name: "a_id", Type: "integer"}},
			ForeignKeys: []ddl.ForeignKey{{Columns: []string{"a_id"}, ToTable: "a", ToColumns: []string{"id"}}},
		},
	}})

	plan := mustDiff(t, from, to, nil)
	want := []StatementKind{
		KindCreateTable, KindCreateTable, KindCreateTable,
		KindCreateForeignKey, KindCreateForeignKey, KindCreateForeignKey,
	}
	if diff := cmp.Diff(want, kinds(plan.Statements)); diff != "" {
		t.Fatalf("statement kinds mismatch (-want +got):\n%s", diff)
	}
	var order []string
	for _, s := range plan.Statements[:3] {
		order = append(order, s.Subject().Name)
	}
	// a and b form a cycle broken in insertion order; c depends on a
	if diff := cmp.Diff([]string{"a", "b", "c"}, order); diff != "" {
		t.Errorf("table order mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffDropOrder(t *testing.T) {
	from := model(t, &ddl.Raw{Tables: []ddl.RawTable{
		{Name: "parent", Columns: []ddl.RawColumn{{Name: "id", Type: "integer", PrimaryKey: true}}},
		{
			Name:        "child",
			Columns:     []ddl.RawColumn{{Name: "parent_id", Type: "integer"}},
			ForeignKeys: []ddl.ForeignKey{{Columns: []string{"parent_id"}, ToTable: "parent", ToColumns: []string{"id"}}},
		},
		{
			Name:        "keeper",
			Columns:     []ddl.RawColumn{{Name: "parent_id", Type: "integer"}},
			ForeignKeys: []ddl.ForeignKey{{Name: "keeper_fk", Columns: []string{"parent_id"}, ToTable: "parent", ToColumns: []string{"id"}}},
		},
	}})
	to := model(t, &ddl.Raw{Tables: []ddl.RawTable{
		{Name: "keeper", Columns: []ddl.RawColumn{{Name: "parent_id", Type: "integer"}}},
	}})

	plan := mustDiff(t, from, to, nil)
	var got []string
	for _, s := range plan.Statements {
		got = append(got, s.Kind().String()+" "+s.Subject().Qualified())
	}
	want := []string{
		"drop_foreign_key public.keeper.keeper_fk",
		"drop_table public.child",
		"drop_table public.parent",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffViews(t *testing.T) {
	build := func(views ...ddl.View) *ddl.Model {
		return model(t, &ddl.Raw{Views: views})
	}
	tests := []struct {
		name     string
		from, to *ddl.Model
		want     []StatementKind
	}{
		{
			name: "existing view is never created",
			from: build(),
			to:   build(ddl.View{Name: "legacy", Existing: true}),
		},
		{
			name: "existing view is never dropped",
			from: build(ddl.View{Name: "legacy", Existing: true}),
			to:   build(),
		},
		{
			name: "definition change recreates",
			from: build(ddl.View{Name: "v", Definition: "select 1"}),
			to:   build(ddl.View{Name: "v", Definition: "select 2"}),
			want: []StatementKind{KindDropView, KindCreateView},
		},
		{
			name: "materialized options alter",
			from: build(ddl.View{Name: "v", Definition: "select 1", Materialized: true}),
			to:   build(ddl.View{Name: "v", Definition: "select 1", Materialized: true, With: "fillfactor=70"}),
			want: []StatementKind{KindAlterView},
		},
		{
			name: "dependent views are created after their dependencies",
			from: build(),
			to: build(
				ddl.View{Name: "a_top", Definition: "select * from z_base"},
				ddl.View{Name: "z_base", Definition: "select 1"},
			),
			want: []StatementKind{KindCreateView, KindCreateView},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := mustDiff(t, tt.from, tt.to, nil)
			if diff := cmp.Diff(tt.want, kinds(plan.Statements), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("statement kinds mismatch (-want +got):\n%s", diff)
			}
			if tt.name == "dependent views are created after their dependencies" {
				if got := plan.Statements[0].Subject().Name; got != "z_base" {
					t.Errorf("first view = %s, want z_base", got)
				}
			}
		})
	}
}

func TestDiffDialectMismatch(t *testing.T) {
	_, err := Diff(context.Background(), ddl.NewModel(ddl.PostgreSQL), ddl.NewModel(ddl.MySQL), nil)
	if err == nil {
		t.Fatal("Diff() accepted models of different dialects")
	}
}
