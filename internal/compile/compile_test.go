package compile

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/diff"
	"github.com/ddlkit/ddlkit/internal/resolver"
)

func strptr(s string) *string { return &s }

func model(t *testing.T, d ddl.Dialect, raw ddl.Raw) *ddl.Model {
	t.Helper()
	raw.Dialect = d
	m, issues := ddl.Normalize(&raw)
	require.Empty(t, issues, "normalization issues")
	return m
}

func plan(t *testing.T, from, to *ddl.Model) *diff.Plan {
	t.Helper()
	p, err := diff.Diff(context.Background(), from, to, nil)
	require.NoError(t, err)
	return p
}

func compileSQL(t *testing.T, d ddl.Dialect, from, to ddl.Raw) *Result {
	t.Helper()
	res, err := Compile(plan(t, model(t, d, from), model(t, d, to)))
	require.NoError(t, err)
	return res
}

func users(nameType string, notNull bool, def *string) ddl.RawTable {
	return ddl.RawTable{
		Name: "users",
		Columns: []ddl.RawColumn{
			{Name: "id", Type: "integer", PrimaryKey: true},
			{Name: "name", Type: nameType, NotNull: notNull, Default: def},
		},
	}
}

func TestPostgres(t *testing.T) {
	tests := []struct {
		name     string
		dialect  ddl.Dialect
		from, to ddl.Raw
		want     []string
	}{
		{
			name: "create enum and table",
			to: ddl.Raw{
				Enums: []ddl.Enum{{Name: "mood", Values: []string{"sad", "happy"}}},
				Tables: []ddl.RawTable{{
					Name: "users",
					Columns: []ddl.RawColumn{
						{Name: "id", Type: "serial", PrimaryKey: true},
						{Name: "name", Type: "text", NotNull: true},
						{Name: "mood", Type: "mood", Default: strptr("'happy'")},
					},
				}},
			},
			want: []string{
				`CREATE TYPE "mood" AS ENUM('sad', 'happy');`,
				"CREATE TABLE \"users\" (\n" +
					"    \"id\" serial NOT NULL,\n" +
					"    \"name\" text NOT NULL,\n" +
					"    \"mood\" \"mood\" DEFAULT 'happy',\n" +
					"    CONSTRAINT \"users_pkey\" PRIMARY KEY(\"id\")\n" +
					");",
			},
		},
		{
			name: "set not null",
			from: ddl.Raw{Tables: []ddl.RawTable{users("text", false, nil)}},
			to:   ddl.Raw{Tables: []ddl.RawTable{users("text", true, nil)}},
			want: []string{`ALTER TABLE "users" ALTER COLUMN "name" SET NOT NULL;`},
		},
		{
			name: "one statement per clause",
			from: ddl.Raw{Tables: []ddl.RawTable{users("text", false, nil)}},
			to:   ddl.Raw{Tables: []ddl.RawTable{users("varchar(100)", true, strptr("'anon'"))}},
			want: []string{
				`ALTER TABLE "users" ALTER COLUMN "name" SET DATA TYPE character varying(100) USING "name"::character varying(100);`,
				`ALTER TABLE "users" ALTER COLUMN "name" SET DEFAULT 'anon';`,
				`ALTER TABLE "users" ALTER COLUMN "name" SET NOT NULL;`,
			},
		},
		{
			name: "type change drops the old default first",
			from: ddl.Raw{Tables: []ddl.RawTable{users("text", false, strptr("'a'"))}},
			to:   ddl.Raw{Tables: []ddl.RawTable{users("integer", false, strptr("0"))}},
			want: []string{
				`ALTER TABLE "users" ALTER COLUMN "name" DROP DEFAULT;`,
				`ALTER TABLE "users" ALTER COLUMN "name" SET DATA TYPE integer USING "name"::integer;`,
				`ALTER TABLE "users" ALTER COLUMN "name" SET DEFAULT 0;`,
			},
		},
		{
			name: "type change drops a removed default once",
			from: ddl.Raw{Tables: []ddl.RawTable{users("text", false, strptr("'a'"))}},
			to:   ddl.Raw{Tables: []ddl.RawTable{users("integer", false, nil)}},
			want: []string{
				`ALTER TABLE "users" ALTER COLUMN "name" DROP DEFAULT;`,
				`ALTER TABLE "users" ALTER COLUMN "name" SET DATA TYPE integer USING "name"::integer;`,
			},
		},
		{
			name: "table in another schema with a foreign key",
			from: ddl.Raw{Tables: []ddl.RawTable{users("text", false, nil)}},
			to: ddl.Raw{Tables: []ddl.RawTable{
				users("text", false, nil),
				{
					Schema: "auth",
					Name:   "sessions",
					Columns: []ddl.RawColumn{
						{Name: "id", Type: "integer", PrimaryKey: true},
						{Name: "user_id", Type: "integer", NotNull: true},
					},
					ForeignKeys: []ddl.ForeignKey{{
						Columns:   []string{"user_id"},
						ToTable:   "users",
						ToColumns: []string{"id"},
						OnDelete:  "CASCADE",
					}},
				},
			}},
			want: []string{
				`CREATE SCHEMA "auth";`,
				"CREATE TABLE \"auth\".\"sessions\" (\n" +
					"    \"id\" integer NOT NULL,\n" +
					"    \"user_id\" integer NOT NULL,\n" +
					"    CONSTRAINT \"sessions_pkey\" PRIMARY KEY(\"id\")\n" +
					");",
				`ALTER TABLE "auth"."sessions" ADD CONSTRAINT "sessions_user_id_users_id_fk" FOREIGN KEY ("user_id") REFERENCES "users"("id") ON DELETE cascade;`,
			},
		},
		{
			name: "descending index keeps non default nulls order",
			from: ddl.Raw{Tables: []ddl.RawTable{users("text", false, nil)}},
			to: ddl.Raw{Tables: []ddl.RawTable{func() ddl.RawTable {
				tbl := users("text", false, nil)
				tbl.Indexes = []ddl.Index{{Columns: []ddl.IndexColumn{{Value: "name", Desc: true, Nulls: "last"}}}}
				return tbl
			}()}},
			want: []string{`CREATE INDEX "users_name_index" ON "users" ("name" DESC NULLS LAST);`},
		},
		{
			name:    "cockroach drops indexes through the table",
			dialect: ddl.Cockroach,
			from: ddl.Raw{Tables: []ddl.RawTable{func() ddl.RawTable {
				tbl := users("text", false, nil)
				tbl.Indexes = []ddl.Index{{Columns: []ddl.IndexColumn{{Value: "name"}}}}
				return tbl
			}()}},
			to:   ddl.Raw{Tables: []ddl.RawTable{users("text", false, nil)}},
			want: []string{`DROP INDEX "users"@"users_name_index" CASCADE;`},
		},
		{
			name: "enum value inserted before an existing label",
			from: ddl.Raw{Enums: []ddl.Enum{{Name: "mood", Values: []string{"sad", "happy"}}}},
			to:   ddl.Raw{Enums: []ddl.Enum{{Name: "mood", Values: []string{"sad", "ok", "happy"}}}},
			want: []string{`ALTER TYPE "mood" ADD VALUE 'ok' BEFORE 'happy';`},
		},
		{
			name: "policy on a table with row level security",
			from: ddl.Raw{
				Roles:  []ddl.Role{{Name: "reader", Inherit: true}},
				Tables: []ddl.RawTable{users("text", false, nil)},
			},
			to: ddl.Raw{
				Roles: []ddl.Role{{Name: "reader", Inherit: true}},
				Tables: []ddl.RawTable{func() ddl.RawTable {
					tbl := users("text", false, nil)
					tbl.RLSEnabled = true
					tbl.Policies = []ddl.Policy{{Name: "read_all", For: "select", To: []string{"reader"}, Using: "true"}}
					return tbl
				}()},
			},
			want: []string{
				`ALTER TABLE "users" ENABLE ROW LEVEL SECURITY;`,
				`CREATE POLICY "read_all" ON "users" AS PERMISSIVE FOR SELECT TO "reader" USING (true);`,
			},
		},
		{
			name: "role options",
			to:   ddl.Raw{Roles: []ddl.Role{{Name: "admin", CreateDB: true}}},
			want: []string{`CREATE ROLE "admin" WITH CREATEDB NOINHERIT;`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.dialect
			if d == "" {
				d = ddl.PostgreSQL
			}
			res := compileSQL(t, d, tt.from, tt.to)
			if diff := cmp.Diff(tt.want, res.Statements); diff != "" {
				t.Errorf("statements mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPostgresPrimaryKeyFollowsTableRename(t *testing.T) {
	posts := func(target string) ddl.RawTable {
		return ddl.RawTable{
			Name: "posts",
			Columns: []ddl.RawColumn{
				{Name: "id", Type: "integer", PrimaryKey: true},
				{Name: "author_id", Type: "integer"},
			},
			ForeignKeys: []ddl.ForeignKey{{
				Name:      "posts_author_fk",
				Columns:   []string{"author_id"},
				ToTable:   target,
				ToColumns: []string{"id"},
			}},
		}
	}
	people := users("text", false, nil)
	people.Name = "people"
	from := model(t, ddl.PostgreSQL, ddl.Raw{Tables: []ddl.RawTable{users("text", false, nil), posts("users")}})
	to := model(t, ddl.PostgreSQL, ddl.Raw{Tables: []ddl.RawTable{people, posts("people")}})

	r, err := resolver.NewStatic("public.users->public.people")
	require.NoError(t, err)
	p, err := diff.Diff(context.Background(), from, to, r)
	require.NoError(t, err)
	res, err := Compile(p)
	require.NoError(t, err)

	want := []string{
		`ALTER TABLE "users" RENAME TO "people";`,
		`ALTER TABLE "people" RENAME CONSTRAINT "users_pkey" TO "people_pkey";`,
	}
	if diff := cmp.Diff(want, res.Statements); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
}

func TestMySQL(t *testing.T) {
	from := ddl.Raw{}
	to := ddl.Raw{Tables: []ddl.RawTable{{
		Name: "users",
		Columns: []ddl.RawColumn{
			{Name: "id", Type: "int", PrimaryKey: true, AutoIncrement: true},
			{Name: "name", Type: "varchar(255)", NotNull: true},
		},
	}}}
	res := compileSQL(t, ddl.MySQL, from, to)
	want := []string{
		"CREATE TABLE `users` (\n" +
			"    `id` int NOT NULL AUTO_INCREMENT,\n" +
			"    `name` varchar(255) NOT NULL,\n" +
			"    PRIMARY KEY(`id`)\n" +
			");",
	}
	if diff := cmp.Diff(want, res.Statements); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}

	next := to
	next.Tables = []ddl.RawTable{{
		Name: "users",
		Columns: []ddl.RawColumn{
			{Name: "id", Type: "int", PrimaryKey: true, AutoIncrement: true},
			{Name: "name", Type: "varchar(100)", Default: strptr("'anon'")},
		},
	}}
	res = compileSQL(t, ddl.MySQL, to, next)
	want = []string{"ALTER TABLE `users` MODIFY COLUMN `name` varchar(100) DEFAULT 'anon';"}
	if diff := cmp.Diff(want, res.Statements); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
}

func TestUnsupportedAbortsCompile(t *testing.T) {
	tests := []struct {
		name    string
		dialect ddl.Dialect
		stmt    diff.Statement
	}{
		{"mysql enum", ddl.MySQL, &diff.CreateEnum{Enum: &ddl.Enum{Name: "mood", Values: []string{"a"}}}},
		{"mysql policy", ddl.MySQL, &diff.CreatePolicy{Policy: &ddl.Policy{Table: "t", Name: "p"}}},
		{"sqlite enum value", ddl.SQLite, &diff.AddEnumValue{Enum: &ddl.Enum{Name: "mood"}, Value: "b"}},
		{"sqlite sequence", ddl.SQLite, &diff.CreateSequence{Sequence: &ddl.Sequence{Name: "s"}}},
		{"sqlite materialized view", ddl.SQLite, &diff.CreateView{View: &ddl.View{Name: "v", Materialized: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &diff.Plan{
				Dialect: tt.dialect,
				From:    ddl.NewModel(tt.dialect),
				To:      ddl.NewModel(tt.dialect),
				Prev:    ddl.NewModel(tt.dialect),
				Statements: []diff.Statement{
					&diff.CreateTable{Table: &ddl.Table{Name: "ok"}, Columns: []*ddl.Column{{Table: "ok", Name: "a", Type: "text"}}},
					tt.stmt,
				},
			}
			res, err := Compile(p)
			var uerr *diff.UnsupportedChangeError
			require.True(t, errors.As(err, &uerr), "error = %v", err)
			assert.Equal(t, tt.dialect, uerr.Dialect)
			assert.Nil(t, res)
		})
	}
}

func TestWarnings(t *testing.T) {
	from := ddl.Raw{Tables: []ddl.RawTable{
		users("text", false, nil),
		{Name: "logs", Columns: []ddl.RawColumn{{Name: "line", Type: "text"}}},
	}}
	to := ddl.Raw{Tables: []ddl.RawTable{{
		Name: "users",
		Columns: []ddl.RawColumn{
			{Name: "id", Type: "integer", PrimaryKey: true},
			{Name: "email", Type: "text", NotNull: true},
		},
	}}}

	res := compileSQL(t, ddl.PostgreSQL, from, to)
	var got []WarningKind
	for _, w := range res.Warnings {
		got = append(got, w.Kind)
	}
	assert.ElementsMatch(t, []WarningKind{WarnAddNotNull, WarnDropColumn, WarnDropTable}, got)
}

func TestJoinSplit(t *testing.T) {
	stmts := []string{`CREATE TABLE "a" ("id" integer);`, `DROP TABLE "b";`}

	body := Join(stmts, true)
	assert.Equal(t, "CREATE TABLE \"a\" (\"id\" integer);\n--> statement-breakpoint\nDROP TABLE \"b\";\n", body)
	assert.Equal(t, stmts, Split(body))

	assert.Equal(t, "CREATE TABLE \"a\" (\"id\" integer);\nDROP TABLE \"b\";\n", Join(stmts, false))
	assert.Empty(t, Join(nil, true))
}

func TestForUnknownDialect(t *testing.T) {
	_, err := For("oracle")
	assert.Error(t, err)
}

func TestDialectMismatch(t *testing.T) {
	c, err := For(ddl.MySQL)
	require.NoError(t, err)
	_, err = c.Compile(&diff.Plan{Dialect: ddl.SQLite})
	assert.Error(t, err)
}
