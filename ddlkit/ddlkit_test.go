package ddlkit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddlkit/ddlkit/internal/compile"
	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/grammar"
	"github.com/ddlkit/ddlkit/internal/journal"
	"github.com/ddlkit/ddlkit/internal/snapshot"
	"github.com/ddlkit/ddlkit/testutil"
)

const usersSQL = `
CREATE TABLE users (
    id serial PRIMARY KEY,
    name text NOT NULL
);
`

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func generate(t *testing.T, fs afero.Fs, opts GenerateOptions) *GenerateResult {
	t.Helper()
	opts.Fs = fs
	opts.Dialect = ddl.PostgreSQL
	opts.Schema = "schema.sql"
	opts.Breakpoints = true
	res, err := Generate(context.Background(), opts)
	require.NoError(t, err)
	return res
}

func TestGenerate(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "schema.sql", usersSQL)

	first := generate(t, fs, GenerateOptions{Name: "init"})
	require.NotNil(t, first.Entry)
	assert.Equal(t, "0000_init", first.Entry.Tag)
	assert.Equal(t, "drizzle/0000_init.sql", first.Path)
	body, err := afero.ReadFile(fs, first.Path)
	require.NoError(t, err)
	assert.Contains(t, string(body), `CREATE TABLE "users"`)
	assert.Empty(t, first.Warnings)

	t.Run("no changes", func(t *testing.T) {
		res := generate(t, fs, GenerateOptions{Name: "noop"})
		assert.Nil(t, res.Entry)
		assert.True(t, res.Plan.Empty())
	})

	t.Run("added column", func(t *testing.T) {
		writeFile(t, fs, "schema.sql", strings.Replace(usersSQL, "name text NOT NULL", "name text NOT NULL,\n    bio text", 1))
		res := generate(t, fs, GenerateOptions{Name: "bio"})
		require.NotNil(t, res.Entry)
		assert.Equal(t, "0001_bio", res.Entry.Tag)
		require.Len(t, res.Statements, 1)
		assert.Contains(t, res.Statements[0], `ADD COLUMN "bio" text`)
	})

	t.Run("rename with static resolver", func(t *testing.T) {
		writeFile(t, fs, "schema.sql", strings.Replace(usersSQL, "name text NOT NULL", "full_name text NOT NULL,\n    bio text", 1))
		r, err := StaticRenames("public.users.name->public.users.full_name")
		require.NoError(t, err)
		res := generate(t, fs, GenerateOptions{Name: "rename", Resolver: r})
		require.NotNil(t, res.Entry)
		require.Len(t, res.Statements, 1)
		assert.Contains(t, res.Statements[0], `RENAME COLUMN "name" TO "full_name"`)

		latest, err := journal.NewFolder(fs, DefaultOut, ddl.PostgreSQL).LatestSnapshot()
		require.NoError(t, err)
		assert.Equal(t, "public.users.full_name", latest.Meta.Columns["public.users.name"])
	})

	t.Run("destructive change warns", func(t *testing.T) {
		writeFile(t, fs, "schema.sql", strings.Replace(usersSQL, "name text NOT NULL", "full_name text NOT NULL", 1))
		res := generate(t, fs, GenerateOptions{Name: "drop_bio"})
		require.Len(t, res.Warnings, 1)
		assert.Equal(t, compile.WarnDropColumn, res.Warnings[0].Kind)
	})

	problems, err := Check(context.Background(), FolderOptions{Fs: fs})
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestGenerateCustom(t *testing.T) {
	fs := afero.NewMemMapFs()
	res, err := Generate(context.Background(), GenerateOptions{
		FolderOptions: FolderOptions{Fs: fs, Dialect: ddl.SQLite},
		Name:          "seed",
		Custom:        true,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Entry)
	body, err := afero.ReadFile(fs, res.Path)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestGenerateErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "schema.sql", usersSQL)

	tests := []struct {
		name string
		opts GenerateOptions
		want string
	}{
		{"no dialect", GenerateOptions{Schema: "schema.sql"}, "dialect is required"},
		{"no schema", GenerateOptions{FolderOptions: FolderOptions{Dialect: ddl.PostgreSQL}}, "schema path is required"},
		{"missing schema", GenerateOptions{FolderOptions: FolderOptions{Dialect: ddl.PostgreSQL}, Schema: "nope.sql"}, "failed to read schema"},
		{"sql for sqlite", GenerateOptions{FolderOptions: FolderOptions{Dialect: ddl.SQLite}, Schema: "schema.sql"}, "only supported for postgresql"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Fs = fs
			_, err := Generate(context.Background(), tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// breakDefault rewrites the 'x' default of a snapshot into an unterminated
// literal.
func breakDefault(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	broken := strings.Replace(string(data), `"'x'"`, `"'x"`, 1)
	require.NotEqual(t, string(data), broken)
	writeFile(t, fs, path, broken)
}

func TestGenerateRejectsMalformedSQL(t *testing.T) {
	fs := afero.NewMemMapFs()
	schema := writeSnapshot(t, fs, "schema.json", &ddl.Raw{Dialect: ddl.PostgreSQL, Tables: []ddl.RawTable{{
		Name: "users",
		Columns: []ddl.RawColumn{
			{Name: "id", Type: "integer", PrimaryKey: true},
			{Name: "name", Type: "text", Default: strptr("'x'")},
		},
	}}})
	opts := GenerateOptions{FolderOptions: FolderOptions{Fs: fs, Dialect: ddl.PostgreSQL}, Schema: schema}

	opts.Name = "init"
	_, err := Generate(context.Background(), opts)
	require.NoError(t, err)

	breakDefault(t, fs, schema)
	opts.Name = "bad"
	res, err := Generate(context.Background(), opts)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, grammar.ErrInvalid)
	assert.Contains(t, err.Error(), "public.users.name")

	ok, err := afero.Exists(fs, "drizzle/0001_bad.sql")
	require.NoError(t, err)
	assert.False(t, ok, "no migration may be written for a malformed schema")
}

func TestLoadSchemaDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "schema/01_types.sql", "CREATE TYPE mood AS ENUM ('sad', 'happy');")
	writeFile(t, fs, "schema/02_tables.sql", "CREATE TABLE people (id bigint PRIMARY KEY, feeling mood);")
	writeFile(t, fs, "schema/README.md", "not sql")

	m, issues, err := LoadSchema(fs, "schema", ddl.PostgreSQL, "")
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.NotNil(t, m.Enum("public", "mood"))
	col := m.Columns[ddl.Key{Kind: ddl.KindColumn, Schema: "public", Table: "people", Name: "feeling"}]
	require.NotNil(t, col)
	assert.Equal(t, "public", col.TypeSchema)
}

func TestDrop(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "schema.sql", usersSQL)
	generate(t, fs, GenerateOptions{Name: "init"})

	entry, err := Drop(context.Background(), FolderOptions{Fs: fs}, "")
	require.NoError(t, err)
	assert.Equal(t, "0000_init", entry.Tag)

	_, err = Drop(context.Background(), FolderOptions{Fs: fs}, "")
	assert.True(t, errors.Is(err, journal.ErrEmpty))
}

func TestCheckMissingFolder(t *testing.T) {
	_, err := Check(context.Background(), FolderOptions{Fs: afero.NewMemMapFs()})
	assert.Error(t, err)
}

// writeSnapshot writes a snapshot of raw to path and returns the path.
func writeSnapshot(t *testing.T, fs afero.Fs, path string, raw *ddl.Raw) string {
	t.Helper()
	m, issues := ddl.Normalize(raw)
	require.Empty(t, issues)
	data, err := snapshot.Encode(snapshot.New(m, snapshot.OriginID))
	require.NoError(t, err)
	writeFile(t, fs, path, string(data))
	return path
}

func blogTables() []ddl.RawTable {
	return []ddl.RawTable{
		{
			Name: "users",
			Columns: []ddl.RawColumn{
				{Name: "id", Type: "integer", PrimaryKey: true, AutoIncrement: true},
				{Name: "name", Type: "text", NotNull: true},
			},
		},
		{
			Name: "posts",
			Columns: []ddl.RawColumn{
				{Name: "id", Type: "integer", PrimaryKey: true},
				{Name: "author_id", Type: "integer", NotNull: true},
				{Name: "title", Type: "text"},
			},
			ForeignKeys: []ddl.ForeignKey{{Columns: []string{"author_id"}, ToTable: "users", ToColumns: []string{"id"}}},
		},
	}
}

func TestPushSQLite(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupSQLite(t)

	fs := afero.NewMemMapFs()
	schema := writeSnapshot(t, fs, "blog.json", &ddl.Raw{Dialect: ddl.SQLite, Tables: blogTables()})
	opts := PushOptions{Fs: fs, Dialect: ddl.SQLite, DB: db, Schema: schema}

	dry := opts
	dry.DryRun = true
	res, err := Push(ctx, dry)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.NotEmpty(t, res.Statements)

	res, err = Push(ctx, opts)
	require.NoError(t, err)
	assert.True(t, res.Applied)

	res, err = Push(ctx, opts)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.True(t, res.Plan.Empty(), "second push should find no changes")

	records, err := journal.NewTracker(db, ddl.SQLite, "", "").Applied(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	t.Run("declined confirmation", func(t *testing.T) {
		tables := blogTables()[:1]
		schema := writeSnapshot(t, fs, "users.json", &ddl.Raw{Dialect: ddl.SQLite, Tables: tables})
		var asked []compile.Warning
		declined := opts
		declined.Schema = schema
		declined.Confirm = func(w []compile.Warning, _ []string) (bool, error) {
			asked = w
			return false, nil
		}
		_, err := Push(ctx, declined)
		assert.ErrorIs(t, err, ErrAborted)
		require.NotEmpty(t, asked)
		assert.Equal(t, compile.WarnDropTable, asked[0].Kind)

		var n int
		require.NoError(t, db.QueryRow("SELECT count(*) FROM sqlite_master WHERE name = 'posts'").Scan(&n))
		assert.Equal(t, 1, n)
	})

	t.Run("strict confirms without warnings", func(t *testing.T) {
		tables := blogTables()
		tables[0].Columns = append(tables[0].Columns, ddl.RawColumn{Name: "bio", Type: "text"})
		schema := writeSnapshot(t, fs, "bio.json", &ddl.Raw{Dialect: ddl.SQLite, Tables: tables})
		var calls int
		strict := opts
		strict.Schema = schema
		strict.Strict = true
		strict.Confirm = func(w []compile.Warning, stmts []string) (bool, error) {
			calls++
			assert.Empty(t, w)
			assert.Len(t, stmts, 1)
			return false, nil
		}
		_, err := Push(ctx, strict)
		assert.ErrorIs(t, err, ErrAborted)
		assert.Equal(t, 1, calls)
	})

	t.Run("malformed default", func(t *testing.T) {
		tables := blogTables()
		tables[1].Columns[2].Default = strptr("'x'")
		schema := writeSnapshot(t, fs, "broken.json", &ddl.Raw{Dialect: ddl.SQLite, Tables: tables})
		breakDefault(t, fs, schema)
		broken := opts
		broken.Schema = schema
		_, err := Push(ctx, broken)
		assert.ErrorIs(t, err, grammar.ErrInvalid)

		var n int
		require.NoError(t, db.QueryRow("SELECT count(*) FROM pragma_table_info('posts') WHERE name = 'title'").Scan(&n))
		assert.Equal(t, 1, n)
	})

	t.Run("rebuild", func(t *testing.T) {
		tables := blogTables()
		tables[1].Columns[2].NotNull = true
		tables[1].Columns[2].Default = strptr("'untitled'")
		schema := writeSnapshot(t, fs, "rebuild.json", &ddl.Raw{Dialect: ddl.SQLite, Tables: tables})
		rebuild := opts
		rebuild.Schema = schema
		res, err := Push(ctx, rebuild)
		require.NoError(t, err)
		assert.True(t, res.Applied)

		var fk int
		require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
		assert.Equal(t, 1, fk)
	})
}

func TestPushSchemas(t *testing.T) {
	m, issues := ddl.Normalize(&ddl.Raw{
		Dialect: ddl.PostgreSQL,
		Schemas: []string{"billing", "auth"},
	})
	require.Empty(t, issues)
	assert.Equal(t, []string{"public", "auth", "billing"}, pushSchemas(m, nil))
	assert.Equal(t, []string{"app"}, pushSchemas(m, []string{"app"}))

	sqlite := ddl.NewModel(ddl.SQLite)
	assert.Nil(t, pushSchemas(sqlite, nil))
}

func strptr(s string) *string { return &s }
