package compile

import (
	"database/sql"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/testutil"
)

func sqliteUsers(idType string) ddl.RawTable {
	return ddl.RawTable{
		Name: "users",
		Columns: []ddl.RawColumn{
			{Name: "id", Type: idType, PrimaryKey: true},
			{Name: "name", Type: "text"},
		},
	}
}

func TestSQLiteRebuildOnPrimaryKeyTypeChange(t *testing.T) {
	from := ddl.Raw{Tables: []ddl.RawTable{sqliteUsers("integer")}}
	to := ddl.Raw{Tables: []ddl.RawTable{sqliteUsers("text")}}

	res := compileSQL(t, ddl.SQLite, from, to)
	want := []string{
		"CREATE TABLE `__new_users` (\n" +
			"    `id` text PRIMARY KEY NOT NULL,\n" +
			"    `name` text\n" +
			");",
		"INSERT INTO `__new_users`(`id`, `name`) SELECT `id`, `name` FROM `users`;",
		"DROP TABLE `users`;",
		"ALTER TABLE `__new_users` RENAME TO `users`;",
	}
	if diff := cmp.Diff(want, res.Statements); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}

	var kinds []WarningKind
	for _, w := range res.Warnings {
		kinds = append(kinds, w.Kind)
	}
	assert.ElementsMatch(t, []WarningKind{WarnTypeChange, WarnTableRebuild}, kinds)
}

func TestSQLiteRebuildWithForeignKeys(t *testing.T) {
	posts := ddl.RawTable{
		Name: "posts",
		Columns: []ddl.RawColumn{
			{Name: "id", Type: "integer", PrimaryKey: true},
			{Name: "author_id", Type: "integer"},
			{Name: "title", Type: "text"},
			{Name: "body", Type: "text"},
		},
		Indexes: []ddl.Index{{Columns: []ddl.IndexColumn{{Value: "title"}}}},
	}
	from := ddl.Raw{Tables: []ddl.RawTable{sqliteUsers("integer"), posts}}

	next := posts
	next.Columns = []ddl.RawColumn{
		{Name: "id", Type: "integer", PrimaryKey: true},
		{Name: "title", Type: "text", NotNull: true, Default: strptr("''")},
		{Name: "author_id", Type: "integer"},
	}
	next.ForeignKeys = []ddl.ForeignKey{{Columns: []string{"author_id"}, ToTable: "users", ToColumns: []string{"id"}, OnDelete: "cascade"}}
	to := ddl.Raw{Tables: []ddl.RawTable{sqliteUsers("integer"), next}}

	res := compileSQL(t, ddl.SQLite, from, to)
	want := []string{
		"PRAGMA foreign_keys=OFF;",
		"CREATE TABLE `__new_posts` (\n" +
			"    `id` integer PRIMARY KEY NOT NULL,\n" +
			"    `title` text DEFAULT '' NOT NULL,\n" +
			"    `author_id` integer,\n" +
			"    FOREIGN KEY (`author_id`) REFERENCES `users`(`id`) ON DELETE cascade\n" +
			");",
		"INSERT INTO `__new_posts`(`id`, `title`, `author_id`) SELECT `id`, `title`, `author_id` FROM `posts`;",
		"DROP TABLE `posts`;",
		"ALTER TABLE `__new_posts` RENAME TO `posts`;",
		"CREATE INDEX `posts_title_index` ON `posts` (`title`);",
		"PRAGMA foreign_keys=ON;",
	}
	if diff := cmp.Diff(want, res.Statements); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
	for _, s := range res.Steps {
		assert.Equal(t, stepRebuildTable, s.Kind)
		assert.Equal(t, "posts", s.Subject)
	}
}

func TestSQLiteAddColumnInPlace(t *testing.T) {
	from := ddl.Raw{Tables: []ddl.RawTable{sqliteUsers("integer")}}
	tbl := sqliteUsers("integer")
	tbl.Columns = append(tbl.Columns, ddl.RawColumn{Name: "age", Type: "integer", NotNull: true, Default: strptr("0")})
	to := ddl.Raw{Tables: []ddl.RawTable{tbl}}

	res := compileSQL(t, ddl.SQLite, from, to)
	assert.Equal(t, []string{"ALTER TABLE `users` ADD `age` integer DEFAULT 0 NOT NULL;"}, res.Statements)
}

func TestSQLiteCreateTableInlinesForeignKeys(t *testing.T) {
	to := ddl.Raw{Tables: []ddl.RawTable{
		sqliteUsers("integer"),
		{
			Name:        "posts",
			Columns:     []ddl.RawColumn{{Name: "author_id", Type: "integer"}},
			ForeignKeys: []ddl.ForeignKey{{Columns: []string{"author_id"}, ToTable: "users", ToColumns: []string{"id"}}},
		},
	}}
	res := compileSQL(t, ddl.SQLite, ddl.Raw{}, to)
	// users first, posts references it
	require.Len(t, res.Statements, 2)
	assert.Contains(t, res.Statements[1], "FOREIGN KEY (`author_id`) REFERENCES `users`(`id`)")
}

// TestSQLiteRebuildKeepsRows applies the generated SQL to a real database.
func TestSQLiteRebuildKeepsRows(t *testing.T) {
	db := testutil.SetupSQLite(t)

	empty := ddl.Raw{}
	v1 := ddl.Raw{Tables: []ddl.RawTable{{
		Name: "users",
		Columns: []ddl.RawColumn{
			{Name: "id", Type: "integer", PrimaryKey: true},
			{Name: "name", Type: "text"},
			{Name: "legacy", Type: "text"},
		},
	}}}
	v2 := ddl.Raw{Tables: []ddl.RawTable{{
		Name: "users",
		Columns: []ddl.RawColumn{
			{Name: "id", Type: "integer", PrimaryKey: true},
			{Name: "name", Type: "text", NotNull: true, Default: strptr("'anon'")},
			{Name: "email", Type: "text"},
		},
		Indexes: []ddl.Index{{Columns: []ddl.IndexColumn{{Value: "email"}}, Unique: true}},
	}}}

	apply := func(res *Result) {
		t.Helper()
		for _, stmt := range res.Statements {
			_, err := db.Exec(stmt)
			require.NoError(t, err, stmt)
		}
	}

	apply(compileSQL(t, ddl.SQLite, empty, v1))
	_, err := db.Exec("INSERT INTO users (id, name, legacy) VALUES (1, 'ada', 'x'), (2, 'linus', 'y')")
	require.NoError(t, err)

	apply(compileSQL(t, ddl.SQLite, v1, v2))

	rows, err := db.Query("SELECT id, name, email FROM users ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	type row struct {
		ID    int
		Name  string
		Email sql.NullString
	}
	var got []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.ID, &r.Name, &r.Email))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []row{{ID: 1, Name: "ada"}, {ID: 2, Name: "linus"}}, got)

	var idx int
	require.NoError(t, db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type = 'index' AND name = 'users_email_index'").Scan(&idx))
	assert.Equal(t, 1, idx)
}
