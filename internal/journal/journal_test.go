package journal

import (
	"context"
	"database/sql"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/snapshot"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func newFolder(fs afero.Fs) *Folder {
	f := NewFolder(fs, "drizzle", ddl.SQLite)
	f.Now = func() time.Time { return fixedNow }
	f.Rand = rand.New(rand.NewPCG(1, 2))
	return f
}

// appendNext appends a migration whose snapshot descends from the latest.
func appendNext(t *testing.T, f *Folder, name string) (*Entry, *snapshot.Snapshot) {
	t.Helper()
	prev, err := f.LatestSnapshot()
	require.NoError(t, err)
	snap := snapshot.New(ddl.NewModel(ddl.SQLite), prev.ID)
	e, err := f.Append(name, "CREATE TABLE `t` (`id` integer);\n", snap)
	require.NoError(t, err)
	return e, snap
}

func TestAppendWritesLayout(t *testing.T) {
	fs := afero.NewMemMapFs()
	f := newFolder(fs)

	e, snap := appendNext(t, f, "init")
	assert.Equal(t, "0000_init", e.Tag)
	assert.Equal(t, fixedNow.UnixMilli(), e.When)
	assert.True(t, e.Breakpoints)

	for _, p := range []string{"drizzle/0000_init.sql", "drizzle/meta/0000_snapshot.json", "drizzle/meta/_journal.json"} {
		ok, err := afero.Exists(fs, p)
		require.NoError(t, err)
		assert.True(t, ok, p)
	}

	latest, err := f.LatestSnapshot()
	require.NoError(t, err)
	assert.Equal(t, snap.ID, latest.ID)
	assert.Equal(t, snapshot.OriginID, latest.PrevID)

	e2, _ := appendNext(t, f, "Add users!")
	assert.Equal(t, "0001_add_users", e2.Tag)

	j, err := f.Load()
	require.NoError(t, err)
	require.Len(t, j.Entries, 2)
	assert.Equal(t, ddl.SQLite, j.Dialect)
}

func TestLatestSnapshotOfEmptyFolder(t *testing.T) {
	s, err := newFolder(afero.NewMemMapFs()).LatestSnapshot()
	require.NoError(t, err)
	assert.True(t, s.IsOrigin())
	assert.Equal(t, ddl.SQLite, s.Dialect)
}

func TestAppendLeavesNoPartialFiles(t *testing.T) {
	base := afero.NewMemMapFs()
	f := newFolder(base)
	appendNext(t, f, "init")

	// the journal write fails on a read-only view
	ro := newFolder(afero.NewReadOnlyFs(base))
	_, err := ro.Append("second", "SELECT 1;", snapshot.New(ddl.NewModel(ddl.SQLite), "x"))
	require.Error(t, err)

	// a journal write failure after the data files were written
	failing := newFolder(&failOnJournal{Fs: base})
	_, err = failing.Append("second", "SELECT 1;", snapshot.New(ddl.NewModel(ddl.SQLite), "x"))
	require.Error(t, err)

	for _, p := range []string{"drizzle/0001_second.sql", "drizzle/meta/0001_snapshot.json"} {
		ok, _ := afero.Exists(base, p)
		assert.False(t, ok, p)
	}
	j, err := f.Load()
	require.NoError(t, err)
	assert.Len(t, j.Entries, 1)
}

type failOnJournal struct {
	afero.Fs
}

func (f *failOnJournal) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if filepath.Base(name) == journalFile && flag&os.O_WRONLY != 0 {
		return nil, errors.New("disk full")
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func TestDrop(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := newFolder(afero.NewMemMapFs()).Drop("")
		assert.ErrorIs(t, err, ErrEmpty)
	})

	t.Run("latest", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		f := newFolder(fs)
		first, snap := appendNext(t, f, "init")
		appendNext(t, f, "second")

		dropped, err := f.Drop("")
		require.NoError(t, err)
		assert.Equal(t, "0001_second", dropped.Tag)

		ok, _ := afero.Exists(fs, "drizzle/0001_second.sql")
		assert.False(t, ok)
		latest, err := f.LatestSnapshot()
		require.NoError(t, err)
		assert.Equal(t, snap.ID, latest.ID)

		// the next migration reuses the freed index
		next, _ := appendNext(t, f, "again")
		assert.Equal(t, first.Idx+1, next.Idx)
	})

	t.Run("referenced", func(t *testing.T) {
		f := newFolder(afero.NewMemMapFs())
		appendNext(t, f, "init")
		appendNext(t, f, "second")

		_, err := f.Drop("0000_init")
		assert.ErrorIs(t, err, ErrReferenced)
	})

	t.Run("unknown tag", func(t *testing.T) {
		f := newFolder(afero.NewMemMapFs())
		appendNext(t, f, "init")
		_, err := f.Drop("nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCheck(t *testing.T) {
	t.Run("clean", func(t *testing.T) {
		f := newFolder(afero.NewMemMapFs())
		appendNext(t, f, "init")
		appendNext(t, f, "second")
		problems, err := f.Check()
		require.NoError(t, err)
		assert.Empty(t, problems)
	})

	t.Run("collision and missing parent", func(t *testing.T) {
		f := newFolder(afero.NewMemMapFs())
		_, root := appendNext(t, f, "init")
		_, err := f.Append("a", "", snapshot.New(ddl.NewModel(ddl.SQLite), root.ID))
		require.NoError(t, err)
		_, err = f.Append("b", "", snapshot.New(ddl.NewModel(ddl.SQLite), root.ID))
		require.NoError(t, err)
		_, err = f.Append("c", "", snapshot.New(ddl.NewModel(ddl.SQLite), "6a1f3d0e-0000-4000-8000-000000000000"))
		require.NoError(t, err)

		problems, err := f.Check()
		require.NoError(t, err)
		got := map[string]ProblemKind{}
		for _, p := range problems {
			got[p.Tag] = p.Kind
		}
		assert.Equal(t, map[string]ProblemKind{
			"0002_b": ProblemCollision,
			"0003_c": ProblemMissingParent,
		}, got)
	})

	t.Run("missing sql file", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		f := newFolder(fs)
		appendNext(t, f, "init")
		require.NoError(t, fs.Remove("drizzle/0000_init.sql"))

		problems, err := f.Check()
		require.NoError(t, err)
		require.Len(t, problems, 1)
		assert.Equal(t, ProblemMissingFile, problems[0].Kind)
	})
}

func TestUpgradeRewritesOldSnapshots(t *testing.T) {
	fs := afero.NewMemMapFs()
	f := NewFolder(fs, "drizzle", ddl.PostgreSQL)
	f.Now = func() time.Time { return fixedNow }

	_, err := f.Append("init", "", snapshot.New(ddl.NewModel(ddl.PostgreSQL), snapshot.OriginID))
	require.NoError(t, err)
	old := `{"version":"5","dialect":"postgresql","id":"11111111-1111-4111-8111-111111111111","prevId":"00000000-0000-0000-0000-000000000000",` +
		`"tables":{},"enums":{"mood":{"name":"mood","values":{"a":"a","b":"b"}}},"schemas":{},"_meta":{"schemas":{},"tables":{},"columns":{}}}`
	require.NoError(t, afero.WriteFile(fs, "drizzle/meta/0000_snapshot.json", []byte(old), 0o644))

	problems, err := f.Check()
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, ProblemOutdated, problems[0].Kind)

	tags, err := f.Upgrade()
	require.NoError(t, err)
	assert.Equal(t, []string{"0000_init"}, tags)

	data, err := afero.ReadFile(fs, "drizzle/meta/0000_snapshot.json")
	require.NoError(t, err)
	needs, err := snapshot.NeedsUpgrade(data)
	require.NoError(t, err)
	assert.False(t, needs)

	problems, err = f.Check()
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestTag(t *testing.T) {
	tests := []struct {
		mode PrefixMode
		name string
		want string
	}{
		{PrefixIndex, "init", "0007_init"},
		{PrefixTimestamp, "init", "20240309140507_init"},
		{PrefixUnix, "init", "1709993107_init"},
		{PrefixNone, "init", "init"},
		{PrefixIndex, "  Add  Users  ", "0007_add_users"},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode)+"/"+tt.name, func(t *testing.T) {
			f := newFolder(afero.NewMemMapFs())
			f.Prefix = tt.mode
			assert.Equal(t, tt.want, f.tag(7, tt.name, fixedNow))
		})
	}

	t.Run("generated names are deterministic", func(t *testing.T) {
		a, b := newFolder(afero.NewMemMapFs()), newFolder(afero.NewMemMapFs())
		assert.Equal(t, a.tag(0, "", fixedNow), b.tag(0, "", fixedNow))
		assert.Regexp(t, `^0000_[a-z]+_[a-z]+$`, a.tag(0, "", fixedNow))
	})

	t.Run("parse", func(t *testing.T) {
		m, err := ParsePrefixMode("")
		require.NoError(t, err)
		assert.Equal(t, PrefixIndex, m)
		_, err = ParsePrefixMode("weekly")
		assert.Error(t, err)
	})
}

func TestTrackerSQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	tr := NewTracker(db, ddl.SQLite, "", "")
	require.NoError(t, tr.Ensure(ctx))
	require.NoError(t, tr.Ensure(ctx))

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Record(ctx, tx, "CREATE TABLE x (id integer);", fixedNow))
	require.NoError(t, tx.Commit())

	records, err := tr.Applied(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, Hash("CREATE TABLE x (id integer);"), records[0].Hash)
	assert.Len(t, records[0].Hash, 64)
	assert.Equal(t, fixedNow.UnixMilli(), records[0].CreatedAt.UnixMilli())
}

func TestTrackerNames(t *testing.T) {
	assert.Equal(t, `"drizzle"."__ddlkit_migrations"`, NewTracker(nil, ddl.PostgreSQL, "", "").name())
	assert.Equal(t, `"ops"."pushes"`, NewTracker(nil, ddl.Cockroach, "pushes", "ops").name())
	assert.Equal(t, "`__ddlkit_migrations`", NewTracker(nil, ddl.MySQL, "", "ops").name())
	assert.Equal(t, "drizzle.__ddlkit_migrations", NewTracker(nil, ddl.PostgreSQL, "", "").Table())
	assert.Equal(t, "__ddlkit_migrations", NewTracker(nil, ddl.SQLite, "", "").Table())
}
