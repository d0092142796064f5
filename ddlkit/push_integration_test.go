package ddlkit

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/journal"
	"github.com/ddlkit/ddlkit/testutil"
)

const blogSQL = `
CREATE SCHEMA blog;
CREATE TYPE blog.status AS ENUM ('draft', 'published');

CREATE TABLE users (
    id bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    email varchar(320) NOT NULL UNIQUE
);

CREATE TABLE blog.posts (
    id serial PRIMARY KEY,
    author_id bigint NOT NULL REFERENCES users ON DELETE CASCADE,
    state blog.status NOT NULL DEFAULT 'draft',
    title text NOT NULL
);

CREATE INDEX posts_author_idx ON blog.posts (author_id);
`

func TestPushPostgres(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	container := testutil.SetupPostgresContainer(ctx, t)
	defer container.Terminate(ctx, t)

	fs := afero.NewMemMapFs()
	writeFile(t, fs, "schema.sql", blogSQL)
	opts := PushOptions{Fs: fs, Dialect: ddl.PostgreSQL, DB: container.Conn, Schema: "schema.sql"}

	res, err := Push(ctx, opts)
	require.NoError(t, err)
	require.True(t, res.Applied)
	assert.Empty(t, res.Warnings)

	res, err = Push(ctx, opts)
	require.NoError(t, err)
	assert.True(t, res.Plan.Empty(), "unexpected statements: %v", res.Statements)

	t.Run("rename column", func(t *testing.T) {
		r, err := StaticRenames("blog.posts.title->blog.posts.headline")
		require.NoError(t, err)
		writeFile(t, fs, "schema.sql", strings.Replace(blogSQL, "title text", "headline text", 1))
		renamed := opts
		renamed.Resolver = r
		res, err := Push(ctx, renamed)
		require.NoError(t, err)
		require.Len(t, res.Statements, 1)
		assert.Contains(t, res.Statements[0], `RENAME COLUMN "title" TO "headline"`)
	})

	records, err := journal.NewTracker(container.Conn, ddl.PostgreSQL, "", "").Applied(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
