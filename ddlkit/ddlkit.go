// Package ddlkit provides a programmatic API for schema migrations.
// It diffs a declared schema against the latest migration snapshot
// (generate) or against a live database (push) and renders the SQL that
// moves one to the other.
package ddlkit

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/ddlkit/ddlkit/internal/compile"
	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/diff"
	"github.com/ddlkit/ddlkit/internal/journal"
	"github.com/ddlkit/ddlkit/internal/logger"
	"github.com/ddlkit/ddlkit/internal/resolver"
	"github.com/ddlkit/ddlkit/internal/snapshot"
)

// ErrAborted is returned when the confirmation callback declines a change.
var ErrAborted = errors.New("aborted by user")

// FolderOptions locates a migration folder.
type FolderOptions struct {
	Fs      afero.Fs    // Filesystem, defaults to the OS filesystem
	Out     string      // Migration folder (default: "drizzle")
	Dialect ddl.Dialect // Optional; when set the journal must match it
}

func (o FolderOptions) folder() *journal.Folder {
	fs := o.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	out := o.Out
	if out == "" {
		out = DefaultOut
	}
	return journal.NewFolder(fs, out, o.Dialect)
}

// DefaultOut is the migration folder used when none is configured.
const DefaultOut = "drizzle"

// GenerateOptions configures how a migration is generated.
type GenerateOptions struct {
	FolderOptions
	Schema        string             // Schema file, directory of .sql files, or snapshot JSON
	DefaultSchema string             // Schema for unqualified objects in .sql files (default: "public")
	Name          string             // Migration name; a random name is picked when empty
	Prefix        journal.PrefixMode // Tag prefix mode (default: index)
	Breakpoints   bool               // Separate statements with breakpoint markers
	Custom        bool               // Write an empty migration for hand-written SQL
	Resolver      resolver.Resolver  // Rename resolver; nil treats every change as create/drop
}

// GenerateResult describes a generated migration. Entry is nil when the
// schema has no changes.
type GenerateResult struct {
	Entry      *journal.Entry
	Path       string
	Plan       *diff.Plan
	Statements []string
	Warnings   []compile.Warning
	Issues     []ddl.Issue
}

// Generate diffs the declared schema against the latest snapshot of the
// migration folder and appends a new migration.
func Generate(ctx context.Context, opts GenerateOptions) (*GenerateResult, error) {
	if opts.Dialect == "" {
		return nil, fmt.Errorf("dialect is required")
	}
	f := opts.folder()
	if opts.Prefix != "" {
		f.Prefix = opts.Prefix
	}
	f.Breakpoints = opts.Breakpoints

	prev, err := f.LatestSnapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	from, issues := prev.ToModel()
	if len(issues) > 0 {
		return nil, fmt.Errorf("latest snapshot is invalid: %w", errors.Join(issueErrors(issues)...))
	}

	if opts.Custom {
		entry, err := f.Append(opts.Name, "", snapshot.New(from, prev.ID))
		if err != nil {
			return nil, err
		}
		return &GenerateResult{Entry: entry, Path: f.SQLPath(entry.Tag)}, nil
	}

	if opts.Schema == "" {
		return nil, fmt.Errorf("schema path is required")
	}
	to, issues, err := LoadSchema(f.Fs(), opts.Schema, opts.Dialect, opts.DefaultSchema)
	if err != nil {
		return nil, err
	}
	if err := grammarError("schema "+opts.Schema, issues); err != nil {
		return nil, err
	}
	result := &GenerateResult{Issues: issues}

	plan, err := diff.Diff(ctx, from, to, opts.Resolver)
	if err != nil {
		return nil, fmt.Errorf("failed to diff schema: %w", err)
	}
	result.Plan = plan
	if plan.Empty() {
		logger.Get().Debug("No schema changes", "out", f.Dir())
		return result, nil
	}

	compiled, err := compile.Compile(plan)
	if err != nil {
		return nil, fmt.Errorf("failed to compile migration: %w", err)
	}
	result.Statements = compiled.Statements
	result.Warnings = compiled.Warnings

	snap := snapshot.New(to, prev.ID)
	for _, r := range plan.Renames {
		snap.RecordRename(r.Kind, r.From, r.To)
	}
	entry, err := f.Append(opts.Name, compile.Join(compiled.Statements, opts.Breakpoints), snap)
	if err != nil {
		return nil, err
	}
	result.Entry = entry
	result.Path = f.SQLPath(entry.Tag)
	return result, nil
}

// Drop removes a migration. An empty tag drops the latest one.
func Drop(ctx context.Context, opts FolderOptions, tag string) (*journal.Entry, error) {
	return opts.folder().Drop(tag)
}

// Check reports lineage problems of the migration folder.
func Check(ctx context.Context, opts FolderOptions) ([]journal.Problem, error) {
	f := opts.folder()
	if _, err := f.Fs().Stat(f.Dir()); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("migration folder %s does not exist", f.Dir())
	}
	return f.Check()
}

// Upgrade rewrites snapshots written by older versions to the current
// format and returns the tags it touched.
func Upgrade(ctx context.Context, opts FolderOptions) ([]string, error) {
	return opts.folder().Upgrade()
}

// grammarError reports the issues caused by malformed SQL fragments. The
// normalizer leaves such entities out, so diffing the model would drop them.
func grammarError(source string, issues []ddl.Issue) error {
	var errs []error
	for _, issue := range issues {
		if ddl.IsGrammarIssue(issue) {
			errs = append(errs, issue)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s has invalid SQL: %w", source, errors.Join(errs...))
}

func issueErrors(issues []ddl.Issue) []error {
	out := make([]error, len(issues))
	for i, issue := range issues {
		out[i] = issue
	}
	return out
}
