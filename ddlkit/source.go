package ddlkit

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/snapshot"
	"github.com/ddlkit/ddlkit/internal/sqlfile"
)

// LoadSchema reads the declared schema at path. A .json file is read as a
// snapshot of any dialect. A .sql file, or a directory of them applied in
// name order, is parsed as Postgres DDL. Issues are entity level problems
// that did not stop loading.
func LoadSchema(fs afero.Fs, path string, d ddl.Dialect, defaultSchema string) (*ddl.Model, []ddl.Issue, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read schema %s: %w", path, err)
	}

	var raw *ddl.Raw
	switch {
	case info.IsDir():
		raw, err = parseDir(fs, path, d, defaultSchema)
	case strings.EqualFold(filepath.Ext(path), ".json"):
		raw, err = readSnapshot(fs, path, d)
	default:
		raw, err = parseFiles(fs, []string{path}, d, defaultSchema)
	}
	if err != nil {
		return nil, nil, err
	}
	m, issues := ddl.Normalize(raw)
	return m, issues, nil
}

func readSnapshot(fs afero.Fs, path string, d ddl.Dialect) (*ddl.Raw, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", path, err)
	}
	s, err := snapshot.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	if s.Dialect != d {
		return nil, fmt.Errorf("schema %s is a %s snapshot, expected %s", path, s.Dialect, d)
	}
	return s.Raw(), nil
}

func parseDir(fs afero.Fs, dir string, d ddl.Dialect, defaultSchema string) (*ddl.Raw, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema directory %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".sql") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("schema directory %s has no .sql files", dir)
	}
	return parseFiles(fs, paths, d, defaultSchema)
}

func parseFiles(fs afero.Fs, paths []string, d ddl.Dialect, defaultSchema string) (*ddl.Raw, error) {
	if !d.IsPostgresFamily() {
		return nil, fmt.Errorf("sql schema files are only supported for postgresql and cockroach, use a snapshot for %s", d)
	}
	p := sqlfile.NewParser(defaultSchema)
	for _, path := range paths {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", path, err)
		}
		if err := p.ParseSQL(string(data)); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	raw := p.Raw()
	raw.Dialect = d
	return raw, nil
}
