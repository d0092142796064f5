// Package journal manages the migration folder: the SQL files, the
// snapshot written next to each of them and the journal listing both.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/afero"

	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/logger"
	"github.com/ddlkit/ddlkit/internal/snapshot"
)

const (
	metaDir     = "meta"
	journalFile = "_journal.json"
	// journalVersion is the journal format, independent of snapshots.
	journalVersion = "7"
)

var (
	// ErrEmpty is returned by Drop when there is nothing to drop.
	ErrEmpty = errors.New("journal has no migrations")
	// ErrReferenced is returned by Drop when another snapshot descends from
	// the one being dropped.
	ErrReferenced = errors.New("migration is referenced by a later snapshot")
	// ErrNotFound is returned for an unknown tag.
	ErrNotFound = errors.New("migration not found")
)

type Journal struct {
	Version string      `json:"version"`
	Dialect ddl.Dialect `json:"dialect"`
	Entries []Entry     `json:"entries"`
}

type Entry struct {
	Idx     int    `json:"idx"`
	Version string `json:"version"`
	// When is the creation time in milliseconds since the epoch.
	When        int64  `json:"when"`
	Tag         string `json:"tag"`
	Breakpoints bool   `json:"breakpoints"`
}

// Folder is a migration folder on an afero filesystem.
type Folder struct {
	fs      afero.Fs
	dir     string
	dialect ddl.Dialect

	Prefix      PrefixMode
	Breakpoints bool
	Now         func() time.Time
	// Rand picks generated migration names. Nil uses the global source.
	Rand *rand.Rand
}

// NewFolder returns the migration folder at dir for dialect d.
func NewFolder(fs afero.Fs, dir string, d ddl.Dialect) *Folder {
	return &Folder{
		fs:          fs,
		dir:         dir,
		dialect:     d,
		Prefix:      PrefixIndex,
		Breakpoints: true,
		Now:         time.Now,
	}
}

func (f *Folder) Dir() string { return f.dir }

func (f *Folder) Fs() afero.Fs { return f.fs }

func (f *Folder) journalPath() string {
	return filepath.Join(f.dir, metaDir, journalFile)
}

func (f *Folder) snapshotPath(idx int) string {
	return filepath.Join(f.dir, metaDir, fmt.Sprintf("%04d_snapshot.json", idx))
}

// SQLPath returns the path of the SQL file of tag.
func (f *Folder) SQLPath(tag string) string {
	return filepath.Join(f.dir, tag+".sql")
}

// Load reads the journal. A missing journal is an empty one.
func (f *Folder) Load() (*Journal, error) {
	data, err := afero.ReadFile(f.fs, f.journalPath())
	if errors.Is(err, os.ErrNotExist) {
		return &Journal{Version: journalVersion, Dialect: f.dialect}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	var j Journal
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to parse journal %s: %w", f.journalPath(), err)
	}
	if f.dialect != "" && j.Dialect != f.dialect {
		return nil, fmt.Errorf("journal dialect %s does not match %s", j.Dialect, f.dialect)
	}
	return &j, nil
}

func (f *Folder) save(j *Journal) error {
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode journal: %w", err)
	}
	return f.write(f.journalPath(), append(data, '\n'))
}

func (f *Folder) write(path string, data []byte) error {
	if err := f.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}
	if err := afero.WriteFile(f.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logger.Get().Debug("Wrote file", "path", path, "bytes", len(data))
	return nil
}

// Snapshot reads and upgrades the snapshot of entry e.
func (f *Folder) Snapshot(e Entry) (*snapshot.Snapshot, error) {
	data, err := afero.ReadFile(f.fs, f.snapshotPath(e.Idx))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot of %s: %w", e.Tag, err)
	}
	s, err := snapshot.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot of %s: %w", e.Tag, err)
	}
	return s, nil
}

// LatestSnapshot returns the snapshot of the last entry, or the origin
// snapshot of an empty folder.
func (f *Folder) LatestSnapshot() (*snapshot.Snapshot, error) {
	j, err := f.Load()
	if err != nil {
		return nil, err
	}
	if len(j.Entries) == 0 {
		return snapshot.Empty(f.dialect), nil
	}
	return f.Snapshot(j.Entries[len(j.Entries)-1])
}

// Append writes a migration: the SQL file, its snapshot and the journal
// entry, in that order. Files already written are removed when a later
// write fails.
func (f *Folder) Append(name, body string, snap *snapshot.Snapshot) (*Entry, error) {
	j, err := f.Load()
	if err != nil {
		return nil, err
	}
	idx := 0
	if n := len(j.Entries); n > 0 {
		idx = j.Entries[n-1].Idx + 1
	}
	now := f.Now()
	e := Entry{
		Idx:         idx,
		Version:     snap.Version,
		When:        now.UnixMilli(),
		Tag:         f.tag(idx, name, now),
		Breakpoints: f.Breakpoints,
	}
	if slices.ContainsFunc(j.Entries, func(o Entry) bool { return o.Tag == e.Tag }) {
		return nil, fmt.Errorf("migration %s already exists", e.Tag)
	}

	data, err := snapshot.Encode(snap)
	if err != nil {
		return nil, err
	}

	var written []string
	cleanup := func() {
		for _, p := range written {
			if err := f.fs.Remove(p); err != nil {
				logger.Get().Debug("Failed to remove partial file", "path", p, "error", err)
			}
		}
	}

	for _, file := range []struct {
		path string
		data []byte
	}{
		{f.SQLPath(e.Tag), []byte(body)},
		{f.snapshotPath(idx), data},
	} {
		if ok, _ := afero.Exists(f.fs, file.path); ok {
			cleanup()
			return nil, fmt.Errorf("refusing to overwrite %s", file.path)
		}
		if err := f.write(file.path, file.data); err != nil {
			cleanup()
			return nil, err
		}
		written = append(written, file.path)
	}

	j.Entries = append(j.Entries, e)
	if err := f.save(j); err != nil {
		cleanup()
		return nil, err
	}
	logger.Get().Debug("Appended migration", "tag", e.Tag, "idx", e.Idx)
	return &e, nil
}

// Drop removes the migration tagged tag, or the latest one when tag is
// empty. A migration whose snapshot is the parent of another is kept.
func (f *Folder) Drop(tag string) (*Entry, error) {
	j, err := f.Load()
	if err != nil {
		return nil, err
	}
	if len(j.Entries) == 0 {
		return nil, ErrEmpty
	}
	pos := len(j.Entries) - 1
	if tag != "" {
		pos = slices.IndexFunc(j.Entries, func(e Entry) bool { return e.Tag == tag })
		if pos < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, tag)
		}
	}
	target := j.Entries[pos]

	snap, err := f.Snapshot(target)
	if err != nil {
		return nil, err
	}
	for _, e := range j.Entries {
		if e.Idx == target.Idx {
			continue
		}
		other, err := f.Snapshot(e)
		if err != nil {
			return nil, err
		}
		if other.PrevID == snap.ID {
			return nil, fmt.Errorf("%w: %s is the parent of %s", ErrReferenced, target.Tag, e.Tag)
		}
	}

	j.Entries = slices.Delete(j.Entries, pos, pos+1)
	if err := f.save(j); err != nil {
		return nil, err
	}
	for _, p := range []string{f.SQLPath(target.Tag), f.snapshotPath(target.Idx)} {
		if err := f.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	logger.Get().Debug("Dropped migration", "tag", target.Tag)
	return &target, nil
}

// Upgrade rewrites every snapshot older than the current format and
// returns the tags it touched.
func (f *Folder) Upgrade() ([]string, error) {
	j, err := f.Load()
	if err != nil {
		return nil, err
	}
	var tags []string
	for i, e := range j.Entries {
		path := f.snapshotPath(e.Idx)
		data, err := afero.ReadFile(f.fs, path)
		if err != nil {
			return tags, fmt.Errorf("failed to read snapshot of %s: %w", e.Tag, err)
		}
		old, err := snapshot.NeedsUpgrade(data)
		if err != nil {
			return tags, fmt.Errorf("snapshot of %s: %w", e.Tag, err)
		}
		if !old {
			continue
		}
		s, err := snapshot.Decode(data)
		if err != nil {
			return tags, fmt.Errorf("snapshot of %s: %w", e.Tag, err)
		}
		out, err := snapshot.Encode(s)
		if err != nil {
			return tags, err
		}
		if err := f.write(path, out); err != nil {
			return tags, err
		}
		j.Entries[i].Version = s.Version
		tags = append(tags, e.Tag)
	}
	if len(tags) > 0 {
		if err := f.save(j); err != nil {
			return tags, err
		}
	}
	return tags, nil
}
