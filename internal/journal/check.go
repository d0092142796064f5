package journal

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/ddlkit/ddlkit/internal/snapshot"
)

type ProblemKind string

const (
	ProblemMissingFile   ProblemKind = "missing_file"
	ProblemUnreadable    ProblemKind = "unreadable_snapshot"
	ProblemMissingParent ProblemKind = "missing_parent"
	ProblemCollision     ProblemKind = "collision"
	ProblemOutdated      ProblemKind = "outdated_snapshot"
)

// Problem is one inconsistency found by Check.
type Problem struct {
	Kind    ProblemKind
	Tag     string
	Message string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s", p.Tag, p.Message)
}

// Check verifies that every journal entry has its files and that the
// snapshots form a single lineage from the origin.
func (f *Folder) Check() ([]Problem, error) {
	j, err := f.Load()
	if err != nil {
		return nil, err
	}

	var problems []Problem
	ids := map[string]string{snapshot.OriginID: ""}
	children := map[string][]string{}
	type node struct {
		tag, prev string
	}
	var nodes []node

	for _, e := range j.Entries {
		if ok, _ := afero.Exists(f.fs, f.SQLPath(e.Tag)); !ok {
			problems = append(problems, Problem{ProblemMissingFile, e.Tag, fmt.Sprintf("%s is missing", f.SQLPath(e.Tag))})
		}
		path := f.snapshotPath(e.Idx)
		data, err := afero.ReadFile(f.fs, path)
		if err != nil {
			problems = append(problems, Problem{ProblemMissingFile, e.Tag, fmt.Sprintf("%s is missing", path)})
			continue
		}
		if old, err := snapshot.NeedsUpgrade(data); err == nil && old {
			problems = append(problems, Problem{ProblemOutdated, e.Tag, "snapshot uses an old format, run up"})
		}
		s, err := snapshot.Decode(data)
		if err != nil {
			problems = append(problems, Problem{ProblemUnreadable, e.Tag, err.Error()})
			continue
		}
		ids[s.ID] = e.Tag
		children[s.PrevID] = append(children[s.PrevID], e.Tag)
		nodes = append(nodes, node{tag: e.Tag, prev: s.PrevID})
	}

	for _, n := range nodes {
		if _, ok := ids[n.prev]; !ok {
			problems = append(problems, Problem{ProblemMissingParent, n.tag, fmt.Sprintf("parent snapshot %s does not exist", n.prev)})
		}
	}
	for _, n := range nodes {
		siblings := children[n.prev]
		if len(siblings) > 1 && siblings[0] != n.tag {
			problems = append(problems, Problem{ProblemCollision, n.tag, fmt.Sprintf("shares parent snapshot %s with %s", n.prev, siblings[0])})
		}
	}
	return problems, nil
}
