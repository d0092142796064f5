// Package resolver decides whether entities that disappeared from one model
// and appeared in the other were renamed or independently dropped and
// created.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/ddlkit/ddlkit/internal/ddl"
)

//go:generate mockgen -source=resolver.go -destination=mocks/mock_resolver.go -package=mocks

// Resolver splits the added and removed entities of one kind and scope into
// created, deleted and renamed. Its answer is final.
type Resolver interface {
	Resolve(ctx context.Context, req *Request) (*Result, error)
}

// Candidate is one added or removed entity.
type Candidate struct {
	Key ddl.Key
	// Name is the qualified display name, e.g. "public.users.id".
	Name string
}

// Score is the shape similarity of Removed[From] and Added[To], in [0,1].
type Score struct {
	From  int
	To    int
	Value float64
}

// Request is one resolution problem. Scope names the owning table for
// table-scoped kinds and is empty otherwise.
type Request struct {
	Kind    ddl.Kind
	Scope   string
	Added   []Candidate
	Removed []Candidate
	// Scores is sorted by descending Value.
	Scores []Score
}

type Rename struct {
	From Candidate
	To   Candidate
}

type Result struct {
	Created []Candidate
	Deleted []Candidate
	Renamed []Rename
}

func (r *Request) label() string {
	if r.Scope == "" {
		return r.Kind.String()
	}
	return r.Kind.String() + " in " + r.Scope
}

// Validate checks that res places every candidate of req in exactly one
// bucket.
func Validate(req *Request, res *Result) error {
	if res == nil {
		return fmt.Errorf("resolver returned no result for %s", req.label())
	}
	added := make(map[ddl.Key]int, len(req.Added))
	for _, c := range req.Added {
		added[c.Key] = 0
	}
	removed := make(map[ddl.Key]int, len(req.Removed))
	for _, c := range req.Removed {
		removed[c.Key] = 0
	}

	mark := func(set map[ddl.Key]int, c Candidate, side string) error {
		n, ok := set[c.Key]
		if !ok {
			return fmt.Errorf("%s %q was not %s", req.label(), c.Name, side)
		}
		if n > 0 {
			return fmt.Errorf("%s %q resolved more than once", req.label(), c.Name)
		}
		set[c.Key] = 1
		return nil
	}
	for _, c := range res.Created {
		if err := mark(added, c, "added"); err != nil {
			return err
		}
	}
	for _, c := range res.Deleted {
		if err := mark(removed, c, "removed"); err != nil {
			return err
		}
	}
	for _, r := range res.Renamed {
		if err := mark(removed, r.From, "removed"); err != nil {
			return err
		}
		if err := mark(added, r.To, "added"); err != nil {
			return err
		}
	}

	for _, c := range req.Added {
		if added[c.Key] == 0 {
			return fmt.Errorf("%s %q was not resolved", req.label(), c.Name)
		}
	}
	for _, c := range req.Removed {
		if removed[c.Key] == 0 {
			return fmt.Errorf("%s %q was not resolved", req.label(), c.Name)
		}
	}
	return nil
}

// AmbiguousRenameError is returned when a resolver cannot choose between
// equally likely renames and has no fallback.
type AmbiguousRenameError struct {
	Kind       ddl.Kind
	Scope      string
	Candidates []string
}

func (e *AmbiguousRenameError) Error() string {
	where := e.Kind.String()
	if e.Scope != "" {
		where += " in " + e.Scope
	}
	return fmt.Sprintf("ambiguous %s rename between %s", where, strings.Join(e.Candidates, ", "))
}

// complete fills Created and Deleted with the candidates not used by renames.
func complete(req *Request, renamed []Rename) *Result {
	usedFrom := map[ddl.Key]bool{}
	usedTo := map[ddl.Key]bool{}
	for _, r := range renamed {
		usedFrom[r.From.Key] = true
		usedTo[r.To.Key] = true
	}
	res := &Result{Renamed: renamed}
	for _, c := range req.Added {
		if !usedTo[c.Key] {
			res.Created = append(res.Created, c)
		}
	}
	for _, c := range req.Removed {
		if !usedFrom[c.Key] {
			res.Deleted = append(res.Deleted, c)
		}
	}
	return res
}
