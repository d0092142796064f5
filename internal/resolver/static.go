package resolver

import (
	"context"
	"fmt"
	"strings"
)

// Static applies an explicit rename set and treats every other candidate as
// created or deleted.
type Static struct {
	renames map[string]string
}

// NewStatic parses pairs of the form "old->new", where both sides are
// qualified candidate names.
func NewStatic(pairs ...string) (*Static, error) {
	s := &Static{renames: make(map[string]string, len(pairs))}
	for _, p := range pairs {
		from, to, ok := strings.Cut(p, "->")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("invalid rename %q, expected old->new", p)
		}
		if prev, dup := s.renames[from]; dup && prev != to {
			return nil, fmt.Errorf("conflicting renames for %q", from)
		}
		s.renames[from] = to
	}
	return s, nil
}

func (s *Static) Resolve(ctx context.Context, req *Request) (*Result, error) {
	added := make(map[string]Candidate, len(req.Added))
	for _, c := range req.Added {
		added[c.Name] = c
	}
	used := map[string]bool{}

	var renamed []Rename
	for _, from := range req.Removed {
		to, ok := s.renames[from.Name]
		if !ok {
			continue
		}
		c, ok := added[to]
		if !ok || used[to] {
			continue
		}
		used[to] = true
		renamed = append(renamed, Rename{From: from, To: c})
	}
	return complete(req, renamed), nil
}

// None never renames.
type None struct{}

func (None) Resolve(ctx context.Context, req *Request) (*Result, error) {
	return complete(req, nil), nil
}
