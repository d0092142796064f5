package resolver

import (
	"context"
	"sort"

	"github.com/ddlkit/ddlkit/internal/ddl"
)

// Threshold renames the best scoring pairs whose similarity is at least
// Min. Two pairs sharing a candidate with the same best score are
// ambiguous.
type Threshold struct {
	Min float64
}

func (t Threshold) Resolve(ctx context.Context, req *Request) (*Result, error) {
	scores := make([]Score, len(req.Scores))
	copy(scores, req.Scores)
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Value > scores[j].Value })

	usedFrom := map[int]bool{}
	usedTo := map[int]bool{}
	var renamed []Rename
	for i, s := range scores {
		if s.Value < t.Min {
			break
		}
		if usedFrom[s.From] || usedTo[s.To] {
			continue
		}
		for _, o := range scores[i+1:] {
			if o.Value != s.Value {
				break
			}
			if usedFrom[o.From] || usedTo[o.To] {
				continue
			}
			if o.From == s.From || o.To == s.To {
				return nil, &AmbiguousRenameError{
					Kind:  req.Kind,
					Scope: req.Scope,
					Candidates: names(
						req.Removed[s.From], req.Added[s.To],
						req.Removed[o.From], req.Added[o.To],
					),
				}
			}
		}
		usedFrom[s.From] = true
		usedTo[s.To] = true
		renamed = append(renamed, Rename{From: req.Removed[s.From], To: req.Added[s.To]})
	}
	return complete(req, renamed), nil
}

func names(cs ...Candidate) []string {
	seen := map[ddl.Key]bool{}
	var out []string
	for _, c := range cs {
		if seen[c.Key] {
			continue
		}
		seen[c.Key] = true
		out = append(out, c.Name)
	}
	return out
}
