package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/AlecAivazis/survey/v2"
)

// Prompter asks the user to pick one of options and returns its index.
type Prompter interface {
	Select(message string, options []string, def int) (int, error)
}

// SurveyPrompter prompts on the terminal.
type SurveyPrompter struct {
	Opts []survey.AskOpt
}

func (p SurveyPrompter) Select(message string, options []string, def int) (int, error) {
	var idx int
	q := &survey.Select{
		Message:  message,
		Options:  options,
		Default:  options[def],
		PageSize: 10,
	}
	if err := survey.AskOne(q, &idx, p.Opts...); err != nil {
		return 0, err
	}
	return idx, nil
}

// Interactive asks, for every added candidate, whether it is new or a
// rename of one of the removed candidates still unclaimed. Options are
// ordered by similarity.
type Interactive struct {
	Prompter Prompter
}

// NewInteractive returns a resolver prompting on the terminal.
func NewInteractive() *Interactive {
	return &Interactive{Prompter: SurveyPrompter{}}
}

func (r *Interactive) Resolve(ctx context.Context, req *Request) (*Result, error) {
	usedFrom := map[int]bool{}
	var renamed []Rename
	for to, added := range req.Added {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		candidates := r.ranked(req, to, usedFrom)
		if len(candidates) == 0 {
			break
		}

		options := make([]string, 0, len(candidates)+1)
		options = append(options, fmt.Sprintf("+ %s  create %s", added.Name, req.Kind))
		for _, from := range candidates {
			options = append(options, fmt.Sprintf("~ %s › %s  rename %s", req.Removed[from].Name, added.Name, req.Kind))
		}
		message := fmt.Sprintf("Is %s %s created or renamed from another %s?", req.Kind, added.Name, req.Kind)
		choice, err := r.Prompter.Select(message, options, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", req.label(), err)
		}
		if choice <= 0 || choice > len(candidates) {
			continue
		}
		from := candidates[choice-1]
		usedFrom[from] = true
		renamed = append(renamed, Rename{From: req.Removed[from], To: added})
	}
	return complete(req, renamed), nil
}

// ranked returns the unclaimed removed indexes, most similar to Added[to]
// first.
func (r *Interactive) ranked(req *Request, to int, used map[int]bool) []int {
	score := map[int]float64{}
	for _, s := range req.Scores {
		if s.To == to {
			score[s.From] = s.Value
		}
	}
	var out []int
	for i := range req.Removed {
		if !used[i] {
			out = append(out, i)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return score[out[a]] > score[out[b]] })
	return out
}
