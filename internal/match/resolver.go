package match

import (
	"sort"

	"github.com/HendryAvila/boardmirror/internal/remote"
)

// Candidate is a ranked project match.
type Candidate struct {
	Project remote.Project `json:"project"`
	Score   int            `json:"score"`
	Raw     int            `json:"raw"`
	Label   Label          `json:"label"`
}

func (c Candidate) result() Result {
	return Result{Score: c.Score, Raw: c.Raw, Label: c.Label}
}

// ResolveOptions narrows a Resolve call.
type ResolveOptions struct {
	// Limit caps the number of candidates returned; <= 0 means no cap.
	Limit int
	// MinScore drops candidates scoring below it. Zero-score candidates
	// are always dropped.
	MinScore int
	// IncludeArchived keeps archived and trashed projects in the ranking.
	IncludeArchived bool
}

// Resolve ranks projects against a free-text query. The result is sorted
// by score descending, then by the uncapped raw sum; full ties keep the
// input order. No match is an
// empty slice, not an error.
func Resolve(query string, projects []remote.Project, opts ResolveOptions) []Candidate {
	out := make([]Candidate, 0)
	for _, p := range projects {
		if !opts.IncludeArchived && p.Status != "" && p.Status != remote.StatusActive {
			continue
		}
		r := Score(query, p.Name, p.Description)
		if r.Score <= 0 || r.Score < opts.MinScore {
			continue
		}
		out = append(out, Candidate{Project: p, Score: r.Score, Raw: r.Raw, Label: r.Label})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].result().Beats(out[j].result()) })

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// Named is anything with a display name, such as a column or a person.
type Named interface {
	DisplayName() string
}

// Best returns the index of the best-scoring item and its result, or -1
// when nothing reaches minScore. Full ties keep the earliest item.
func Best[T Named](query string, items []T, minScore int) (int, Result) {
	best, bestResult := -1, Result{Label: LabelMinimal}
	for i, it := range items {
		r := Score(query, it.DisplayName(), "")
		if r.Score <= 0 || r.Score < minScore {
			continue
		}
		if best < 0 || r.Beats(bestResult) {
			best, bestResult = i, r
		}
	}
	return best, bestResult
}
