package index

import (
	"time"

	"github.com/HendryAvila/boardmirror/internal/board"
	"github.com/HendryAvila/boardmirror/internal/remote"
)

// Unassigned is the ByAssignee bucket for cards nobody owns.
const Unassigned = "(unassigned)"

// Stats aggregates the committed snapshot.
type Stats struct {
	TotalCards     int                      `json:"total_cards"`
	Open           int                      `json:"open"`
	Completed      int                      `json:"completed"`
	Overdue        int                      `json:"overdue"`
	ByColumn       map[string]int           `json:"by_column"`
	ByColumnType   map[board.ColumnType]int `json:"by_column_type"`
	ByProject      map[string]int           `json:"by_project"`
	ByAssignee     map[string]int           `json:"by_assignee"`
	ProjectsActive int                      `json:"projects_active"`
	ProjectsTotal  int                      `json:"projects_total"`
	People         int                      `json:"people"`
	LastBuild      *time.Time               `json:"last_build,omitempty"`
	AgeSeconds     float64                  `json:"age_seconds"`
}

// Statistics computes Stats in one pass over the cards. Overdue counts
// open cards due strictly before now. A card with several assignees
// counts once for each of them.
func (s *Store) Statistics(now time.Time) Stats {
	return computeStats(s.Snapshot(), now)
}

func computeStats(snap *Snapshot, now time.Time) Stats {
	st := Stats{
		ByColumn:      map[string]int{},
		ByColumnType:  map[board.ColumnType]int{},
		ByProject:     map[string]int{},
		ByAssignee:    map[string]int{},
		ProjectsTotal: len(snap.Projects),
		People:        len(snap.People),
	}

	for _, c := range snap.Cards {
		st.TotalCards++
		if c.Completed {
			st.Completed++
		} else {
			st.Open++
			if c.Overdue(now) {
				st.Overdue++
			}
		}
		st.ByColumn[c.ColumnTitle]++
		st.ByColumnType[c.ColumnType]++
		st.ByProject[c.ProjectName]++
		if len(c.AssigneeNames) == 0 {
			st.ByAssignee[Unassigned]++
		}
		for _, n := range c.AssigneeNames {
			st.ByAssignee[n]++
		}
	}

	for _, p := range snap.Projects {
		if p.Status == remote.StatusActive {
			st.ProjectsActive++
		}
	}

	if t := snap.Meta.BuildFinishedAt; t != nil {
		last := *t
		st.LastBuild = &last
		st.AgeSeconds = now.Sub(last).Seconds()
	}
	return st
}
