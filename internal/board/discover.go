package board

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/HendryAvila/boardmirror/internal/remote"
)

// ProbeWindow is how far past the anchor id columns are probed. The
// window is inclusive, so a board is probed at ProbeWindow+1 ids.
//
// Columns whose ids fall outside [anchor, anchor+ProbeWindow] are not
// discovered. That is a known limitation of neighborhood probing.
const ProbeWindow = 30

// unpositioned sorts columns without a reported position last.
const unpositioned = math.MaxInt

// Discoverer recovers the ordered columns of a project's board.
type Discoverer interface {
	Discover(ctx context.Context, project remote.Project) ([]Column, error)
}

// ProbeDiscoverer finds columns by fetching every id in the window after
// the board's anchor id. Probes run concurrently, capped at Concurrency.
type ProbeDiscoverer struct {
	client      remote.Client
	concurrency int
	logger      *slog.Logger
}

// NewProbeDiscoverer creates a ProbeDiscoverer. concurrency <= 0 probes
// one id at a time.
func NewProbeDiscoverer(client remote.Client, concurrency int, logger *slog.Logger) *ProbeDiscoverer {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProbeDiscoverer{client: client, concurrency: concurrency, logger: logger}
}

// Discover returns the project's columns sorted by position. A project
// without a board has no columns. Probes answering not-found or failing
// are discarded; only context cancellation aborts discovery.
func (d *ProbeDiscoverer) Discover(ctx context.Context, project remote.Project) ([]Column, error) {
	if project.BoardID == nil {
		return []Column{}, nil
	}
	anchor := *project.BoardID

	var (
		mu    sync.Mutex
		found []Column
		wg    sync.WaitGroup
		sem   = make(chan struct{}, d.concurrency)
	)

	for id := anchor; id <= anchor+ProbeWindow; id++ {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			col, err := d.client.GetColumn(ctx, project.ID, id)
			if err != nil {
				if !errors.Is(err, remote.ErrNotFound) && ctx.Err() == nil {
					d.logger.Debug("column probe failed", "project", project.ID, "id", id, "err", err)
				}
				return
			}
			if col == nil || col.Title == "" {
				return
			}
			c := NewColumn(*col)
			c.ID = id
			c.ProjectID = project.ID

			mu.Lock()
			found = append(found, c)
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	SortByPosition(found)
	if found == nil {
		found = []Column{}
	}
	return found, nil
}

// SortByPosition orders columns by reported position, unpositioned last,
// ties broken by id.
func SortByPosition(columns []Column) {
	sort.SliceStable(columns, func(i, j int) bool {
		pi, pj := position(columns[i]), position(columns[j])
		if pi != pj {
			return pi < pj
		}
		return columns[i].ID < columns[j].ID
	})
}

func position(c Column) int {
	if c.Position == nil {
		return unpositioned
	}
	return *c.Position
}
