package mcptools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/boardmirror/internal/index"
	"github.com/HendryAvila/boardmirror/internal/remote"
)

// Source names where a project list came from.
type Source string

const (
	SourceIndex  Source = "index"
	SourceRemote Source = "remote"
)

// ProjectSource lists projects from the local index once it has been
// built and from the remote API otherwise.
type ProjectSource struct {
	client remote.Client
	store  *index.Store
}

// NewProjectSource creates a ProjectSource. store may be nil.
func NewProjectSource(client remote.Client, store *index.Store) *ProjectSource {
	return &ProjectSource{client: client, store: store}
}

// Projects returns the project list. Archived and trashed projects are
// fetched from the remote only when includeArchived is set; the index
// always holds every status.
func (s *ProjectSource) Projects(ctx context.Context, includeArchived bool) ([]remote.Project, Source, error) {
	if s.store != nil && s.store.Meta().Built() {
		return s.store.Projects(), SourceIndex, nil
	}
	if s.client == nil {
		return nil, "", fmt.Errorf("no index and no remote client configured")
	}

	statuses := []remote.ProjectStatus{remote.StatusActive}
	if includeArchived {
		statuses = append(statuses, remote.StatusArchived, remote.StatusTrashed)
	}
	var all []remote.Project
	for _, st := range statuses {
		ps, err := remote.AllProjects(ctx, s.client, st)
		if err != nil {
			return nil, "", fmt.Errorf("listing %s projects: %w", st, err)
		}
		all = append(all, ps...)
	}
	return all, SourceRemote, nil
}
