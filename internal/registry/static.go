package registry

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	dErrors "compliance/pkg/domain-errors"
)

// Static serves registry data from memory. It backs local runs without a
// registry and the service test suites.
type Static struct {
	mu           sync.RWMutex
	projects     map[int64]Project
	firstNations map[int64]FirstNation
}

func NewStatic() *Static {
	return &Static{
		projects:     make(map[int64]Project),
		firstNations: make(map[int64]FirstNation),
	}
}

func (s *Static) AddProject(p Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
}

func (s *Static) AddFirstNation(fn FirstNation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.firstNations[fn.ID] = fn
}

// ListProjects returns the projects ordered by id.
func (s *Static) ListProjects(context.Context) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Project) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Static) GetProject(_ context.Context, id int64) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, notFound("project", id)
	}
	return &p, nil
}

func (s *Static) GetFirstNation(_ context.Context, id int64) (*FirstNation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.firstNations[id]
	if !ok {
		return nil, notFound("first_nation", id)
	}
	return &fn, nil
}

// notFound mirrors what the HTTP client returns for a 404.
func notFound(resource string, id int64) error {
	return dErrors.Wrap(&UpstreamError{
		Dependency: DependencyName,
		Resource:   resource,
		ID:         id,
		StatusCode: 404,
	}, dErrors.CodeUpstream, lookupFailed(resource, id))
}

func lookupFailed(resource string, id int64) string {
	if id == 0 {
		return fmt.Sprintf("%s lookup failed for %s", DependencyName, resource)
	}
	return fmt.Sprintf("%s lookup failed for %s %d", DependencyName, resource, id)
}
