// Package registry is the client side of the external project registry: approved
// projects (with abbreviations used in record numbers) and first nations.
package registry

import (
	"context"
	"fmt"
)

// DependencyName identifies the registry in upstream errors, logs and metrics.
const DependencyName = "project_registry"

// Named is the {"name": ...} shape the registry uses for nested references.
type Named struct {
	Name string `json:"name"`
}

// Project is an approved project as returned by the registry.
type Project struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Abbreviation  string `json:"abbreviation"`
	Description   string `json:"description,omitempty"`
	Type          Named  `json:"type"`
	SubType       Named  `json:"sub_type"`
	Proponent     Named  `json:"proponent"`
	EACertificate string `json:"ea_certificate"`
}

// FirstNation is an indigenous nation known to the registry.
type FirstNation struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Registry looks up registry resources. Failures are returned as upstream
// errors and are never retried here.
type Registry interface {
	ListProjects(ctx context.Context) ([]Project, error)
	GetProject(ctx context.Context, id int64) (*Project, error)
	GetFirstNation(ctx context.Context, id int64) (*FirstNation, error)
}

// UpstreamError describes a failed registry call.
type UpstreamError struct {
	Dependency string
	Resource   string
	ID         int64
	StatusCode int
	Underlying error
}

func (e *UpstreamError) Error() string {
	target := e.Resource
	if e.ID != 0 {
		target = fmt.Sprintf("%s %d", e.Resource, e.ID)
	}
	if e.Underlying != nil {
		return fmt.Sprintf("%s %s: %v", e.Dependency, target, e.Underlying)
	}
	return fmt.Sprintf("%s %s: status %d", e.Dependency, target, e.StatusCode)
}

func (e *UpstreamError) Unwrap() error {
	return e.Underlying
}
