package repo

import (
	"context"

	"github.com/stackcheck-labs/stackcheck-go/internal/domain"
)

// RunRepository manages test-run records. Listings are newest-first
// via the store's creation-time index.
type RunRepository interface {
	CreateRun(ctx context.Context, run domain.TestRun) error
	GetRun(ctx context.Context, id string) (domain.TestRun, error)
	ListRunsByMarker(ctx context.Context, markerID string, limit int) ([]domain.TestRun, error)

	// ApplyResult writes the terminal result against the exact key
	// pair without a prior read. Zero rows matched yields ErrNotFound.
	ApplyResult(ctx context.Context, pk, sk string, update domain.ResultUpdate) error
}

// MarkerRepository reads marker definitions. Markers are administered
// elsewhere; this service never writes them.
type MarkerRepository interface {
	GetMarker(ctx context.Context, id string) (domain.Marker, error)
	ListMarkers(ctx context.Context) ([]domain.Marker, error)
}

// ProjectRepository reads project metadata.
type ProjectRepository interface {
	GetProject(ctx context.Context, id string) (domain.Project, error)
}

// EnvironmentRepository manages imported test environments. Upsert is
// keyed on the derived environment id, so re-imports converge.
type EnvironmentRepository interface {
	UpsertEnvironment(ctx context.Context, env domain.TestEnvironment) error
	GetEnvironment(ctx context.Context, id string) (domain.TestEnvironment, error)
	ListEnvironments(ctx context.Context) ([]domain.TestEnvironment, error)
	DeleteEnvironment(ctx context.Context, id string) error
}
