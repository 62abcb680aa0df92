// Package admission decides whether a new run may start given the
// exclusivity relationships between markers.
package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/stackcheck-labs/stackcheck-go/internal/domain"
	"github.com/stackcheck-labs/stackcheck-go/internal/repo"
)

// Decision is the guard's verdict. Denial is a user-visible,
// recoverable condition, not a fault.
type Decision struct {
	Admitted bool
	Reason   string
}

// Guard performs the read-then-decide admission check. The sequence is
// not protected by a cross-request lock: concurrent launches for the
// same group can both pass. Accepted best-effort semantics.
type Guard struct {
	runs   repo.RunRepository
	groups map[string][]string
	window time.Duration
	fetch  int
	now    func() time.Time
}

func NewGuard(runs repo.RunRepository, groups map[string][]string, window time.Duration, fetch int) *Guard {
	if runs == nil {
		return nil
	}
	if groups == nil {
		groups = map[string][]string{}
	}
	if fetch < 1 {
		fetch = 1
	}
	return &Guard{
		runs:   runs,
		groups: groups,
		window: window,
		fetch:  fetch,
		now:    time.Now,
	}
}

// Check inspects the latest runs of every member of the requested
// marker's exclusivity group. A RUNNING run younger than the window
// denies admission. Runs whose timestamp no longer parses are stale
// and never block.
func (g *Guard) Check(ctx context.Context, markerID string) (Decision, error) {
	if g == nil || g.runs == nil {
		return Decision{}, fmt.Errorf("admission guard not initialized")
	}

	now := g.now().UTC()
	for _, member := range g.groups[markerID] {
		runs, err := g.runs.ListRunsByMarker(ctx, member, g.fetch)
		if err != nil {
			return Decision{}, fmt.Errorf("list runs for %s: %w", member, err)
		}
		for _, run := range runs {
			if run.Status != domain.RunStatusRunning {
				continue
			}
			createdAt, err := domain.ParseTime(run.CreatedAt)
			if err != nil {
				continue
			}
			if now.Sub(createdAt) < g.window {
				return Decision{
					Admitted: false,
					Reason:   fmt.Sprintf("marker %s has run %s active inside the exclusion window", member, run.ID),
				}, nil
			}
		}
	}
	return Decision{Admitted: true}, nil
}
