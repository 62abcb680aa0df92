// Package launch admits, triggers, and records new test runs.
package launch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stackcheck-labs/stackcheck-go/internal/config"
	"github.com/stackcheck-labs/stackcheck-go/internal/domain"
	"github.com/stackcheck-labs/stackcheck-go/internal/jobtrigger"
	"github.com/stackcheck-labs/stackcheck-go/internal/repo"
	"github.com/stackcheck-labs/stackcheck-go/internal/service/admission"
)

// Request is a caller's launch input. TestEnvID may be empty, which
// targets the default environment of the marker's project.
type Request struct {
	MarkerID   string
	TestEnvID  string
	Parameters []domain.Parameter
}

type Launcher struct {
	runs     repo.RunRepository
	markers  repo.MarkerRepository
	projects repo.ProjectRepository
	guard    *admission.Guard
	trigger  jobtrigger.Trigger
	types    map[string]config.ProjectType
	log      *slog.Logger

	newID func() string
	now   func() time.Time
}

func NewLauncher(
	runs repo.RunRepository,
	markers repo.MarkerRepository,
	projects repo.ProjectRepository,
	guard *admission.Guard,
	trigger jobtrigger.Trigger,
	types map[string]config.ProjectType,
	log *slog.Logger,
) *Launcher {
	if log == nil {
		log = slog.Default()
	}
	if types == nil {
		types = map[string]config.ProjectType{}
	}
	return &Launcher{
		runs:     runs,
		markers:  markers,
		projects: projects,
		guard:    guard,
		trigger:  trigger,
		types:    types,
		log:      log,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Launch runs the admission check, resolves the marker's project,
// maps parameters into the job's environment shape, triggers the
// external job, and persists the RUNNING record. The trigger and the
// store write are not transactional: a write failure after a
// successful trigger leaves an orphan job, which is logged loudly and
// surfaced as an error.
func (l *Launcher) Launch(ctx context.Context, req Request) (domain.TestRun, error) {
	if l == nil || l.runs == nil {
		return domain.TestRun{}, errors.New("launcher not initialized")
	}

	marker, err := l.markers.GetMarker(ctx, req.MarkerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.TestRun{}, fmt.Errorf("%w: %s", domain.ErrMarkerNotFound, req.MarkerID)
		}
		return domain.TestRun{}, fmt.Errorf("resolve marker %s: %w", req.MarkerID, err)
	}

	decision, err := l.guard.Check(ctx, marker.ID)
	if err != nil {
		return domain.TestRun{}, fmt.Errorf("admission check: %w", err)
	}
	if !decision.Admitted {
		return domain.TestRun{}, fmt.Errorf("%w: %s", domain.ErrRunDenied, decision.Reason)
	}

	project, err := l.projects.GetProject(ctx, marker.ProjectID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.TestRun{}, fmt.Errorf("%w: project %s", domain.ErrMarkerNotFound, marker.ProjectID)
		}
		return domain.TestRun{}, fmt.Errorf("resolve project %s: %w", marker.ProjectID, err)
	}

	env, err := l.buildEnv(project.Type, req)
	if err != nil {
		return domain.TestRun{}, err
	}

	runID := l.newID()
	handle, err := l.trigger.TriggerBuild(ctx, jobtrigger.Request{
		MarkerID:  marker.ID,
		RunID:     runID,
		SourceRef: project.SourceRef,
		Branch:    project.Branch,
		Region:    project.Region,
		Env:       env,
	})
	if err != nil {
		return domain.TestRun{}, fmt.Errorf("trigger job for marker %s: %w", marker.ID, err)
	}

	now := domain.FormatTime(l.now())
	run := domain.TestRun{
		ID:         runID,
		MarkerID:   marker.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
		Status:     domain.RunStatusRunning,
		Duration:   0,
		Parameters: req.Parameters,
		TestEnvID:  req.TestEnvID,
		JobHandle:  handle,
	}
	if err := l.runs.CreateRun(ctx, run); err != nil {
		l.log.Error("orphan run: job triggered but record write failed",
			"run_id", runID,
			"marker_id", marker.ID,
			"job_handle", handle,
			"error", err)
		return domain.TestRun{}, fmt.Errorf("persist run %s: %w", runID, err)
	}
	return run, nil
}

// buildEnv maps caller parameters onto environment-variable names for
// the project's type. Unmapped keys pass through verbatim, so the
// mapping is total for any known type.
func (l *Launcher) buildEnv(projectType string, req Request) (map[string]string, error) {
	pt, ok := l.types[projectType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedProject, projectType)
	}

	env := make(map[string]string, len(req.Parameters)+1)
	for _, param := range req.Parameters {
		name := param.ParameterKey
		if mapped, ok := pt.ParamMap[name]; ok {
			name = mapped
		}
		env[name] = param.ParameterValue
	}
	if req.TestEnvID != "" {
		env["TEST_ENV_ID"] = req.TestEnvID
	}
	return env, nil
}
