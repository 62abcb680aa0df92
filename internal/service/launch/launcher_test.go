package launch

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stackcheck-labs/stackcheck-go/internal/config"
	"github.com/stackcheck-labs/stackcheck-go/internal/domain"
	"github.com/stackcheck-labs/stackcheck-go/internal/jobtrigger"
	"github.com/stackcheck-labs/stackcheck-go/internal/repo"
	"github.com/stackcheck-labs/stackcheck-go/internal/service/admission"
)

type fakeRuns struct {
	byMarker  map[string][]domain.TestRun
	created   []domain.TestRun
	createErr error
}

func (f *fakeRuns) CreateRun(ctx context.Context, run domain.TestRun) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, run)
	return nil
}

func (f *fakeRuns) GetRun(ctx context.Context, id string) (domain.TestRun, error) {
	return domain.TestRun{}, repo.ErrNotFound
}

func (f *fakeRuns) ListRunsByMarker(ctx context.Context, markerID string, limit int) ([]domain.TestRun, error) {
	return f.byMarker[markerID], nil
}

func (f *fakeRuns) ApplyResult(ctx context.Context, pk, sk string, update domain.ResultUpdate) error {
	return nil
}

type fakeMarkers struct {
	markers map[string]domain.Marker
}

func (f *fakeMarkers) GetMarker(ctx context.Context, id string) (domain.Marker, error) {
	m, ok := f.markers[id]
	if !ok {
		return domain.Marker{}, repo.ErrNotFound
	}
	return m, nil
}

func (f *fakeMarkers) ListMarkers(ctx context.Context) ([]domain.Marker, error) {
	out := make([]domain.Marker, 0, len(f.markers))
	for _, m := range f.markers {
		out = append(out, m)
	}
	return out, nil
}

type fakeProjects struct {
	projects map[string]domain.Project
}

func (f *fakeProjects) GetProject(ctx context.Context, id string) (domain.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return domain.Project{}, repo.ErrNotFound
	}
	return p, nil
}

type fakeTrigger struct {
	last       jobtrigger.Request
	calls      int
	handle     string
	triggerErr error
}

func (f *fakeTrigger) TriggerBuild(ctx context.Context, req jobtrigger.Request) (string, error) {
	f.calls++
	f.last = req
	if f.triggerErr != nil {
		return "", f.triggerErr
	}
	return f.handle, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestLauncher(runs *fakeRuns, trigger *fakeTrigger, groups map[string][]string) *Launcher {
	markers := &fakeMarkers{markers: map[string]domain.Marker{
		"nginx": {ID: "nginx", Name: "nginx smoke", ProjectID: "stacks"},
	}}
	projects := &fakeProjects{projects: map[string]domain.Project{
		"stacks": {ID: "stacks", Type: "codebuild", SourceRef: "github.com/acme/stacks", Branch: "main", Region: "eu-west-1"},
	}}
	guard := admission.NewGuard(runs, groups, 30*time.Minute, 5)
	types := map[string]config.ProjectType{
		"codebuild": {ParamMap: map[string]string{"loggingBucket": "LOGGING_BUCKET"}},
	}
	l := NewLauncher(runs, markers, projects, guard, trigger, types, discardLogger())
	l.newID = func() string { return "run-fixed" }
	l.now = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }
	return l
}

func TestLaunch(t *testing.T) {
	runs := &fakeRuns{byMarker: map[string][]domain.TestRun{}}
	trigger := &fakeTrigger{handle: "build-42"}
	l := newTestLauncher(runs, trigger, nil)

	run, err := l.Launch(context.Background(), Request{
		MarkerID:  "nginx",
		TestEnvID: "env-1",
		Parameters: []domain.Parameter{
			{ParameterKey: "loggingBucket", ParameterValue: "logs"},
			{ParameterKey: "customFlag", ParameterValue: "on"},
		},
	})
	if err != nil {
		t.Fatalf("Launch() err=%v", err)
	}
	if run.ID != "run-fixed" || run.Status != domain.RunStatusRunning || run.Duration != 0 {
		t.Fatalf("run=%+v", run)
	}
	if run.JobHandle != "build-42" {
		t.Fatalf("job handle=%q", run.JobHandle)
	}
	if len(runs.created) != 1 {
		t.Fatalf("created %d runs, want 1", len(runs.created))
	}
	if trigger.last.Env["LOGGING_BUCKET"] != "logs" {
		t.Fatalf("mapped key not applied: %v", trigger.last.Env)
	}
	if trigger.last.Env["customFlag"] != "on" {
		t.Fatalf("unmapped keys must pass through verbatim: %v", trigger.last.Env)
	}
	if trigger.last.SourceRef != "github.com/acme/stacks" || trigger.last.Region != "eu-west-1" {
		t.Fatalf("project metadata not forwarded: %+v", trigger.last)
	}
}

func TestLaunchDeniedInsideWindow(t *testing.T) {
	runs := &fakeRuns{byMarker: map[string][]domain.TestRun{
		"opensearch": {{
			ID:        "run-old",
			Status:    domain.RunStatusRunning,
			CreatedAt: domain.FormatTime(time.Now().UTC().Add(-5 * time.Minute)),
		}},
	}}
	trigger := &fakeTrigger{handle: "build-42"}
	l := newTestLauncher(runs, trigger, map[string][]string{
		"nginx": {"opensearch"},
	})

	_, err := l.Launch(context.Background(), Request{MarkerID: "nginx"})
	if !errors.Is(err, domain.ErrRunDenied) {
		t.Fatalf("err=%v, want ErrRunDenied", err)
	}
	if trigger.calls != 0 {
		t.Fatalf("denied launches must not trigger jobs")
	}
	if len(runs.created) != 0 {
		t.Fatalf("denied launches must not write records")
	}
}

func TestLaunchUnknownMarker(t *testing.T) {
	runs := &fakeRuns{byMarker: map[string][]domain.TestRun{}}
	l := newTestLauncher(runs, &fakeTrigger{handle: "h"}, nil)

	_, err := l.Launch(context.Background(), Request{MarkerID: "nope"})
	if !errors.Is(err, domain.ErrMarkerNotFound) {
		t.Fatalf("err=%v, want ErrMarkerNotFound", err)
	}
}

func TestLaunchUnsupportedProjectType(t *testing.T) {
	runs := &fakeRuns{byMarker: map[string][]domain.TestRun{}}
	trigger := &fakeTrigger{handle: "h"}
	l := newTestLauncher(runs, trigger, nil)
	l.types = map[string]config.ProjectType{}

	_, err := l.Launch(context.Background(), Request{MarkerID: "nginx"})
	if !errors.Is(err, domain.ErrUnsupportedProject) {
		t.Fatalf("err=%v, want ErrUnsupportedProject", err)
	}
	if trigger.calls != 0 {
		t.Fatalf("unsupported projects must fail before the trigger call")
	}
}

func TestLaunchTriggerFailureWritesNothing(t *testing.T) {
	runs := &fakeRuns{byMarker: map[string][]domain.TestRun{}}
	trigger := &fakeTrigger{triggerErr: errors.New("gateway timeout")}
	l := newTestLauncher(runs, trigger, nil)

	if _, err := l.Launch(context.Background(), Request{MarkerID: "nginx"}); err == nil {
		t.Fatalf("expected error when the trigger fails")
	}
	if len(runs.created) != 0 {
		t.Fatalf("a failed trigger must abort the whole launch, got %d records", len(runs.created))
	}
}

func TestLaunchOrphanRunSurfacesError(t *testing.T) {
	runs := &fakeRuns{byMarker: map[string][]domain.TestRun{}, createErr: errors.New("store down")}
	trigger := &fakeTrigger{handle: "build-42"}
	l := newTestLauncher(runs, trigger, nil)

	if _, err := l.Launch(context.Background(), Request{MarkerID: "nginx"}); err == nil {
		t.Fatalf("expected error when the record write fails after the trigger")
	}
	if trigger.calls != 1 {
		t.Fatalf("trigger calls=%d, want 1", trigger.calls)
	}
}
