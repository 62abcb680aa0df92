package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stackcheck-labs/stackcheck-go/internal/domain"
	"github.com/stackcheck-labs/stackcheck-go/internal/keys"
	"github.com/stackcheck-labs/stackcheck-go/internal/repo"
)

type appliedUpdate struct {
	pk, sk string
	update domain.ResultUpdate
}

type fakeStore struct {
	runs     map[string]domain.TestRun
	envs     map[string]domain.TestEnvironment
	markers  map[string]domain.Marker
	projects map[string]domain.Project
	applied  []appliedUpdate
	applyErr error
}

func (f *fakeStore) CreateRun(ctx context.Context, run domain.TestRun) error { return nil }

func (f *fakeStore) GetRun(ctx context.Context, id string) (domain.TestRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return domain.TestRun{}, repo.ErrNotFound
	}
	return run, nil
}

func (f *fakeStore) ListRunsByMarker(ctx context.Context, markerID string, limit int) ([]domain.TestRun, error) {
	return nil, nil
}

func (f *fakeStore) ApplyResult(ctx context.Context, pk, sk string, update domain.ResultUpdate) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, appliedUpdate{pk: pk, sk: sk, update: update})
	return nil
}

func (f *fakeStore) GetMarker(ctx context.Context, id string) (domain.Marker, error) {
	m, ok := f.markers[id]
	if !ok {
		return domain.Marker{}, repo.ErrNotFound
	}
	return m, nil
}

func (f *fakeStore) ListMarkers(ctx context.Context) ([]domain.Marker, error) { return nil, nil }

func (f *fakeStore) GetProject(ctx context.Context, id string) (domain.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return domain.Project{}, repo.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) UpsertEnvironment(ctx context.Context, env domain.TestEnvironment) error {
	return nil
}

func (f *fakeStore) GetEnvironment(ctx context.Context, id string) (domain.TestEnvironment, error) {
	env, ok := f.envs[id]
	if !ok {
		return domain.TestEnvironment{}, repo.ErrNotFound
	}
	return env, nil
}

func (f *fakeStore) ListEnvironments(ctx context.Context) ([]domain.TestEnvironment, error) {
	return nil, nil
}

func (f *fakeStore) DeleteEnvironment(ctx context.Context, id string) error { return nil }

type fakeNotifier struct {
	published  []string
	topics     []string
	publishErr error
}

func (f *fakeNotifier) EnsureTopic(ctx context.Context, name, subscriber string) (string, error) {
	return "topic:" + name, nil
}

func (f *fakeNotifier) Publish(ctx context.Context, topic, subject, message string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.topics = append(f.topics, topic)
	f.published = append(f.published, subject+"\n\n"+message)
	return nil
}

func newTestStore() *fakeStore {
	return &fakeStore{
		runs: map[string]domain.TestRun{
			"run-1": {
				ID:        "run-1",
				MarkerID:  "nginx",
				Status:    domain.RunStatusRunning,
				TestEnvID: "env-1",
				Parameters: []domain.Parameter{
					{ParameterKey: "stackName", ParameterValue: "demo"},
				},
			},
		},
		envs: map[string]domain.TestEnvironment{
			"env-1": {ID: "env-1", Name: "staging", Region: "eu-west-1", TopicHandle: "topic:staging"},
		},
		markers: map[string]domain.Marker{
			"nginx": {ID: "nginx", ProjectID: "stacks"},
		},
		projects: map[string]domain.Project{
			"stacks": {ID: "stacks", Name: "Acme Stacks", Type: "codebuild"},
		},
	}
}

func newTestIngestor(store *fakeStore, notifier *fakeNotifier) *Ingestor {
	i := NewIngestor(store, store, store, store, notifier, slog.New(slog.DiscardHandler))
	i.now = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }
	return i
}

func payload(passed, failed, total int) []byte {
	return fmt.Appendf(nil, `{
		"pk": %q,
		"sk": %q,
		"summary": {"passed": %d, "failed": %d, "total": %d},
		"duration": 12.7,
		"tests": [
			{"nodeid": "test_listener", "call": {"outcome": "passed"}},
			{"nodeid": "test_routing", "call": {"outcome": "failed", "crash": {"message": "boom"}, "longrepr": "assert 1 == 2"}}
		]
	}`, keys.Encode(domain.EntityTypeRun, "run-1"), keys.Encode(domain.EntityTypeMarker, "nginx"), passed, failed, total)
}

func TestIngest(t *testing.T) {
	store := newTestStore()
	notifier := &fakeNotifier{}
	ing := newTestIngestor(store, notifier)

	rep, err := ing.Ingest(context.Background(), payload(3, 1, 5))
	if err != nil {
		t.Fatalf("Ingest() err=%v", err)
	}
	if rep.Status != domain.RunStatusFailed {
		t.Fatalf("status=%s, want FAILED for 3 of 5 passed", rep.Status)
	}
	if len(store.applied) != 1 {
		t.Fatalf("applied %d updates, want 1", len(store.applied))
	}
	got := store.applied[0]
	if got.pk != keys.Encode(domain.EntityTypeRun, "run-1") {
		t.Fatalf("pk=%q", got.pk)
	}
	if got.update.Duration != 12 {
		t.Fatalf("duration=%d, want float truncated to 12", got.update.Duration)
	}
	if got.update.UpdatedAt != "2026-03-14T12:00:00Z" {
		t.Fatalf("updatedAt=%q", got.update.UpdatedAt)
	}
	if len(notifier.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(notifier.published))
	}
	if notifier.topics[0] != "topic:staging" {
		t.Fatalf("topic=%q", notifier.topics[0])
	}
	msg := notifier.published[0]
	for _, want := range []string{"Acme Stacks", "staging", "stackName=demo", "assert 1 == 2", "❌"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("summary missing %q:\n%s", want, msg)
		}
	}
}

func TestIngestReplayConverges(t *testing.T) {
	store := newTestStore()
	ing := newTestIngestor(store, &fakeNotifier{})

	raw := payload(2, 0, 2)
	if _, err := ing.Ingest(context.Background(), raw); err != nil {
		t.Fatalf("first Ingest() err=%v", err)
	}
	if _, err := ing.Ingest(context.Background(), raw); err != nil {
		t.Fatalf("second Ingest() err=%v", err)
	}
	if len(store.applied) != 2 {
		t.Fatalf("applied %d updates", len(store.applied))
	}
	if !reflect.DeepEqual(store.applied[0], store.applied[1]) {
		t.Fatalf("replay diverged:\n%+v\n%+v", store.applied[0], store.applied[1])
	}
	if store.applied[0].update.Status != domain.RunStatusPass {
		t.Fatalf("status=%s, want PASS for 2 of 2", store.applied[0].update.Status)
	}
}

func TestIngestInvalidReport(t *testing.T) {
	store := newTestStore()
	ing := newTestIngestor(store, &fakeNotifier{})

	_, err := ing.Ingest(context.Background(), []byte(`{"pk": "TEST#run-1", "sk": "MARKER#nginx"}`))
	if !errors.Is(err, domain.ErrInvalidReport) {
		t.Fatalf("err=%v, want ErrInvalidReport", err)
	}
	if len(store.applied) != 0 {
		t.Fatalf("malformed payloads must not reach the store")
	}
}

func TestIngestNotifyFailureIsSwallowed(t *testing.T) {
	store := newTestStore()
	ing := newTestIngestor(store, &fakeNotifier{publishErr: errors.New("redis down")})

	if _, err := ing.Ingest(context.Background(), payload(2, 0, 2)); err != nil {
		t.Fatalf("notification failure must not fail ingestion: %v", err)
	}
	if len(store.applied) != 1 {
		t.Fatalf("update must still land, applied=%d", len(store.applied))
	}
}

func TestIngestRunWithoutEnvironmentSkipsNotify(t *testing.T) {
	store := newTestStore()
	run := store.runs["run-1"]
	run.TestEnvID = ""
	store.runs["run-1"] = run
	notifier := &fakeNotifier{}
	ing := newTestIngestor(store, notifier)

	if _, err := ing.Ingest(context.Background(), payload(2, 0, 2)); err != nil {
		t.Fatalf("Ingest() err=%v", err)
	}
	if len(notifier.published) != 0 {
		t.Fatalf("runs without a target environment must not notify")
	}
}
