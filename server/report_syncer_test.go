package main

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stackcheck-labs/stackcheck-go/internal/domain"
	"github.com/stackcheck-labs/stackcheck-go/internal/keys"
	"github.com/stackcheck-labs/stackcheck-go/internal/service/ingest"
)

type memSource struct {
	objects map[string][]byte
}

func (m *memSource) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	return keys, nil
}

func (m *memSource) Fetch(ctx context.Context, key string) ([]byte, error) {
	raw, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s missing", key)
	}
	return raw, nil
}

type memMarks struct {
	seen map[string]bool
}

func (m *memMarks) Seen(ctx context.Context, key string) (bool, error) {
	return m.seen[key], nil
}

func (m *memMarks) Mark(ctx context.Context, key string) error {
	m.seen[key] = true
	return nil
}

func syncerFixture() (*memStore, *memSource, *memMarks, *reportSyncer) {
	store := newMemStore()
	store.runs["run-1"] = domain.TestRun{ID: "run-1", MarkerID: "nginx", Status: domain.RunStatusRunning}

	source := &memSource{objects: map[string][]byte{}}
	marks := &memMarks{seen: map[string]bool{}}
	logger := slog.New(slog.DiscardHandler)
	s := &reportSyncer{
		logger:   logger,
		source:   source,
		marks:    marks,
		ingestor: ingest.NewIngestor(store, store, store, store, &stubNotifier{}, logger),
	}
	return store, source, marks, s
}

func TestSyncOnceIngestsUnseenReports(t *testing.T) {
	store, source, marks, s := syncerFixture()
	source.objects["reports/run-1.json"] = fmt.Appendf(nil, `{
		"pk": %q,
		"sk": %q,
		"summary": {"passed": 2, "failed": 0, "total": 2},
		"duration": 7,
		"tests": []
	}`, keys.Encode(domain.EntityTypeRun, "run-1"), keys.Encode(domain.EntityTypeMarker, "nginx"))

	s.syncOnce(context.Background())

	if got := store.runs["run-1"].Status; got != domain.RunStatusPass {
		t.Fatalf("status=%s, want PASS", got)
	}
	if !marks.seen["reports/run-1.json"] {
		t.Fatalf("processed object must be marked")
	}
}

func TestSyncOnceSkipsSeenReports(t *testing.T) {
	store, source, marks, s := syncerFixture()
	source.objects["reports/run-1.json"] = []byte(`{}`)
	marks.seen["reports/run-1.json"] = true

	s.syncOnce(context.Background())

	if store.applied != 0 {
		t.Fatalf("seen objects must not be re-ingested")
	}
}

func TestSyncOnceRetriesTransientFailures(t *testing.T) {
	_, source, marks, s := syncerFixture()
	source.objects["reports/run-gone.json"] = fmt.Appendf(nil, `{
		"pk": %q,
		"sk": %q,
		"summary": {"passed": 1, "failed": 0, "total": 1},
		"duration": 1,
		"tests": []
	}`, keys.Encode(domain.EntityTypeRun, "run-gone"), keys.Encode(domain.EntityTypeMarker, "nginx"))

	s.syncOnce(context.Background())

	if marks.seen["reports/run-gone.json"] {
		t.Fatalf("store failures must leave the object unmarked for the next tick")
	}
}

func TestSyncOnceMarksMalformedReports(t *testing.T) {
	store, source, marks, s := syncerFixture()
	source.objects["bad.json"] = []byte(`{"pk":"TEST#run-1","sk":"MARKER#nginx"}`)

	s.syncOnce(context.Background())

	if store.applied != 0 {
		t.Fatalf("malformed reports must not reach the store")
	}
	if !marks.seen["bad.json"] {
		t.Fatalf("malformed reports must be marked so the loop does not spin on them")
	}
}
