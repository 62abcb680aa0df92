package jobtrigger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTriggerBuild(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/builds" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"build_id": "build-42"})
	}))
	defer srv.Close()

	trigger, err := NewHTTPTrigger(srv.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewHTTPTrigger() err=%v", err)
	}
	handle, err := trigger.TriggerBuild(context.Background(), Request{
		MarkerID:  "nginx",
		RunID:     "run-1",
		SourceRef: "github.com/acme/stacks",
		Env:       map[string]string{"STACK_NAME": "demo"},
	})
	if err != nil {
		t.Fatalf("TriggerBuild() err=%v", err)
	}
	if handle != "build-42" {
		t.Fatalf("handle=%q", handle)
	}
	if got.MarkerID != "nginx" || got.Env["STACK_NAME"] != "demo" {
		t.Fatalf("request not forwarded: %+v", got)
	}
}

func TestTriggerBuildUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	trigger, err := NewHTTPTrigger(srv.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewHTTPTrigger() err=%v", err)
	}
	if _, err := trigger.TriggerBuild(context.Background(), Request{MarkerID: "nginx"}); err == nil {
		t.Fatalf("expected error on upstream failure")
	}
}

func TestNewHTTPTriggerRequiresURL(t *testing.T) {
	if _, err := NewHTTPTrigger("  ", time.Second); err == nil {
		t.Fatalf("expected error for empty url")
	}
}
