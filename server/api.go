package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stackcheck-labs/stackcheck-go/internal/domain"
	"github.com/stackcheck-labs/stackcheck-go/internal/platform/auditlog"
	"github.com/stackcheck-labs/stackcheck-go/internal/repo"
	"github.com/stackcheck-labs/stackcheck-go/internal/service/ingest"
	"github.com/stackcheck-labs/stackcheck-go/internal/service/launch"
	"github.com/stackcheck-labs/stackcheck-go/internal/service/query"
	"github.com/stackcheck-labs/stackcheck-go/internal/service/testenv"
)

const maxPageSize = 200

// reportFetcher reads one raw report object from the report store.
type reportFetcher func(ctx context.Context, bucket, key string) ([]byte, error)

type stackcheckAPI struct {
	logger      *slog.Logger
	db          *sql.DB
	launcher    *launch.Launcher
	ingestor    *ingest.Ingestor
	queries     *query.Service
	envs        *testenv.Service
	fetchReport reportFetcher
	bucket      string
}

func newStackcheckAPI(
	logger *slog.Logger,
	db *sql.DB,
	launcher *launch.Launcher,
	ingestor *ingest.Ingestor,
	queries *query.Service,
	envs *testenv.Service,
	fetchReport reportFetcher,
	bucket string,
) *stackcheckAPI {
	return &stackcheckAPI{
		logger:      logger,
		db:          db,
		launcher:    launcher,
		ingestor:    ingestor,
		queries:     queries,
		envs:        envs,
		fetchReport: fetchReport,
		bucket:      bucket,
	}
}

func (api *stackcheckAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /runs", api.handleLaunchRun)
	mux.HandleFunc("GET /runs/{run_id}", api.handleGetRun)

	mux.HandleFunc("GET /checkpoints", api.handleListCheckpoints)
	mux.HandleFunc("GET /markers/{marker_id}/runs", api.handleListHistory)

	mux.HandleFunc("POST /test-envs", api.handleImportEnvironment)
	mux.HandleFunc("GET /test-envs", api.handleListEnvironments)
	mux.HandleFunc("GET /test-envs/{env_id}", api.handleGetEnvironment)
	mux.HandleFunc("DELETE /test-envs/{env_id}", api.handleDeleteEnvironment)

	mux.HandleFunc("POST /report-events", api.handleReportEvent)
}

// writeDomainError maps the error taxonomy onto HTTP statuses in one
// place so the handlers stay uniform.
func (api *stackcheckAPI) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrRunDenied):
		api.writeError(w, r, http.StatusConflict, "run_denied")
	case errors.Is(err, domain.ErrMarkerNotFound):
		api.writeError(w, r, http.StatusNotFound, "marker_not_found")
	case errors.Is(err, domain.ErrEnvironmentNotFound):
		api.writeError(w, r, http.StatusNotFound, "environment_not_found")
	case errors.Is(err, domain.ErrUnsupportedProject):
		api.writeError(w, r, http.StatusUnprocessableEntity, "unsupported_project")
	case errors.Is(err, domain.ErrInvalidReport):
		api.writeError(w, r, http.StatusBadRequest, "invalid_report")
	case errors.Is(err, repo.ErrNotFound):
		api.writeError(w, r, http.StatusNotFound, "not_found")
	default:
		api.logger.Error("request failed", "path", r.URL.Path, "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
	}
}

func (api *stackcheckAPI) audit(r *http.Request, action, resourceType, resourceID string, payload any) {
	if api.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 750*time.Millisecond)
	defer cancel()
	_, err := auditlog.Insert(ctx, api.db, auditlog.Event{
		OccurredAt:   time.Now().UTC(),
		Actor:        actorFromRequest(r),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    r.Header.Get("X-Request-Id"),
		IP:           requestIP(r.RemoteAddr),
		UserAgent:    r.UserAgent(),
		Payload:      payload,
	})
	if err != nil {
		api.logger.Warn("audit insert failed", "action", action, "resource_id", resourceID, "error", err)
	}
}

func actorFromRequest(r *http.Request) string {
	if actor := strings.TrimSpace(r.Header.Get("X-Actor")); actor != "" {
		return actor
	}
	return "anonymous"
}

func requestIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return strings.TrimSpace(remoteAddr)
	}
	return host
}

func (api *stackcheckAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *stackcheckAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func clampInt(v int, min int, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func pageParams(r *http.Request) (page, count int) {
	page = clampInt(parseIntQuery(r, "page", 1), 1, 1<<30)
	count = clampInt(parseIntQuery(r, "count", 20), 1, maxPageSize)
	return page, count
}
