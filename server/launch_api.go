package main

import (
	"net/http"
	"strings"

	"github.com/stackcheck-labs/stackcheck-go/internal/domain"
	"github.com/stackcheck-labs/stackcheck-go/internal/service/launch"
)

type launchRequest struct {
	MarkerID   string             `json:"markerId"`
	TestEnvID  string             `json:"testEnvId,omitempty"`
	Parameters []domain.Parameter `json:"parameters,omitempty"`
}

type runView struct {
	RunID      string               `json:"runId"`
	MarkerID   string               `json:"markerId"`
	TestEnvID  string               `json:"testEnvId,omitempty"`
	Status     domain.RunStatus     `json:"status"`
	CreatedAt  string               `json:"createdAt"`
	UpdatedAt  string               `json:"updatedAt,omitempty"`
	Duration   int64                `json:"duration"`
	Parameters []domain.Parameter   `json:"parameters,omitempty"`
	JobHandle  string               `json:"jobHandle,omitempty"`
	Passed     int64                `json:"passed"`
	Failed     int64                `json:"failed"`
	Total      int64                `json:"total"`
	Result     []domain.TestOutcome `json:"result,omitempty"`
}

func toRunView(run domain.TestRun) runView {
	return runView{
		RunID:      run.ID,
		MarkerID:   run.MarkerID,
		TestEnvID:  run.TestEnvID,
		Status:     run.Status,
		CreatedAt:  run.CreatedAt,
		UpdatedAt:  run.UpdatedAt,
		Duration:   run.Duration,
		Parameters: run.Parameters,
		JobHandle:  run.JobHandle,
		Passed:     run.Passed,
		Failed:     run.Failed,
		Total:      run.Total,
		Result:     run.Result,
	}
}

func (api *stackcheckAPI) handleLaunchRun(w http.ResponseWriter, r *http.Request) {
	if api.launcher == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}

	var req launchRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.MarkerID) == "" {
		api.writeError(w, r, http.StatusBadRequest, "marker_id_required")
		return
	}

	run, err := api.launcher.Launch(r.Context(), launch.Request{
		MarkerID:   strings.TrimSpace(req.MarkerID),
		TestEnvID:  strings.TrimSpace(req.TestEnvID),
		Parameters: req.Parameters,
	})
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	api.audit(r, "run.launch", "test_run", run.ID, map[string]any{
		"marker_id":   run.MarkerID,
		"test_env_id": run.TestEnvID,
		"job_handle":  run.JobHandle,
	})
	api.writeJSON(w, http.StatusCreated, toRunView(run))
}
