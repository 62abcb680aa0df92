package main

import (
	"net/http"
	"strings"
)

func (api *stackcheckAPI) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	if api.queries == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}

	page, count := pageParams(r)
	result, err := api.queries.ListCheckpoints(r.Context(), page, count)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, result)
}

func (api *stackcheckAPI) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if api.queries == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}
	markerID := strings.TrimSpace(r.PathValue("marker_id"))
	if markerID == "" {
		api.writeError(w, r, http.StatusBadRequest, "marker_id_required")
		return
	}

	page, count := pageParams(r)
	result, err := api.queries.ListHistory(r.Context(), markerID, page, count)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	items := make([]runView, 0, len(result.Items))
	for _, run := range result.Items {
		items = append(items, toRunView(run))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"page":  result.Page,
		"count": result.Count,
		"total": result.Total,
	})
}

func (api *stackcheckAPI) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if api.queries == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}
	runID := strings.TrimSpace(r.PathValue("run_id"))
	if runID == "" {
		api.writeError(w, r, http.StatusBadRequest, "run_id_required")
		return
	}

	run, err := api.queries.GetRun(r.Context(), runID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toRunView(run))
}
