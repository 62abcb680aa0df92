package main

import (
	"net/http"
	"strings"
)

// reportEvent is the storage-event shape delivered when the external
// runner drops a raw report object into the reports bucket.
type reportEvent struct {
	Bucket string `json:"bucket,omitempty"`
	Key    string `json:"key"`
}

func (api *stackcheckAPI) handleReportEvent(w http.ResponseWriter, r *http.Request) {
	if api.ingestor == nil || api.fetchReport == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}

	var event reportEvent
	if err := decodeJSON(r, &event); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	key := strings.TrimSpace(event.Key)
	if key == "" {
		api.writeError(w, r, http.StatusBadRequest, "key_required")
		return
	}
	bucket := strings.TrimSpace(event.Bucket)
	if bucket == "" {
		bucket = api.bucket
	}

	raw, err := api.fetchReport(r.Context(), bucket, key)
	if err != nil {
		api.logger.Error("report object read failed", "bucket", bucket, "key", key, "error", err)
		api.writeError(w, r, http.StatusBadGateway, "report_unavailable")
		return
	}

	rep, err := api.ingestor.Ingest(r.Context(), raw)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	api.audit(r, "run.ingest", "test_run", rep.PK, map[string]any{
		"bucket": bucket,
		"key":    key,
		"status": rep.Status,
	})
	api.writeJSON(w, http.StatusOK, map[string]any{
		"pk":     rep.PK,
		"sk":     rep.SK,
		"status": rep.Status,
		"passed": rep.Passed,
		"failed": rep.Failed,
		"total":  rep.Total,
	})
}
