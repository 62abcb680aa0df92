package main

import (
	"net/http"
	"strings"

	"github.com/stackcheck-labs/stackcheck-go/internal/domain"
	"github.com/stackcheck-labs/stackcheck-go/internal/service/testenv"
)

type importEnvRequest struct {
	EnvName    string `json:"envName,omitempty"`
	StackName  string `json:"stackName"`
	Region     string `json:"region"`
	AccountID  string `json:"accountId"`
	AlarmEmail string `json:"alarmEmail,omitempty"`
	ProjectID  string `json:"projectId,omitempty"`
}

type envView struct {
	TestEnvID   string `json:"testEnvId"`
	Name        string `json:"name"`
	Region      string `json:"region"`
	AccountID   string `json:"accountId"`
	StackName   string `json:"stackName"`
	TopicHandle string `json:"topicHandle,omitempty"`
	AlarmEmail  string `json:"alarmEmail,omitempty"`
	ProjectID   string `json:"projectId,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

func toEnvView(env domain.TestEnvironment) envView {
	return envView{
		TestEnvID:   env.ID,
		Name:        env.Name,
		Region:      env.Region,
		AccountID:   env.AccountID,
		StackName:   env.StackName,
		TopicHandle: env.TopicHandle,
		AlarmEmail:  env.AlarmEmail,
		ProjectID:   env.ProjectID,
		CreatedAt:   env.CreatedAt,
	}
}

func (api *stackcheckAPI) handleImportEnvironment(w http.ResponseWriter, r *http.Request) {
	if api.envs == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}

	var req importEnvRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	env, err := api.envs.Import(r.Context(), testenv.ImportRequest{
		EnvName:    req.EnvName,
		StackName:  req.StackName,
		Region:     req.Region,
		AccountID:  req.AccountID,
		AlarmEmail: req.AlarmEmail,
		ProjectID:  req.ProjectID,
	})
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	api.audit(r, "env.import", "test_environment", env.ID, map[string]any{
		"stack_name": env.StackName,
		"region":     env.Region,
		"account_id": env.AccountID,
	})
	api.writeJSON(w, http.StatusOK, toEnvView(env))
}

func (api *stackcheckAPI) handleListEnvironments(w http.ResponseWriter, r *http.Request) {
	if api.envs == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}

	envs, err := api.envs.List(r.Context())
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	items := make([]envView, 0, len(envs))
	for _, env := range envs {
		items = append(items, toEnvView(env))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

func (api *stackcheckAPI) handleGetEnvironment(w http.ResponseWriter, r *http.Request) {
	if api.envs == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}
	envID := strings.TrimSpace(r.PathValue("env_id"))
	if envID == "" {
		api.writeError(w, r, http.StatusBadRequest, "env_id_required")
		return
	}

	env, err := api.envs.Get(r.Context(), envID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toEnvView(env))
}

func (api *stackcheckAPI) handleDeleteEnvironment(w http.ResponseWriter, r *http.Request) {
	if api.envs == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}
	envID := strings.TrimSpace(r.PathValue("env_id"))
	if envID == "" {
		api.writeError(w, r, http.StatusBadRequest, "env_id_required")
		return
	}

	if err := api.envs.Delete(r.Context(), envID); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.audit(r, "env.delete", "test_environment", envID, nil)
	api.writeJSON(w, http.StatusOK, map[string]any{"deleted": envID})
}
