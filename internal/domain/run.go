package domain

import (
	"errors"
	"strings"
)

// Parameter is one caller-supplied launch parameter, forwarded to the
// external build job after project-type mapping.
type Parameter struct {
	ParameterKey   string `json:"parameterKey"`
	ParameterValue string `json:"parameterValue"`
}

// TestOutcome is one per-test entry of an ingested result.
type TestOutcome struct {
	NodeID  string `json:"nodeid"`
	Outcome string `json:"outcome"`
	Message string `json:"message"`
	Trace   string `json:"trace"`
}

// TestRun is one execution instance of a marker. Timestamps are kept
// in the canonical text format; legacy rows may hold values that do
// not parse, and readers must tolerate that.
type TestRun struct {
	ID         string
	MarkerID   string
	CreatedAt  string
	UpdatedAt  string
	Status     RunStatus
	Duration   int64
	Parameters []Parameter
	TestEnvID  string
	JobHandle  string

	Passed int64
	Failed int64
	Total  int64
	Result []TestOutcome
}

func (r TestRun) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("run id is required")
	}
	if strings.TrimSpace(r.MarkerID) == "" {
		return errors.New("marker id is required")
	}
	if strings.TrimSpace(r.CreatedAt) == "" {
		return errors.New("created at is required")
	}
	if strings.TrimSpace(string(r.Status)) == "" {
		return errors.New("status is required")
	}
	return nil
}

// ResultUpdate is the terminal mutation applied by ingestion. It is
// written blind against the run's exact key pair so replays converge.
type ResultUpdate struct {
	Status    RunStatus
	Passed    int64
	Failed    int64
	Total     int64
	Duration  int64
	UpdatedAt string
	Result    []TestOutcome
}

func (u ResultUpdate) Validate() error {
	if !u.Status.Terminal() {
		return errors.New("result status must be terminal")
	}
	if strings.TrimSpace(u.UpdatedAt) == "" {
		return errors.New("updated at is required")
	}
	return nil
}
