// Package report turns a raw framework report payload into the
// canonical run result.
package report

import (
	"encoding/json"
	"fmt"

	"github.com/stackcheck-labs/stackcheck-go/internal/domain"
)

// Sentinel fills message/trace fields the payload does not carry.
// Absence of a crash block or long-form failure must never raise.
const Sentinel = "Unknown"

// Report is the canonical reduction of one raw payload, addressed to
// a single run by its exact key pair.
type Report struct {
	PK string
	SK string

	Passed   int64
	Failed   int64
	Total    int64
	Duration int64
	Status   domain.RunStatus
	Outcomes []domain.TestOutcome
}

type rawEnvelope struct {
	PK       string          `json:"pk"`
	SK       string          `json:"sk"`
	Summary  *rawSummary     `json:"summary"`
	Duration json.Number     `json:"duration"`
	Tests    json.RawMessage `json:"tests"`
}

type rawSummary struct {
	Passed int64 `json:"passed"`
	Failed int64 `json:"failed"`
	Total  int64 `json:"total"`
}

type rawTest struct {
	NodeID string `json:"nodeid"`
	Call   *struct {
		Outcome string `json:"outcome"`
		Crash   *struct {
			Message string `json:"message"`
		} `json:"crash"`
		LongRepr string `json:"longrepr"`
	} `json:"call"`
}

// Parse decodes and reduces a raw report. A payload without a summary
// or tests block is malformed and yields ErrInvalidReport; missing
// optional fields inside those blocks default instead of failing.
func Parse(raw []byte) (Report, error) {
	var envelope rawEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Report{}, fmt.Errorf("%w: %v", domain.ErrInvalidReport, err)
	}
	if envelope.PK == "" || envelope.SK == "" {
		return Report{}, fmt.Errorf("%w: missing key envelope", domain.ErrInvalidReport)
	}
	if envelope.Summary == nil {
		return Report{}, fmt.Errorf("%w: missing summary block", domain.ErrInvalidReport)
	}
	if len(envelope.Tests) == 0 || string(envelope.Tests) == "null" {
		return Report{}, fmt.Errorf("%w: missing tests block", domain.ErrInvalidReport)
	}

	var tests []rawTest
	if err := json.Unmarshal(envelope.Tests, &tests); err != nil {
		return Report{}, fmt.Errorf("%w: tests block: %v", domain.ErrInvalidReport, err)
	}

	outcomes := make([]domain.TestOutcome, 0, len(tests))
	for _, entry := range tests {
		outcome := domain.TestOutcome{
			NodeID:  entry.NodeID,
			Message: Sentinel,
			Trace:   Sentinel,
		}
		if entry.Call != nil {
			outcome.Outcome = entry.Call.Outcome
			if entry.Call.Crash != nil && entry.Call.Crash.Message != "" {
				outcome.Message = entry.Call.Crash.Message
			}
			if entry.Call.LongRepr != "" {
				outcome.Trace = entry.Call.LongRepr
			}
		}
		outcomes = append(outcomes, outcome)
	}

	summary := envelope.Summary
	return Report{
		PK:       envelope.PK,
		SK:       envelope.SK,
		Passed:   summary.Passed,
		Failed:   summary.Failed,
		Total:    summary.Total,
		Duration: coerceDuration(envelope.Duration),
		Status:   ReduceStatus(summary.Passed, summary.Total),
		Outcomes: outcomes,
	}, nil
}

// ReduceStatus applies the strict equality rule: every counted test
// must be in the passed bucket. A report with tests accounted outside
// passed (errored, skipped) fails even when failed == 0.
func ReduceStatus(passed, total int64) domain.RunStatus {
	if total == passed {
		return domain.RunStatusPass
	}
	return domain.RunStatusFailed
}

func coerceDuration(value json.Number) int64 {
	if value == "" {
		return 0
	}
	if i, err := value.Int64(); err == nil {
		return i
	}
	f, err := value.Float64()
	if err != nil {
		return 0
	}
	return int64(f)
}
