// Package ingest applies raw report payloads to their run records and
// publishes run summaries.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stackcheck-labs/stackcheck-go/internal/domain"
	"github.com/stackcheck-labs/stackcheck-go/internal/keys"
	"github.com/stackcheck-labs/stackcheck-go/internal/platform/notify"
	"github.com/stackcheck-labs/stackcheck-go/internal/repo"
	"github.com/stackcheck-labs/stackcheck-go/internal/report"
)

const traceExcerptLimit = 400

type Ingestor struct {
	runs     repo.RunRepository
	markers  repo.MarkerRepository
	projects repo.ProjectRepository
	envs     repo.EnvironmentRepository
	notifier notify.Notifier
	log      *slog.Logger

	now func() time.Time
}

func NewIngestor(
	runs repo.RunRepository,
	markers repo.MarkerRepository,
	projects repo.ProjectRepository,
	envs repo.EnvironmentRepository,
	notifier notify.Notifier,
	log *slog.Logger,
) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{
		runs:     runs,
		markers:  markers,
		projects: projects,
		envs:     envs,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Ingest parses the raw payload, applies the terminal update to the
// run identified by the payload's key pair, and publishes a summary.
// The update is a blind conditional write, so redelivery of the same
// payload converges to the same record. Notification failures are
// logged and swallowed.
func (i *Ingestor) Ingest(ctx context.Context, raw []byte) (report.Report, error) {
	if i == nil || i.runs == nil {
		return report.Report{}, errors.New("ingestor not initialized")
	}

	rep, err := report.Parse(raw)
	if err != nil {
		return report.Report{}, err
	}

	update := domain.ResultUpdate{
		Status:    rep.Status,
		Passed:    rep.Passed,
		Failed:    rep.Failed,
		Total:     rep.Total,
		Duration:  rep.Duration,
		UpdatedAt: domain.FormatTime(i.now()),
		Result:    rep.Outcomes,
	}
	if err := i.runs.ApplyResult(ctx, rep.PK, rep.SK, update); err != nil {
		return report.Report{}, fmt.Errorf("apply result %s/%s: %w", rep.PK, rep.SK, err)
	}

	i.publishSummary(ctx, rep)
	return rep, nil
}

// publishSummary is best effort. Any failure on the resolution chain
// (run, environment, topic, publish) logs and returns.
func (i *Ingestor) publishSummary(ctx context.Context, rep report.Report) {
	if i.notifier == nil {
		return
	}

	_, runID := keys.Decode(rep.PK)
	run, err := i.runs.GetRun(ctx, runID)
	if err != nil {
		i.log.Warn("skip notification: run lookup failed", "run_id", runID, "error", err)
		return
	}
	if run.TestEnvID == "" {
		i.log.Debug("skip notification: run has no target environment", "run_id", runID)
		return
	}
	env, err := i.envs.GetEnvironment(ctx, run.TestEnvID)
	if err != nil {
		i.log.Warn("skip notification: environment lookup failed",
			"run_id", runID, "test_env_id", run.TestEnvID, "error", err)
		return
	}
	if env.TopicHandle == "" {
		i.log.Warn("skip notification: environment has no topic", "test_env_id", env.ID)
		return
	}

	subject := fmt.Sprintf("%s %s on %s", glyph(rep.Status), run.MarkerID, env.Name)
	if err := i.notifier.Publish(ctx, env.TopicHandle, subject, i.summaryBody(ctx, run, env, rep)); err != nil {
		i.log.Warn("notification publish failed", "run_id", runID, "topic", env.TopicHandle, "error", err)
	}
}

func (i *Ingestor) summaryBody(ctx context.Context, run domain.TestRun, env domain.TestEnvironment, rep report.Report) string {
	projectName := run.MarkerID
	if marker, err := i.markers.GetMarker(ctx, run.MarkerID); err == nil {
		if project, err := i.projects.GetProject(ctx, marker.ProjectID); err == nil && project.Name != "" {
			projectName = project.Name
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", projectName)
	fmt.Fprintf(&b, "Target: %s (%s)\n", env.Name, env.Region)
	fmt.Fprintf(&b, "Result: %s %s, %d/%d passed, %d failed, %ds\n",
		glyph(rep.Status), rep.Status, rep.Passed, rep.Total, rep.Failed, rep.Duration)
	if len(run.Parameters) > 0 {
		b.WriteString("Parameters:\n")
		for _, p := range run.Parameters {
			fmt.Fprintf(&b, "  %s=%s\n", p.ParameterKey, p.ParameterValue)
		}
	}
	if excerpt := firstTrace(rep.Outcomes); excerpt != "" {
		fmt.Fprintf(&b, "Trace:\n%s\n", excerpt)
	}
	return b.String()
}

func glyph(status domain.RunStatus) string {
	if status == domain.RunStatusPass {
		return "✅"
	}
	return "❌"
}

// firstTrace returns the first failing test's trace, truncated. The
// sentinel placeholder is not worth publishing.
func firstTrace(outcomes []domain.TestOutcome) string {
	for _, outcome := range outcomes {
		if outcome.Outcome == "passed" {
			continue
		}
		if outcome.Trace == "" || outcome.Trace == report.Sentinel {
			continue
		}
		trace := outcome.Trace
		if len(trace) > traceExcerptLimit {
			trace = trace[:traceExcerptLimit] + "..."
		}
		return trace
	}
	return ""
}
