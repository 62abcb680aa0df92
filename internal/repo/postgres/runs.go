package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stackcheck-labs/stackcheck-go/internal/domain"
	"github.com/stackcheck-labs/stackcheck-go/internal/keys"
	"github.com/stackcheck-labs/stackcheck-go/internal/repo"
)

type RunStore struct {
	db DB
}

func NewRunStore(db DB) *RunStore {
	if db == nil {
		return nil
	}
	return &RunStore{db: db}
}

type runAttrs struct {
	Parameters []domain.Parameter `json:"parameters"`
	TestEnvID  string             `json:"test_env_id,omitempty"`
	JobHandle  string             `json:"job_handle,omitempty"`
	Passed     int64              `json:"passed"`
	Failed     int64              `json:"failed"`
	Total      int64              `json:"total"`
}

func (s *RunStore) CreateRun(ctx context.Context, run domain.TestRun) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	if err := run.Validate(); err != nil {
		return err
	}
	attrsJSON, err := encodeAttrs(runAttrs{
		Parameters: run.Parameters,
		TestEnvID:  strings.TrimSpace(run.TestEnvID),
		JobHandle:  strings.TrimSpace(run.JobHandle),
		Passed:     run.Passed,
		Failed:     run.Failed,
		Total:      run.Total,
	})
	if err != nil {
		return fmt.Errorf("encode run attrs: %w", err)
	}
	updatedAt := run.UpdatedAt
	if strings.TrimSpace(updatedAt) == "" {
		updatedAt = run.CreatedAt
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO records (
			pk,
			sk,
			entity_type,
			created_at,
			updated_at,
			status,
			duration,
			attrs
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		keys.Encode(domain.EntityTypeRun, strings.TrimSpace(run.ID)),
		keys.Encode(domain.EntityTypeMarker, strings.TrimSpace(run.MarkerID)),
		string(domain.EntityTypeRun),
		run.CreatedAt,
		updatedAt,
		string(run.Status),
		run.Duration,
		attrsJSON,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

const runColumns = `pk, sk, created_at, updated_at, status, duration, attrs, result`

func (s *RunStore) GetRun(ctx context.Context, id string) (domain.TestRun, error) {
	if s == nil || s.db == nil {
		return domain.TestRun{}, fmt.Errorf("run store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.TestRun{}, fmt.Errorf("run id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+runColumns+`
		 FROM records
		 WHERE pk = $1 AND entity_type = $2`,
		keys.Encode(domain.EntityTypeRun, id),
		string(domain.EntityTypeRun),
	)
	run, err := scanRun(row)
	if err != nil {
		return domain.TestRun{}, handleNotFound(err)
	}
	return run, nil
}

func (s *RunStore) ListRunsByMarker(ctx context.Context, markerID string, limit int) ([]domain.TestRun, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("run store not initialized")
	}
	markerID = strings.TrimSpace(markerID)
	if markerID == "" {
		return nil, fmt.Errorf("marker id is required")
	}
	query := `SELECT ` + runColumns + `
		FROM records
		WHERE sk = $1 AND entity_type = $2
		ORDER BY created_at DESC`
	args := []any{
		keys.Encode(domain.EntityTypeMarker, markerID),
		string(domain.EntityTypeRun),
	}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.TestRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (s *RunStore) ApplyResult(ctx context.Context, pk, sk string, update domain.ResultUpdate) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	pk = strings.TrimSpace(pk)
	sk = strings.TrimSpace(sk)
	if pk == "" || sk == "" {
		return fmt.Errorf("key pair is required")
	}
	if err := update.Validate(); err != nil {
		return err
	}
	result := update.Result
	if result == nil {
		result = []domain.TestOutcome{}
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	countsJSON, err := json.Marshal(map[string]int64{
		"passed": update.Passed,
		"failed": update.Failed,
		"total":  update.Total,
	})
	if err != nil {
		return fmt.Errorf("encode counts: %w", err)
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE records
		 SET status = $1,
		     duration = $2,
		     updated_at = $3,
		     result = $4,
		     attrs = attrs || $5
		 WHERE pk = $6 AND sk = $7 AND entity_type = $8`,
		string(update.Status),
		update.Duration,
		update.UpdatedAt,
		resultJSON,
		countsJSON,
		pk,
		sk,
		string(domain.EntityTypeRun),
	)
	if err != nil {
		return fmt.Errorf("apply result: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply result: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (domain.TestRun, error) {
	var run domain.TestRun
	var pk, sk string
	var status string
	var attrsJSON []byte
	var resultJSON []byte
	if err := row.Scan(&pk, &sk, &run.CreatedAt, &run.UpdatedAt, &status, &run.Duration, &attrsJSON, &resultJSON); err != nil {
		return domain.TestRun{}, err
	}
	_, run.ID = keys.Decode(pk)
	_, run.MarkerID = keys.Decode(sk)
	run.Status = domain.RunStatus(status)

	var attrs runAttrs
	if err := decodeAttrs(attrsJSON, &attrs); err != nil {
		return domain.TestRun{}, fmt.Errorf("decode run attrs: %w", err)
	}
	run.Parameters = attrs.Parameters
	run.TestEnvID = attrs.TestEnvID
	run.JobHandle = attrs.JobHandle
	run.Passed = attrs.Passed
	run.Failed = attrs.Failed
	run.Total = attrs.Total

	if len(resultJSON) > 0 {
		var outcomes []domain.TestOutcome
		if err := json.Unmarshal(resultJSON, &outcomes); err != nil {
			return domain.TestRun{}, fmt.Errorf("decode run result: %w", err)
		}
		run.Result = outcomes
	}
	return run, nil
}
