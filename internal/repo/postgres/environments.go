package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/stackcheck-labs/stackcheck-go/internal/domain"
	"github.com/stackcheck-labs/stackcheck-go/internal/keys"
	"github.com/stackcheck-labs/stackcheck-go/internal/repo"
)

type EnvironmentStore struct {
	db DB
}

func NewEnvironmentStore(db DB) *EnvironmentStore {
	if db == nil {
		return nil
	}
	return &EnvironmentStore{db: db}
}

type environmentAttrs struct {
	Name        string `json:"name,omitempty"`
	Region      string `json:"region"`
	AccountID   string `json:"account_id"`
	StackName   string `json:"stack_name"`
	TopicHandle string `json:"topic_handle,omitempty"`
	AlarmEmail  string `json:"alarm_email,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
}

// UpsertEnvironment writes an environment keyed on its derived id.
// Re-importing the same physical environment overwrites in place.
func (s *EnvironmentStore) UpsertEnvironment(ctx context.Context, env domain.TestEnvironment) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("environment store not initialized")
	}
	if err := env.Validate(); err != nil {
		return err
	}
	attrsJSON, err := encodeAttrs(environmentAttrs{
		Name:        strings.TrimSpace(env.Name),
		Region:      strings.TrimSpace(env.Region),
		AccountID:   strings.TrimSpace(env.AccountID),
		StackName:   strings.TrimSpace(env.StackName),
		TopicHandle: strings.TrimSpace(env.TopicHandle),
		AlarmEmail:  strings.TrimSpace(env.AlarmEmail),
		ProjectID:   strings.TrimSpace(env.ProjectID),
	})
	if err != nil {
		return fmt.Errorf("encode environment attrs: %w", err)
	}
	key := keys.Encode(domain.EntityTypeEnvironment, strings.TrimSpace(env.ID))
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO records (
			pk,
			sk,
			entity_type,
			created_at,
			updated_at,
			attrs
		) VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (pk, sk) DO UPDATE
		SET updated_at = EXCLUDED.updated_at,
		    attrs = EXCLUDED.attrs`,
		key,
		key,
		string(domain.EntityTypeEnvironment),
		env.CreatedAt,
		env.CreatedAt,
		attrsJSON,
	)
	if err != nil {
		return fmt.Errorf("upsert environment: %w", err)
	}
	return nil
}

func (s *EnvironmentStore) GetEnvironment(ctx context.Context, id string) (domain.TestEnvironment, error) {
	if s == nil || s.db == nil {
		return domain.TestEnvironment{}, fmt.Errorf("environment store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.TestEnvironment{}, fmt.Errorf("environment id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT pk, created_at, attrs
		 FROM records
		 WHERE pk = $1 AND entity_type = $2`,
		keys.Encode(domain.EntityTypeEnvironment, id),
		string(domain.EntityTypeEnvironment),
	)
	env, err := scanEnvironment(row)
	if err != nil {
		return domain.TestEnvironment{}, handleNotFound(err)
	}
	return env, nil
}

func (s *EnvironmentStore) ListEnvironments(ctx context.Context) ([]domain.TestEnvironment, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("environment store not initialized")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT pk, created_at, attrs
		 FROM records
		 WHERE entity_type = $1
		 ORDER BY created_at DESC`,
		string(domain.EntityTypeEnvironment),
	)
	if err != nil {
		return nil, fmt.Errorf("list environments: %w", err)
	}
	defer rows.Close()

	envs := make([]domain.TestEnvironment, 0)
	for rows.Next() {
		env, err := scanEnvironment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan environment: %w", err)
		}
		envs = append(envs, env)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list environments: %w", err)
	}
	return envs, nil
}

func (s *EnvironmentStore) DeleteEnvironment(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("environment store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("environment id is required")
	}
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM records WHERE pk = $1 AND entity_type = $2`,
		keys.Encode(domain.EntityTypeEnvironment, id),
		string(domain.EntityTypeEnvironment),
	)
	if err != nil {
		return fmt.Errorf("delete environment: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete environment: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func scanEnvironment(row rowScanner) (domain.TestEnvironment, error) {
	var env domain.TestEnvironment
	var pk string
	var attrsJSON []byte
	if err := row.Scan(&pk, &env.CreatedAt, &attrsJSON); err != nil {
		return domain.TestEnvironment{}, err
	}
	_, env.ID = keys.Decode(pk)

	var attrs environmentAttrs
	if err := decodeAttrs(attrsJSON, &attrs); err != nil {
		return domain.TestEnvironment{}, fmt.Errorf("decode environment attrs: %w", err)
	}
	env.Name = attrs.Name
	env.Region = attrs.Region
	env.AccountID = attrs.AccountID
	env.StackName = attrs.StackName
	env.TopicHandle = attrs.TopicHandle
	env.AlarmEmail = attrs.AlarmEmail
	env.ProjectID = attrs.ProjectID
	return env, nil
}
