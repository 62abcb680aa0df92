package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/stackcheck-labs/stackcheck-go/internal/domain"
	"github.com/stackcheck-labs/stackcheck-go/internal/keys"
)

type ProjectStore struct {
	db DB
}

func NewProjectStore(db DB) *ProjectStore {
	if db == nil {
		return nil
	}
	return &ProjectStore{db: db}
}

type projectAttrs struct {
	Name      string `json:"name,omitempty"`
	Type      string `json:"type"`
	SourceRef string `json:"source_ref,omitempty"`
	Branch    string `json:"branch,omitempty"`
	Region    string `json:"region,omitempty"`
}

func (s *ProjectStore) GetProject(ctx context.Context, id string) (domain.Project, error) {
	if s == nil || s.db == nil {
		return domain.Project{}, fmt.Errorf("project store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Project{}, fmt.Errorf("project id is required")
	}
	var project domain.Project
	var pk string
	var attrsJSON []byte
	row := s.db.QueryRowContext(
		ctx,
		`SELECT pk, created_at, attrs
		 FROM records
		 WHERE pk = $1 AND entity_type = $2`,
		keys.Encode(domain.EntityTypeProject, id),
		string(domain.EntityTypeProject),
	)
	if err := row.Scan(&pk, &project.CreatedAt, &attrsJSON); err != nil {
		return domain.Project{}, handleNotFound(err)
	}
	_, project.ID = keys.Decode(pk)

	var attrs projectAttrs
	if err := decodeAttrs(attrsJSON, &attrs); err != nil {
		return domain.Project{}, fmt.Errorf("decode project attrs: %w", err)
	}
	project.Name = attrs.Name
	project.Type = attrs.Type
	project.SourceRef = attrs.SourceRef
	project.Branch = attrs.Branch
	project.Region = attrs.Region
	return project, nil
}
