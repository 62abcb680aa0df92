package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/stackcheck-labs/stackcheck-go/internal/domain"
	"github.com/stackcheck-labs/stackcheck-go/internal/keys"
)

type MarkerStore struct {
	db DB
}

func NewMarkerStore(db DB) *MarkerStore {
	if db == nil {
		return nil
	}
	return &MarkerStore{db: db}
}

type markerAttrs struct {
	Name  string `json:"name,omitempty"`
	Model string `json:"model,omitempty"`
}

func (s *MarkerStore) GetMarker(ctx context.Context, id string) (domain.Marker, error) {
	if s == nil || s.db == nil {
		return domain.Marker{}, fmt.Errorf("marker store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Marker{}, fmt.Errorf("marker id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT pk, sk, created_at, attrs
		 FROM records
		 WHERE pk = $1 AND entity_type = $2`,
		keys.Encode(domain.EntityTypeMarker, id),
		string(domain.EntityTypeMarker),
	)
	marker, err := scanMarker(row)
	if err != nil {
		return domain.Marker{}, handleNotFound(err)
	}
	return marker, nil
}

func (s *MarkerStore) ListMarkers(ctx context.Context) ([]domain.Marker, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("marker store not initialized")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT pk, sk, created_at, attrs
		 FROM records
		 WHERE entity_type = $1
		 ORDER BY pk`,
		string(domain.EntityTypeMarker),
	)
	if err != nil {
		return nil, fmt.Errorf("list markers: %w", err)
	}
	defer rows.Close()

	markers := make([]domain.Marker, 0)
	for rows.Next() {
		marker, err := scanMarker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan marker: %w", err)
		}
		markers = append(markers, marker)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list markers: %w", err)
	}
	return markers, nil
}

func scanMarker(row rowScanner) (domain.Marker, error) {
	var marker domain.Marker
	var pk, sk string
	var attrsJSON []byte
	if err := row.Scan(&pk, &sk, &marker.CreatedAt, &attrsJSON); err != nil {
		return domain.Marker{}, err
	}
	_, marker.ID = keys.Decode(pk)
	_, marker.ProjectID = keys.Decode(sk)

	var attrs markerAttrs
	if err := decodeAttrs(attrsJSON, &attrs); err != nil {
		return domain.Marker{}, fmt.Errorf("decode marker attrs: %w", err)
	}
	marker.Name = attrs.Name
	marker.Model = attrs.Model
	return marker, nil
}
