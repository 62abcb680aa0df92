// Package query serves the read side: checkpoints, run history, and
// single-run lookups. Nothing here mutates state.
package query

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/stackcheck-labs/stackcheck-go/internal/domain"
	"github.com/stackcheck-labs/stackcheck-go/internal/repo"
)

// Checkpoint is one marker's latest known state. Markers that never
// ran report UNKNOWN.
type Checkpoint struct {
	MarkerID  string           `json:"markerId"`
	Status    domain.RunStatus `json:"status"`
	RunID     string           `json:"runId,omitempty"`
	UpdatedAt string           `json:"updatedAt,omitempty"`
}

type Service struct {
	runs    repo.RunRepository
	markers repo.MarkerRepository
}

func NewService(runs repo.RunRepository, markers repo.MarkerRepository) *Service {
	return &Service{runs: runs, markers: markers}
}

// ListCheckpoints reports the latest run status of every marker,
// sorted by marker id. The listing enumerates all markers; the
// per-marker lookup rides the creation-time index.
func (s *Service) ListCheckpoints(ctx context.Context, page, count int) (Page[Checkpoint], error) {
	if s == nil || s.markers == nil {
		return Page[Checkpoint]{}, errors.New("query service not initialized")
	}

	markers, err := s.markers.ListMarkers(ctx)
	if err != nil {
		return Page[Checkpoint]{}, fmt.Errorf("list markers: %w", err)
	}

	checkpoints := make([]Checkpoint, 0, len(markers))
	for _, marker := range markers {
		checkpoint := Checkpoint{MarkerID: marker.ID, Status: domain.RunStatusUnknown}
		runs, err := s.runs.ListRunsByMarker(ctx, marker.ID, 1)
		if err != nil {
			return Page[Checkpoint]{}, fmt.Errorf("latest run for %s: %w", marker.ID, err)
		}
		if len(runs) > 0 {
			checkpoint.Status = runs[0].Status
			checkpoint.RunID = runs[0].ID
			checkpoint.UpdatedAt = runs[0].UpdatedAt
		}
		checkpoints = append(checkpoints, checkpoint)
	}
	sort.Slice(checkpoints, func(i, j int) bool {
		return checkpoints[i].MarkerID < checkpoints[j].MarkerID
	})
	return paginate(checkpoints, page, count), nil
}

// ListHistory returns a marker's runs newest-first.
func (s *Service) ListHistory(ctx context.Context, markerID string, page, count int) (Page[domain.TestRun], error) {
	if s == nil || s.runs == nil {
		return Page[domain.TestRun]{}, errors.New("query service not initialized")
	}

	runs, err := s.runs.ListRunsByMarker(ctx, markerID, 0)
	if err != nil {
		return Page[domain.TestRun]{}, fmt.Errorf("list runs for %s: %w", markerID, err)
	}
	return paginate(runs, page, count), nil
}

// GetRun returns a single run. Missing runs surface repo.ErrNotFound.
func (s *Service) GetRun(ctx context.Context, id string) (domain.TestRun, error) {
	if s == nil || s.runs == nil {
		return domain.TestRun{}, errors.New("query service not initialized")
	}
	return s.runs.GetRun(ctx, id)
}
