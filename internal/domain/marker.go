package domain

import (
	"errors"
	"strings"
)

// Marker is a named test-suite definition owned by one project.
// Markers are administered outside this service and read-only here.
type Marker struct {
	ID        string
	Name      string
	ProjectID string
	Model     string
	CreatedAt string
}

func (m Marker) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return errors.New("marker id is required")
	}
	if strings.TrimSpace(m.ProjectID) == "" {
		return errors.New("project id is required")
	}
	return nil
}
