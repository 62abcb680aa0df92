package domain

import (
	"errors"
	"strings"
)

// Project groups markers and carries the static build metadata the
// launcher forwards to the external job. Immutable in this service.
type Project struct {
	ID        string
	Name      string
	Type      string
	SourceRef string
	Branch    string
	Region    string
	CreatedAt string
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("project id is required")
	}
	if strings.TrimSpace(p.Type) == "" {
		return errors.New("project type is required")
	}
	return nil
}
