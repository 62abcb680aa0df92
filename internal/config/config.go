// Package config loads the orchestration config file: the exclusivity
// map between markers and the per-project-type parameter mappings.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultExclusionWindow = 30 * time.Minute
	DefaultRecentRuns      = 5
)

// ProjectType describes how caller parameters map onto the external
// build job's environment variables for one project type. Keys absent
// from the map pass through verbatim.
type ProjectType struct {
	ParamMap map[string]string `yaml:"paramMap"`
}

type Config struct {
	// ExclusionWindow is how long a RUNNING run keeps blocking
	// conflicting admissions.
	ExclusionWindow time.Duration

	// RecentRuns bounds how many latest runs the guard fetches per
	// group member.
	RecentRuns int

	// ExclusiveWith maps a marker id to the marker ids it must not
	// run concurrently with. Membership is directional: only the
	// requested marker's entry is consulted, so cross-blocking is
	// explicit per entry, never inferred.
	ExclusiveWith map[string][]string

	ProjectTypes map[string]ProjectType
}

type fileConfig struct {
	Window        string                 `yaml:"window"`
	RecentRuns    int                    `yaml:"recentRuns"`
	ExclusiveWith map[string][]string    `yaml:"exclusiveWith"`
	ProjectTypes  map[string]ProjectType `yaml:"projectTypes"`
}

func Default() Config {
	return Config{
		ExclusionWindow: DefaultExclusionWindow,
		RecentRuns:      DefaultRecentRuns,
		ExclusiveWith:   map[string][]string{},
		ProjectTypes:    map[string]ProjectType{},
	}
}

// Load reads the config file. An empty path yields defaults: no
// exclusivity relationships and no project types.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if strings.TrimSpace(fc.Window) != "" {
		window, err := time.ParseDuration(fc.Window)
		if err != nil {
			return Config{}, fmt.Errorf("parse window: %w", err)
		}
		cfg.ExclusionWindow = window
	}
	if fc.RecentRuns > 0 {
		cfg.RecentRuns = fc.RecentRuns
	}
	if fc.ExclusiveWith != nil {
		cfg.ExclusiveWith = fc.ExclusiveWith
	}
	if fc.ProjectTypes != nil {
		cfg.ProjectTypes = fc.ProjectTypes
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ExclusionWindow <= 0 {
		return fmt.Errorf("window must be positive")
	}
	if c.RecentRuns < 1 {
		return fmt.Errorf("recentRuns must be >= 1")
	}
	for marker, group := range c.ExclusiveWith {
		if strings.TrimSpace(marker) == "" {
			return fmt.Errorf("exclusiveWith entry with empty marker id")
		}
		for _, member := range group {
			if strings.TrimSpace(member) == "" {
				return fmt.Errorf("exclusiveWith[%s] contains an empty marker id", marker)
			}
		}
	}
	return nil
}

// Group returns the exclusivity group of a marker. Markers without an
// entry have no exclusivity relationships.
func (c Config) Group(markerID string) []string {
	return c.ExclusiveWith[markerID]
}
