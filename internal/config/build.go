package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BuildStep is one subprocess run inside a project directory
type BuildStep struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// BuildProfile describes how framework projects are built before publishing
type BuildProfile struct {
	Steps     []BuildStep `yaml:"steps"`
	OutputDir string      `yaml:"output_dir"`
	// Timeout bounds a whole build, e.g. "5m". Empty means no limit.
	Timeout string `yaml:"timeout"`

	timeout time.Duration
}

// DefaultBuildProfile returns the npm based profile used when no file is configured
func DefaultBuildProfile() *BuildProfile {
	return &BuildProfile{
		Steps: []BuildStep{
			{Command: "npm", Args: []string{"install"}},
			{Command: "npm", Args: []string{"run", "build"}},
		},
		OutputDir: "dist",
		Timeout:   "10m",
		timeout:   10 * time.Minute,
	}
}

// LoadBuildProfile reads a YAML build profile. An empty path yields DefaultBuildProfile.
func LoadBuildProfile(path string) (*BuildProfile, error) {
	if path == "" {
		return DefaultBuildProfile(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	profile := &BuildProfile{}
	if err := yaml.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("error parsing build profile %s: %w", path, err)
	}

	if err := profile.validate(); err != nil {
		return nil, fmt.Errorf("invalid build profile %s: %w", path, err)
	}

	return profile, nil
}

// GetTimeout returns the parsed build timeout, zero when unbounded
func (p *BuildProfile) GetTimeout() time.Duration {
	return p.timeout
}

func (p *BuildProfile) validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	for i, step := range p.Steps {
		if step.Command == "" {
			return fmt.Errorf("step %d has no command", i)
		}
	}
	if p.OutputDir == "" {
		p.OutputDir = "dist"
	}
	if p.Timeout != "" {
		d, err := time.ParseDuration(p.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("timeout must not be negative")
		}
		p.timeout = d
	}
	return nil
}
