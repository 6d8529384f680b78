package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Masterminds/semver/v3"

	"andrust/internal/toolset"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

// Validate checks the configuration and returns structured findings.
func (c Config) Validate() []ValidationResult {
	var results []ValidationResult
	results = append(results, c.validateVersion()...)
	results = append(results, c.validateMinRevision()...)
	results = append(results, c.validateTargets()...)
	results = append(results, c.validateDownload()...)
	return results
}

// HasErrors reports whether any finding is an error.
func HasErrors(results []ValidationResult) bool {
	for _, r := range results {
		if r.Level == "error" {
			return true
		}
	}
	return false
}

func (c Config) validateVersion() []ValidationResult {
	if c.Version != 1 {
		return []ValidationResult{{
			Level:   "error",
			Message: fmt.Sprintf("unsupported config version %d", c.Version),
		}}
	}
	return nil
}

func (c Config) validateMinRevision() []ValidationResult {
	if c.MinRevision == "" {
		return nil
	}
	if _, err := semver.NewVersion(c.MinRevision); err != nil {
		return []ValidationResult{{
			Level:   "error",
			Message: fmt.Sprintf("min_revision %q is not a version: %v", c.MinRevision, err),
		}}
	}
	return nil
}

func (c Config) validateTargets() []ValidationResult {
	known := make(map[string]bool)
	for _, t := range toolset.KnownTriples() {
		known[string(t)] = true
	}

	var results []ValidationResult
	seen := make(map[string]bool, len(c.Targets))
	for _, target := range c.Targets {
		name := strings.TrimSpace(target)
		switch {
		case !known[name]:
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("unknown target %q", target),
			})
		case seen[name]:
			results = append(results, ValidationResult{
				Level:   "warning",
				Message: fmt.Sprintf("target %q listed more than once", name),
			})
		}
		seen[name] = true
	}
	return results
}

func (c Config) validateDownload() []ValidationResult {
	var results []ValidationResult
	d := c.Download
	if d.URL != "" {
		parsed, err := url.Parse(d.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("download url %q must be an absolute http(s) url", d.URL),
			})
		}
	}
	if d.Workers < 0 {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: "download workers must be >= 0",
		})
	}
	if dur, err := d.TimeoutDuration(); err != nil {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: err.Error(),
		})
	} else if dur < 0 {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: "download timeout must not be negative",
		})
	}
	if !c.DownloadEnabled() && (d.URL != "" || d.KeepArchive) {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: "download settings are ignored while download.enabled is false",
		})
	}
	return results
}

// SelectedTriples returns the configured targets, or every known triple.
func (c Config) SelectedTriples() []toolset.Triple {
	if len(c.Targets) == 0 {
		return toolset.KnownTriples()
	}
	seen := make(map[toolset.Triple]bool, len(c.Targets))
	var out []toolset.Triple
	for _, target := range c.Targets {
		t := toolset.Triple(strings.TrimSpace(target))
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
