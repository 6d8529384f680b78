package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file looked up in the project root.
const FileName = "andrust.yaml"

// Config captures the per-project settings read from andrust.yaml.
type Config struct {
	Version int `yaml:"version"`
	// NDKRoot is tried before any other search strategy.
	NDKRoot string `yaml:"ndk_root,omitempty"`
	// MinRevision is a semver lower bound reported against the resolved NDK.
	MinRevision string `yaml:"min_revision,omitempty"`
	// Targets restricts the written stanzas. Empty means every known triple.
	Targets  []string       `yaml:"targets,omitempty"`
	Prompt   *bool          `yaml:"prompt,omitempty"`
	Download DownloadConfig `yaml:"download"`
}

// DownloadConfig controls the acquisition fallback.
type DownloadConfig struct {
	// URL overrides the host's default archive URL.
	URL string `yaml:"url,omitempty"`
	// Dir holds downloaded archives. Defaults to <data>/downloads.
	Dir string `yaml:"dir,omitempty"`
	// ExtractDir receives extracted archives. Defaults to <data>/ndk.
	ExtractDir  string `yaml:"extract_dir,omitempty"`
	Workers     int    `yaml:"workers,omitempty"`
	Timeout     string `yaml:"timeout,omitempty"`
	KeepArchive bool   `yaml:"keep_archive,omitempty"`
	Enabled     *bool  `yaml:"enabled,omitempty"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Version: 1,
		Prompt:  boolPtr(true),
		Download: DownloadConfig{
			Enabled: boolPtr(true),
		},
	}
}

// Load reads the YAML configuration from disk if it exists, otherwise returns
// the default configuration.
func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills fields the YAML left empty.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	if c.Version == 0 {
		c.Version = defaults.Version
	}
	if c.Prompt == nil {
		c.Prompt = defaults.Prompt
	}
	if c.Download.Enabled == nil {
		c.Download.Enabled = defaults.Download.Enabled
	}
	c.NDKRoot = strings.TrimSpace(c.NDKRoot)
	c.MinRevision = strings.TrimSpace(c.MinRevision)
	c.Download.URL = strings.TrimSpace(c.Download.URL)
}

// PromptEnabled reports whether the interactive prompt may be used.
func (c Config) PromptEnabled() bool {
	return c.Prompt == nil || *c.Prompt
}

// DownloadEnabled reports whether the acquisition fallback may be used.
func (c Config) DownloadEnabled() bool {
	return c.Download.Enabled == nil || *c.Download.Enabled
}

// TimeoutDuration parses download.timeout. Zero means no timeout.
func (d DownloadConfig) TimeoutDuration() (time.Duration, error) {
	value := strings.TrimSpace(d.Timeout)
	if value == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse download timeout: %w", err)
	}
	return dur, nil
}

// ResolvePaths makes relative directories absolute against projectRoot.
// Paths starting with ~ are left for the resolver to expand.
func (c *Config) ResolvePaths(projectRoot string) {
	c.NDKRoot = resolveProjectPath(projectRoot, c.NDKRoot)
	c.Download.Dir = resolveProjectPath(projectRoot, c.Download.Dir)
	c.Download.ExtractDir = resolveProjectPath(projectRoot, c.Download.ExtractDir)
}

// Marshal returns the YAML encoding of the configuration.
func (c Config) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}

func resolveProjectPath(root, value string) string {
	if value == "" || value == "~" || strings.HasPrefix(value, "~/") || filepath.IsAbs(value) {
		return value
	}
	return filepath.Join(root, value)
}

func boolPtr(v bool) *bool {
	return &v
}
