// Package config reads and writes bankfeed.yaml, the per-workspace
// configuration: import profiles (column-role mappings per bank export
// format), matching thresholds, rule store backing and git options.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level bankfeed.yaml configuration.
type Config struct {
	Workspace  WorkspaceConfig  `yaml:"workspace"`
	Profiles   []ImportProfile  `yaml:"import_profiles,omitempty"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Store      StoreConfig      `yaml:"store"`
	Git        GitConfig        `yaml:"git"`
	LogLevel   string           `yaml:"log_level,omitempty"`
}

// WorkspaceConfig identifies the workspace that owns rules and ledger.
type WorkspaceConfig struct {
	Name string `yaml:"name"`
}

// ImportProfile maps one bank export format's columns to roles. Date,
// description and amount are required; merchant and category columns are
// optional because many exports lack them.
type ImportProfile struct {
	Name              string `yaml:"name"`
	DateColumn        string `yaml:"date_column"`
	DescriptionColumn string `yaml:"description_column"`
	MerchantColumn    string `yaml:"merchant_column,omitempty"`
	AmountColumn      string `yaml:"amount_column"`
	CategoryColumn    string `yaml:"category_column,omitempty"`
	DateLayout        string `yaml:"date_layout"` // Go reference layout
	InvertSign        bool   `yaml:"invert_sign,omitempty"`
}

// ThresholdsConfig controls bucket assignment.
type ThresholdsConfig struct {
	// Ready is the minimum confidence for the ready bucket.
	Ready float64 `yaml:"ready"`
}

// StoreConfig selects the rule store backing.
type StoreConfig struct {
	// Backend is "file" or "postgres".
	Backend     string `yaml:"backend"`
	PostgresDSN string `yaml:"postgres_dsn,omitempty"`
}

// GitConfig controls git integration for the data directory.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a bankfeed.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Profile returns the named import profile.
func (c *Config) Profile(name string) (ImportProfile, bool) {
	for _, p := range c.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return ImportProfile{}, false
}

// Default returns a Config with sensible defaults for a new workspace.
func Default(workspaceName string) *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Name: workspaceName,
		},
		Profiles: []ImportProfile{
			{
				Name:              "chase-checking",
				DateColumn:        "Posting Date",
				DescriptionColumn: "Description",
				AmountColumn:      "Amount",
				DateLayout:        "01/02/2006",
			},
		},
		Thresholds: ThresholdsConfig{
			Ready: 0.90,
		},
		Store: StoreConfig{
			Backend: "file",
		},
		Git: GitConfig{
			AutoCommit:  false,
			AuthorName:  "Bankfeed",
			AuthorEmail: "bankfeed@localhost",
		},
		LogLevel: "info",
	}
}
