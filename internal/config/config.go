// Package config loads the ddsgate runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/ddsgate/internal/contract"
)

// Tool configures the coding tool subprocess the engine delegates
// code_change and code_fix executions to.
type Tool struct {
	Command        string `yaml:"command"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the subprocess deadline.
func (t Tool) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// Config holds all configurable ddsgate parameters.
type Config struct {
	// DataDir is the root for all state files. Relative state paths
	// below resolve against it.
	DataDir string `yaml:"data_dir"`

	ProposalsFile string `yaml:"proposals_file"`
	ReportsFile   string `yaml:"reports_file"`
	AuditFile     string `yaml:"audit_file"`
	WorkspacesDir string `yaml:"workspaces_dir"`
	SandboxDir    string `yaml:"sandbox_dir"`

	// SearchRoots are directories probed in order when resolving a
	// project name to a source tree.
	SearchRoots []string `yaml:"search_roots"`

	// AllowedUserIDs restricts chat-sourced requests. Empty means any
	// user id is accepted.
	AllowedUserIDs []string `yaml:"allowed_user_ids"`

	Tool Tool `yaml:"tool"`

	// Permissions maps request sources to the actions they may invoke.
	Permissions contract.Permissions `yaml:"permissions"`
}

// DefaultConfig returns the built-in configuration. State lives under
// ~/.ddsgate; the cli and chat sources get every action, mcp is
// read-only.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		DataDir:       filepath.Join(home, ".ddsgate"),
		ProposalsFile: "dds.json",
		ReportsFile:   "reports.json",
		AuditFile:     "audit.jsonl",
		WorkspacesDir: "workspaces",
		SandboxDir:    "sandbox",
		SearchRoots:   []string{".", "..", "projects"},
		Tool: Tool{
			Command:        "aider",
			TimeoutSeconds: 300,
		},
		Permissions: contract.DefaultPermissions(),
	}
}

// LoadConfig loads configuration from a YAML file.
// Empty path falls back to ~/.ddsgate/config.yaml.
// Missing file returns defaults. Invalid YAML returns an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return DefaultConfig(), nil
		}
		path = filepath.Join(home, ".ddsgate", "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Start with defaults, YAML overwrites only specified fields
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.Tool.TimeoutSeconds <= 0 {
		return nil, fmt.Errorf("config %s: tool timeout must be positive", path)
	}
	cfg.DataDir = expandHome(cfg.DataDir)
	return cfg, nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
		}
	}
	return p
}

// ProposalsPath returns the absolute proposal store path.
func (c *Config) ProposalsPath() string { return c.statePath(c.ProposalsFile) }

// ReportsPath returns the absolute execution report log path.
func (c *Config) ReportsPath() string { return c.statePath(c.ReportsFile) }

// AuditPath returns the absolute audit log path.
func (c *Config) AuditPath() string { return c.statePath(c.AuditFile) }

// WorkspacesPath returns the absolute workspace root.
func (c *Config) WorkspacesPath() string { return c.statePath(c.WorkspacesDir) }

// SandboxPath returns the absolute sandbox root for touch_file targets.
func (c *Config) SandboxPath() string { return c.statePath(c.SandboxDir) }

func (c *Config) statePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// UserAllowed reports whether requests attributed to userID are
// accepted from identity-carrying sources.
func (c *Config) UserAllowed(userID string) bool {
	if len(c.AllowedUserIDs) == 0 {
		return true
	}
	for _, id := range c.AllowedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// DefaultConfigYAML returns a commented YAML string for init.
func DefaultConfigYAML() string {
	return `# ddsgate configuration
# Generated by: ddsgate init
#
# All state paths below resolve against data_dir unless absolute.
data_dir: ~/.ddsgate

proposals_file: dds.json
reports_file: reports.json
audit_file: audit.jsonl
workspaces_dir: workspaces
sandbox_dir: sandbox

# Directories probed in order when resolving a project name.
search_roots:
  - "."
  - ".."
  - "projects"

# User ids accepted on identity-carrying sources (chat).
# Empty list = accept any user.
allowed_user_ids: []

# Coding tool invoked for code_change / code_fix executions.
tool:
  command: aider
  timeout_seconds: 300

# Per-source action permissions. "all" grants every action;
# otherwise list action names explicitly. Unlisted sources are
# denied everything.
permissions:
  cli: all
  chat: all
  mcp:
    - system_status
    - project_list
    - project_info
    - project_summary
    - inbox
    - dds_list
    - dds_list_proposed
    - exec_status
    - todo_list
`
}
