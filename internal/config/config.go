// Package config loads the server configuration file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Addr is the HTTP listen address for the chat websocket.
	Addr string `yaml:"addr"`
	// DataDir holds snapshots, the snapshot index and audit logs.
	DataDir string `yaml:"data_dir"`
	// CodeDir is the root of the system package tree.
	CodeDir string `yaml:"code_dir"`

	// SnapshotEverySeconds is the in-world period between periodic
	// snapshots; 0 disables them.
	SnapshotEverySeconds uint64 `yaml:"snapshot_every_seconds"`
	// AdvanceEveryMillis is the wall-clock interval at which game time
	// catches up and due timers fire.
	AdvanceEveryMillis int `yaml:"advance_every_millis"`

	// DisableIndex skips the SQLite snapshot index.
	DisableIndex bool `yaml:"disable_index"`
	// DisableAudit skips the JSONL message audit log.
	DisableAudit bool `yaml:"disable_audit"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("server.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("server.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Addr:                 ":8080",
		DataDir:              "data",
		CodeDir:              "code",
		SnapshotEverySeconds: 300,
		AdvanceEveryMillis:   100,
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = ":8080"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "data"
	}
	if strings.TrimSpace(c.CodeDir) == "" {
		c.CodeDir = "code"
	}
	if c.AdvanceEveryMillis <= 0 {
		c.AdvanceEveryMillis = 100
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if strings.TrimSpace(c.CodeDir) == "" {
		return fmt.Errorf("code_dir must not be empty")
	}
	if c.AdvanceEveryMillis <= 0 {
		return fmt.Errorf("advance_every_millis must be > 0")
	}
	return nil
}

func (c Config) AdvanceEvery() time.Duration {
	return time.Duration(c.AdvanceEveryMillis) * time.Millisecond
}
