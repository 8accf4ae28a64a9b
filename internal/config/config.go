// Package config loads netpipe settings from YAML or TOML.
package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/corbin-r/net-pipe/internal/alert"
	"github.com/corbin-r/net-pipe/internal/checksum"
	"github.com/corbin-r/net-pipe/internal/driver"
	"github.com/corbin-r/net-pipe/internal/logging"
	"github.com/corbin-r/net-pipe/internal/pipe"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// PipeConfig sets the shape of channels opened by the server.
type PipeConfig struct {
	Width      int   `yaml:"width" toml:"width"`
	MaxOutflow int64 `yaml:"max_outflow" toml:"max_outflow"`
}

// ChecksumConfig selects the signature algorithm.
type ChecksumConfig struct {
	Algorithm string `yaml:"algorithm" toml:"algorithm"`
}

// PreconditionConfig controls explicit-mode driver checks.
type PreconditionConfig struct {
	Timeout      time.Duration `yaml:"timeout" toml:"timeout"`
	Shell        string        `yaml:"shell" toml:"shell"`
	DenyCommands []string      `yaml:"deny_commands" toml:"deny_commands"`
}

// DriverConfig is one catalog entry.
type DriverConfig struct {
	Name      string `yaml:"name" toml:"name"`
	Command   string `yaml:"command" toml:"command"`
	Condition uint32 `yaml:"condition" toml:"condition"`
}

// ServerConfig holds listen addresses.
type ServerConfig struct {
	Addr        string `yaml:"addr" toml:"addr"`
	MetricsAddr string `yaml:"metrics_addr" toml:"metrics_addr"`
}

// AuditConfig locates the audit log. An empty path disables auditing.
type AuditConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// LogConfig sets the process log level.
type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// Config holds all netpipe settings.
type Config struct {
	Pipe         PipeConfig         `yaml:"pipe" toml:"pipe"`
	Checksum     ChecksumConfig     `yaml:"checksum" toml:"checksum"`
	Precondition PreconditionConfig `yaml:"precondition" toml:"precondition"`
	Drivers      []DriverConfig     `yaml:"drivers" toml:"drivers"`
	Server       ServerConfig       `yaml:"server" toml:"server"`
	Audit        AuditConfig        `yaml:"audit" toml:"audit"`
	Log          LogConfig          `yaml:"log" toml:"log"`
	Alerts       []alert.Config     `yaml:"alerts" toml:"alerts"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Pipe:     PipeConfig{Width: int(pipe.Width32), MaxOutflow: pipe.MaxPipeOutflow},
		Checksum: ChecksumConfig{Algorithm: string(checksum.DefaultAlgorithm)},
		Precondition: PreconditionConfig{
			Timeout:      driver.DefaultPreconditionTimeout,
			Shell:        "/bin/sh",
			DenyCommands: append([]string(nil), driver.DefaultDenyCommands...),
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:7465",
			MetricsAddr: "127.0.0.1:7466",
		},
		Log: LogConfig{Level: "info"},
	}
}

// DefaultPath is ~/.netpipe/netpipe.yaml, or "" when the home directory
// cannot be resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".netpipe", "netpipe.yaml")
}

// Load reads the config at path. Empty path falls back to DefaultPath.
// A missing file returns defaults. Files ending in .toml are parsed as
// TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash is Load plus the SHA-256 of the raw file bytes. When
// defaults are used the hash is that of empty input.
func LoadWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	var data []byte
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("failed to read config: %w", err)
		}
		data = raw
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, hash, nil
	}
	if err := decode(path, data, cfg); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, hash, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings no channel could be opened with.
func (c *Config) Validate() error {
	if !pipe.Width(c.Pipe.Width).Valid() {
		return fmt.Errorf("%w: pipe.width %d (want 16, 32 or 64)", ErrInvalid, c.Pipe.Width)
	}
	if c.Pipe.MaxOutflow <= 0 {
		return fmt.Errorf("%w: pipe.max_outflow must be positive, got %d", ErrInvalid, c.Pipe.MaxOutflow)
	}
	if _, err := checksum.ParseAlgorithm(c.Checksum.Algorithm); err != nil {
		return fmt.Errorf("%w: checksum.algorithm: %v", ErrInvalid, err)
	}
	if c.Precondition.Timeout < 0 {
		return fmt.Errorf("%w: precondition.timeout must not be negative", ErrInvalid)
	}
	if c.Log.Level != "" {
		if _, ok := logging.ParseLevel(c.Log.Level); !ok {
			return fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
		}
	}
	seen := make(map[string]bool, len(c.Drivers))
	for i, d := range c.Drivers {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return fmt.Errorf("%w: drivers[%d] has no name", ErrInvalid, i)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate driver %q", ErrInvalid, name)
		}
		seen[name] = true
	}
	for i, a := range c.Alerts {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("%w: alerts[%d]: %v", ErrInvalid, i, err)
		}
	}
	return nil
}

// Width returns the configured pipe width.
func (c *Config) Width() pipe.Width { return pipe.Width(c.Pipe.Width) }

// Algorithm returns the configured signature algorithm, falling back to
// the default on an unparseable name.
func (c *Config) Algorithm() checksum.Algorithm {
	a, err := checksum.ParseAlgorithm(c.Checksum.Algorithm)
	if err != nil {
		return checksum.DefaultAlgorithm
	}
	return a
}

// Catalog builds the driver catalog. With no drivers configured it
// returns nil: any named driver may attach forced, none explicit.
func (c *Config) Catalog() driver.MapCatalog {
	if len(c.Drivers) == 0 {
		return nil
	}
	refs := make([]driver.Ref, 0, len(c.Drivers))
	for _, d := range c.Drivers {
		refs = append(refs, driver.Ref{
			Name:         d.Name,
			Precondition: driver.Request{Condition: d.Condition, Command: d.Command},
		})
	}
	return driver.NewMapCatalog(refs...)
}

// Evaluator builds the shell evaluator for explicit attach.
func (c *Config) Evaluator() *driver.ExecEvaluator {
	return &driver.ExecEvaluator{Shell: c.Precondition.Shell, Deny: c.Precondition.DenyCommands}
}

// ChannelOptions returns the pipe options every server channel is opened with.
// Preconditions only ever come from the drivers section: without one the
// channel gets no evaluator and explicit attach is refused.
func (c *Config) ChannelOptions() []pipe.Option {
	opts := []pipe.Option{
		pipe.WithMaxOutflow(c.Pipe.MaxOutflow),
		pipe.WithPreconditionTimeout(c.Precondition.Timeout),
	}
	if cat := c.Catalog(); cat != nil {
		opts = append(opts, pipe.WithCatalog(cat), pipe.WithEvaluator(c.Evaluator()))
	}
	return opts
}

// DefaultYAML returns a commented starting config.
func DefaultYAML() string {
	return `# netpipe configuration

pipe:
  # 16, 32 or 64. Packets may be up to twice the width.
  width: 32
  # bytes a channel may move before it must be closed
  max_outflow: 1024

checksum:
  # crc32 | castagnoli | murmur3
  algorithm: crc32

precondition:
  timeout: 5s
  shell: /bin/sh

# drivers:
#   - name: nic0
#     command: "test -e /sys/class/net/eth0"
#     condition: 0

server:
  addr: 127.0.0.1:7465
  metrics_addr: 127.0.0.1:7466

audit:
  path: ""

log:
  level: info

# alerts:
#   - url: https://hooks.example.com/netpipe
#     format: generic   # generic | slack
#     events: [outflow_exceeded, precondition_failed]
`
}
