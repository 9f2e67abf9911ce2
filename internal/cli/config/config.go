package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/rolloutkv/internal/infra/confloader"
)

// EnvPrefix is the environment variable prefix for CLI settings.
const EnvPrefix = "ROLLOUTKV_CLI_"

// Default values.
const (
	DefaultServer    = "http://127.0.0.1:7380"
	DefaultInstance  = "default"
	DefaultTransport = "http"
	DefaultOutput    = "table"
	DefaultTimeout   = 10 * time.Second
	DefaultProfile   = "default"
)

// CLIConfig is the configuration for rolloutkv-cli.
type CLIConfig struct {
	CurrentProfile string             `koanf:"current_profile" yaml:"current_profile"`
	Output         string             `koanf:"output" yaml:"output"`
	Profiles       map[string]Profile `koanf:"profiles" yaml:"profiles"`
}

// Profile is a saved connection to one engine instance.
type Profile struct {
	Server    string        `koanf:"server" yaml:"server"`
	Instance  string        `koanf:"instance" yaml:"instance"`
	Transport string        `koanf:"transport" yaml:"transport"`
	Timeout   time.Duration `koanf:"timeout" yaml:"timeout"`
	// AdminKey is stored in plaintext; the file is written 0600.
	AdminKey string `koanf:"admin_key" yaml:"admin_key,omitempty"`
	CACert   string `koanf:"ca_cert" yaml:"ca_cert,omitempty"`
}

// DefaultProfileValues returns the profile used when none is configured.
func DefaultProfileValues() Profile {
	return Profile{
		Server:    DefaultServer,
		Instance:  DefaultInstance,
		Transport: DefaultTransport,
		Timeout:   DefaultTimeout,
	}
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		CurrentProfile: DefaultProfile,
		Output:         DefaultOutput,
		Profiles:       make(map[string]Profile),
	}
}

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".rolloutkv", "cli.yaml")
}

// Load reads the CLI configuration from path and the environment.
// A missing file yields the defaults.
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	opts := []confloader.Option{confloader.WithEnvPrefix(EnvPrefix)}
	if _, err := os.Stat(path); err == nil {
		opts = append(opts, confloader.WithConfigFile(path))
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	cfg := Default()
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, readable only by the owner.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(tmp, path)
}

// Profile returns the named profile filled in with defaults. An empty name
// selects the current profile. ok reports whether the profile was saved.
func (c *CLIConfig) Profile(name string) (p Profile, ok bool) {
	if name == "" {
		name = c.CurrentProfile
	}
	p, ok = c.Profiles[name]

	def := DefaultProfileValues()
	if p.Server == "" {
		p.Server = def.Server
	}
	if p.Instance == "" {
		p.Instance = def.Instance
	}
	if p.Transport == "" {
		p.Transport = def.Transport
	}
	if p.Timeout <= 0 {
		p.Timeout = def.Timeout
	}
	return p, ok
}

// SetProfile stores p under name.
func (c *CLIConfig) SetProfile(name string, p Profile) {
	if c.Profiles == nil {
		c.Profiles = make(map[string]Profile)
	}
	c.Profiles[name] = p
}

// ProfileNames returns the saved profile names in order.
func (c *CLIConfig) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
