package confloader

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the environment variable prefix of the server.
const DefaultEnvPrefix = "ROLLOUTKV_"

// EnvLevelSeparator separates nesting levels in environment variable names.
// A single underscore stays part of the key name.
const EnvLevelSeparator = "__"

// Loader merges the configuration sources of one process over a struct
// that already holds the defaults. Every Load starts from a fresh koanf
// instance, so calling it again after the file changed is a reload.
type Loader struct {
	envPrefix string
	filePath  string
	overrides Overrides
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets the YAML file to read. An empty path skips the file.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// WithOverrides sets values that win over every other source, typically
// the command-line flags the operator set explicitly.
func WithOverrides(o Overrides) Option {
	return func(l *Loader) { l.overrides = o }
}

// NewLoader returns a Loader reading ROLLOUTKV_ variables unless
// WithEnvPrefix says otherwise.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FilePath returns the configured file path.
func (l *Loader) FilePath() string {
	return l.filePath
}

// Load reads the file, then the environment, then the overrides into
// target. Later sources win; fields no source mentions keep their value.
func (l *Loader) Load(target any) error {
	k := koanf.New(".")

	if l.filePath != "" {
		if err := k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return fmt.Errorf("load config file %s: %w", l.filePath, err)
		}
	}

	prefix := l.envPrefix
	envSource := env.Provider(prefix, ".", func(name string) string {
		return EnvKey(prefix, name)
	})
	if err := k.Load(envSource, nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	if len(l.overrides) > 0 {
		if err := k.Load(l.overrides, nil); err != nil {
			return fmt.Errorf("load overrides: %w", err)
		}
	}

	if err := k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// EnvKey converts an environment variable name into a koanf key path:
// ROLLOUTKV_STORAGE__DATA_DIR becomes storage.data_dir.
func EnvKey(prefix, name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, prefix))
	return strings.ReplaceAll(name, EnvLevelSeparator, ".")
}

// Overrides maps dotted key paths such as "storage.data_dir" to values.
// It is a koanf provider.
type Overrides map[string]any

// Set records value under path and returns o for chaining.
func (o Overrides) Set(path string, value any) Overrides {
	o[path] = value
	return o
}

// Read returns the overrides as a nested map.
func (o Overrides) Read() (map[string]any, error) {
	flat := make(map[string]any, len(o))
	for path, value := range o {
		flat[path] = value
	}
	return maps.Unflatten(flat, "."), nil
}

// ReadBytes is not supported; koanf calls Read for map sources.
func (o Overrides) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("confloader: overrides have no byte form")
}
