// Package config loads and persists the wflow configuration file.
//
// The file lives at $XDG_CONFIG_HOME/wflow/config.yaml (falling back to
// ~/.config/wflow). Values are layered: defaults, then the file, then WFLOW_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/wflow/pkg/domain"
)

const (
	// AppName names the configuration directory.
	AppName = "wflow"
	// FileName is the configuration file inside Dir().
	FileName = "config.yaml"

	DefaultLanguage        = "en"
	DefaultCommandTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultRedisPrefix     = "wflow:"

	LayoutList  = "list"
	LayoutEvent = "event"
)

// Config is the full configuration.
type Config struct {
	Language        string         `mapstructure:"language" yaml:"language"`
	ResourceURL     string         `mapstructure:"resource_url" yaml:"resource_url,omitempty"`
	WorkflowsDir    string         `mapstructure:"workflows_dir" yaml:"workflows_dir,omitempty"`
	LogLevel        string         `mapstructure:"log_level" yaml:"log_level,omitempty"`
	CommandTimeout  time.Duration  `mapstructure:"command_timeout" yaml:"command_timeout,omitempty"`
	ShutdownTimeout time.Duration  `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout,omitempty"`
	Recovery        RecoveryConfig `mapstructure:"recovery" yaml:"recovery,omitempty"`
	Storage         StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Admin           AdminConfig    `mapstructure:"admin" yaml:"admin,omitempty"`
}

// RecoveryConfig controls session recovery on processor start.
type RecoveryConfig struct {
	// Strict fails the spawn instead of falling back to Initial when replay fails.
	Strict bool `mapstructure:"strict" yaml:"strict,omitempty"`
}

// StorageConfig selects and configures the journal backend.
type StorageConfig struct {
	Backend       string      `mapstructure:"backend" yaml:"backend"`
	Path          string      `mapstructure:"path" yaml:"path,omitempty"`
	Layout        string      `mapstructure:"layout" yaml:"layout,omitempty"`
	EncryptionKey string      `mapstructure:"encryption_key" yaml:"encryption_key,omitempty"`
	Redis         RedisConfig `mapstructure:"redis" yaml:"redis,omitempty"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr,omitempty"`
	Password string        `mapstructure:"password" yaml:"password,omitempty"`
	DB       int           `mapstructure:"db" yaml:"db,omitempty"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix,omitempty"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl,omitempty"`
}

type AdminConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr,omitempty"`
}

// Dir returns the configuration directory.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", domain.WrapError(domain.KindConfiguration, "config.dir", err)
	}
	return filepath.Join(home, ".config", AppName), nil
}

// DefaultPath returns Dir()/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Default returns the built-in configuration rooted at dir.
func Default(dir string) Config {
	return Config{
		Language:        DefaultLanguage,
		WorkflowsDir:    filepath.Join(dir, "workflows"),
		LogLevel:        "info",
		CommandTimeout:  DefaultCommandTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		Storage: StorageConfig{
			Backend: domain.BackendBadger,
			Path:    filepath.Join(dir, "data"),
			Layout:  LayoutList,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: DefaultRedisPrefix,
			},
		},
		Admin: AdminConfig{Addr: "127.0.0.1:8686"},
	}
}

// Load reads the file at path (a missing file is not an error), layers the
// defaults underneath and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, domain.WrapError(domain.KindFileSystem, "config.load", err)
	default:
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, domain.WrapError(domain.KindConfiguration, "config.load", fmt.Errorf("parse %s: %w", path, err))
		}
		if err := decode(raw, &cfg); err != nil {
			return nil, domain.WrapError(domain.KindConfiguration, "config.load", err)
		}
	}

	defaults := Default(filepath.Dir(path))
	if err := mergo.Merge(&cfg, defaults); err != nil {
		return nil, domain.WrapError(domain.KindConfiguration, "config.defaults", err)
	}

	if err := decode(envOverrides(os.Environ()), &cfg); err != nil {
		return nil, domain.WrapError(domain.KindConfiguration, "config.env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path, creating the directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return domain.WrapError(domain.KindFileSystem, "config.save", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return domain.WrapError(domain.KindSerialization, "config.save", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return domain.WrapError(domain.KindFileSystem, "config.save", err)
	}
	return nil
}

// Init writes a default config at path plus the workflows and i18n directories.
// An existing file is kept unless force is set.
func Init(path string, force bool) (*Config, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return Load(path)
	}
	dir := filepath.Dir(path)
	cfg := Default(dir)
	for _, d := range []string{cfg.WorkflowsDir, filepath.Join(dir, "i18n")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, domain.WrapError(domain.KindFileSystem, "config.init", err)
		}
	}
	if err := Save(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	if !slices.Contains(domain.AvailableLanguages(), c.Language) {
		return domain.NewError(domain.KindConfiguration, "unsupported language %q", c.Language)
	}
	if !slices.Contains(domain.StorageBackends(), c.Storage.Backend) {
		return domain.NewError(domain.KindConfiguration, "unsupported storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Layout != LayoutList && c.Storage.Layout != LayoutEvent {
		return domain.NewError(domain.KindConfiguration, "unsupported storage layout %q", c.Storage.Layout)
	}
	if c.CommandTimeout <= 0 {
		return domain.NewError(domain.KindConfiguration, "command_timeout must be positive")
	}
	return nil
}

func decode(input map[string]any, out *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			intToDurationHook,
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// intToDurationHook reads bare numbers as seconds.
func intToDurationHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return data, nil
}

// envBindings maps WFLOW_* variables onto config keys.
var envBindings = map[string][]string{
	"WFLOW_LANGUAGE":         {"language"},
	"WFLOW_RESOURCE_URL":     {"resource_url"},
	"WFLOW_WORKFLOWS_DIR":    {"workflows_dir"},
	"WFLOW_LOG_LEVEL":        {"log_level"},
	"WFLOW_COMMAND_TIMEOUT":  {"command_timeout"},
	"WFLOW_SHUTDOWN_TIMEOUT": {"shutdown_timeout"},
	"WFLOW_RECOVERY_STRICT":  {"recovery", "strict"},
	"WFLOW_STORAGE_BACKEND":  {"storage", "backend"},
	"WFLOW_STORAGE_PATH":     {"storage", "path"},
	"WFLOW_STORAGE_LAYOUT":   {"storage", "layout"},
	"WFLOW_ENCRYPTION_KEY":   {"storage", "encryption_key"},
	"WFLOW_REDIS_ADDR":       {"storage", "redis", "addr"},
	"WFLOW_REDIS_PASSWORD":   {"storage", "redis", "password"},
	"WFLOW_REDIS_DB":         {"storage", "redis", "db"},
	"WFLOW_REDIS_PREFIX":     {"storage", "redis", "prefix"},
	"WFLOW_REDIS_TTL":        {"storage", "redis", "ttl"},
	"WFLOW_ADMIN_ADDR":       {"admin", "addr"},
}

// envOverrides builds a nested map from the environment for decode.
func envOverrides(environ []string) map[string]any {
	out := map[string]any{}
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" {
			continue
		}
		path, bound := envBindings[name]
		if !bound {
			continue
		}
		node := out
		for _, key := range path[:len(path)-1] {
			child, ok := node[key].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[key] = child
			}
			node = child
		}
		node[path[len(path)-1]] = value
	}
	return out
}
