// Package config loads deploytest settings and suite configuration.
//
// Sources are layered, later ones winning: built-in defaults, the first
// config file found by ConfigPaths, an explicit suite file, and finally
// DEPLOYTEST_* environment variables (a double underscore separates nested
// keys: DEPLOYTEST_PATCH__FLOW_STYLE=false sets patch.flow_style). Files
// ending in .toml are parsed as TOML, everything else as YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/liliang-cn/deploytest/pkg/types"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DEPLOYTEST_"

// AppName names the XDG directories deploytest reads from.
const AppName = "deploytest"

// Settings is the typed view of the configuration.
type Settings struct {
	ResourcesDir      string `koanf:"resources_dir"`
	BlueprintsDir     string `koanf:"blueprints_dir"`
	ConfigurationsDir string `koanf:"configurations_dir"`
	WorkDir           string `koanf:"workdir"`
	ResourcesPrefix   string `koanf:"resources_prefix"`
	ProviderBootstrap bool   `koanf:"provider_bootstrap"`
	LogFile           string `koanf:"log_file"`

	Patch PatchSettings `koanf:"patch"`
	Ports PortSettings  `koanf:"ports"`

	Variables map[string]interface{} `koanf:"variables"`
}

// PatchSettings are the default YamlPatcher output options.
type PatchSettings struct {
	JSON      bool `koanf:"json"`
	FlowStyle bool `koanf:"flow_style"`
}

// PortSettings control port polling.
type PortSettings struct {
	Timeout      time.Duration `koanf:"timeout"`
	PollInterval time.Duration `koanf:"poll_interval"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
}

// LoadOptions selects the files Load reads.
type LoadOptions struct {
	// SuiteFile is layered over the config file.
	SuiteFile string
	// SkipDefaultPaths disables the ConfigPaths search.
	SkipDefaultPaths bool
}

// Config wraps the layered koanf instance
type Config struct {
	mu       sync.RWMutex
	k        *koanf.Koanf
	settings Settings
}

// Load builds a configuration from defaults, files and environment.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if !opts.SkipDefaultPaths {
		for _, path := range ConfigPaths() {
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
				return nil, fmt.Errorf("failed to load config from %s: %w", path, types.NewParseError(path, err))
			}
			break
		}
	}

	if opts.SuiteFile != "" {
		if _, err := os.Stat(opts.SuiteFile); err != nil {
			return nil, fmt.Errorf("%w: suite file %s", types.ErrFileNotFound, opts.SuiteFile)
		}
		if err := k.Load(file.Provider(opts.SuiteFile), parserFor(opts.SuiteFile)); err != nil {
			return nil, fmt.Errorf("failed to load suite %s: %w", opts.SuiteFile, types.NewParseError(opts.SuiteFile, err))
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	c := &Config{k: k}
	if err := c.refresh(); err != nil {
		return nil, err
	}
	return c, nil
}

// Defaults returns the built-in configuration values
func Defaults() map[string]interface{} {
	dataDir := filepath.Join(xdg.DataHome, AppName)

	return map[string]interface{}{
		"resources_dir":       filepath.Join(dataDir, "resources"),
		"blueprints_dir":      "",
		"configurations_dir":  filepath.Join(dataDir, "suites", "configurations"),
		"workdir":             os.TempDir(),
		"resources_prefix":    "",
		"provider_bootstrap":  false,
		"log_file":            "",
		"patch.json":          false,
		"patch.flow_style":    true,
		"ports.timeout":       "5m",
		"ports.poll_interval": "1s",
		"ports.dial_timeout":  "5s",
	}
}

// ConfigPaths returns possible configuration file paths
func ConfigPaths() []string {
	paths := []string{
		"./deploytest.yaml",
		"./.deploytest.yaml",
		"./deploytest.toml",
	}

	for _, name := range []string{"config.yaml", "config.toml"} {
		if path, err := xdg.SearchConfigFile(filepath.Join(AppName, name)); err == nil {
			paths = append(paths, path)
		}
	}

	return paths
}

// parserFor picks the koanf parser from the file extension; anything but
// .toml is read as YAML.
func parserFor(path string) koanf.Parser {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Parser()
	}
	return yaml.Parser()
}

// envKey maps DEPLOYTEST_PATCH__FLOW_STYLE to patch.flow_style.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// refresh re-decodes Settings after the koanf tree changed.
func (c *Config) refresh() error {
	var settings Settings
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &settings,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := c.k.UnmarshalWithConf("", &settings, unmarshalConf); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if settings.BlueprintsDir == "" {
		settings.BlueprintsDir = filepath.Join(settings.ResourcesDir, "blueprints")
	}
	settings.Variables, _ = types.NormalizeValue(c.k.Get("variables")).(map[string]interface{})
	if settings.Variables == nil {
		settings.Variables = map[string]interface{}{}
	}

	if err := settings.Validate(); err != nil {
		return err
	}
	c.settings = settings
	return nil
}

// Validate validates the decoded settings
func (s Settings) Validate() error {
	if s.ResourcesDir == "" {
		return types.NewValidationError("resources_dir", s.ResourcesDir, "resources directory must be set")
	}
	if s.Ports.PollInterval <= 0 {
		return types.NewValidationError("ports.poll_interval", s.Ports.PollInterval, "poll interval must be positive")
	}
	if s.Ports.Timeout < 0 {
		return types.NewValidationError("ports.timeout", s.Ports.Timeout, "timeout must not be negative")
	}
	if s.Ports.DialTimeout <= 0 {
		return types.NewValidationError("ports.dial_timeout", s.Ports.DialTimeout, "dial timeout must be positive")
	}
	return nil
}

// Settings returns the typed configuration
func (c *Config) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// Suite returns the whole configuration as a nested map, the shape
// template.ProcessVariables expects.
func (c *Config) Suite() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.k.Raw()
}

// Get retrieves a configuration value
func (c *Config) Get(key string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.k.Get(key)
}

// GetString retrieves a string configuration value
func (c *Config) GetString(key string) string {
	if value := c.Get(key); value != nil {
		return types.ConvertToString(value)
	}
	return ""
}

// GetInt retrieves an integer configuration value
func (c *Config) GetInt(key string) int {
	if value := c.Get(key); value != nil {
		if intVal, err := types.ConvertToInt(value); err == nil {
			return intVal
		}
	}
	return 0
}

// GetBool retrieves a boolean configuration value
func (c *Config) GetBool(key string) bool {
	if value := c.Get(key); value != nil {
		return types.ConvertToBool(value)
	}
	return false
}

// GetDuration retrieves a duration configuration value
func (c *Config) GetDuration(key string) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.k.Duration(key)
}

// Has checks if a configuration key exists
func (c *Config) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.k.Exists(key)
}

// Set stores a configuration value and re-validates the settings
func (c *Config) Set(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	previous := c.k.Copy()
	if err := c.k.Set(key, value); err != nil {
		return err
	}
	if err := c.refresh(); err != nil {
		c.k = previous
		return err
	}
	return nil
}

// GetAll returns all configuration values flattened to dotted keys
func (c *Config) GetAll() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.k.All()
}
