// Package config loads settings from defaults, an optional YAML file,
// TRACKER_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/penwyp/go-tracker-monitor/internal/application/tracking"
	"github.com/penwyp/go-tracker-monitor/internal/core/registry"
	"github.com/penwyp/go-tracker-monitor/internal/util"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is prepended to environment overrides, e.g. TRACKER_BACKEND_URL
	EnvPrefix = "tracker"

	DefaultConfigDir  = "~/.go-tracker-monitor"
	DefaultConfigName = "config"
	DefaultLogFile    = "~/.go-tracker-monitor/logs/app.log"
	DefaultStateDir   = "~/.go-tracker-monitor/state"
)

type BackendConfig struct {
	URL     string        `mapstructure:"url" yaml:"url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
}

type StateConfig struct {
	Dir     string `mapstructure:"dir" yaml:"dir" validate:"required"`
	Backend string `mapstructure:"backend" yaml:"backend" validate:"oneof=file sqlite memory"`
}

type WatchConfig struct {
	Interval      time.Duration `mapstructure:"interval" yaml:"interval" validate:"gte=1s"`
	UIRefreshRate float64       `mapstructure:"uiRefreshRate" yaml:"uiRefreshRate" validate:"gt=0,lte=20"`
	Concurrency   int           `mapstructure:"concurrency" yaml:"concurrency" validate:"gte=1,lte=64"`
	FitPadding    float64       `mapstructure:"fitPadding" yaml:"fitPadding" validate:"gte=0,lte=1"`
}

type TrackersConfig struct {
	RenamePolicy string `mapstructure:"renamePolicy" yaml:"renamePolicy" validate:"oneof=keep regenerate"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	File   string `mapstructure:"file" yaml:"file"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
	GELF   string `mapstructure:"gelf" yaml:"gelf" validate:"omitempty,hostname_port"`
}

// MarshalYAML writes the timeout as a duration string
func (b BackendConfig) MarshalYAML() (interface{}, error) {
	return struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	}{b.URL, b.Timeout.String()}, nil
}

// MarshalYAML writes the interval as a duration string
func (w WatchConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Interval      string  `yaml:"interval"`
		UIRefreshRate float64 `yaml:"uiRefreshRate"`
		Concurrency   int     `yaml:"concurrency"`
		FitPadding    float64 `yaml:"fitPadding"`
	}{w.Interval.String(), w.UIRefreshRate, w.Concurrency, w.FitPadding}, nil
}

// Config is the full application configuration
type Config struct {
	Backend  BackendConfig  `mapstructure:"backend" yaml:"backend"`
	State    StateConfig    `mapstructure:"state" yaml:"state"`
	Watch    WatchConfig    `mapstructure:"watch" yaml:"watch"`
	Trackers TrackersConfig `mapstructure:"trackers" yaml:"trackers"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Timezone string         `mapstructure:"timezone" yaml:"timezone" validate:"required"`

	// File is the config file that was read, empty when none was found
	File string `mapstructure:"-" yaml:"-"`
}

// FlagBindings maps config keys to the command-line flags that override them
var FlagBindings = map[string]string{
	"backend.url":           "backend",
	"backend.timeout":       "timeout",
	"state.dir":             "state-dir",
	"state.backend":         "store",
	"watch.interval":        "interval",
	"watch.uiRefreshRate":   "refresh-per-second",
	"watch.concurrency":     "concurrency",
	"trackers.renamePolicy": "rename-policy",
	"log.level":             "log-level",
	"log.file":              "log-file",
	"log.gelf":              "gelf",
	"timezone":              "timezone",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.url", "http://localhost:5000")
	v.SetDefault("backend.timeout", "10s")

	v.SetDefault("state.dir", DefaultStateDir)
	v.SetDefault("state.backend", "file")

	v.SetDefault("watch.interval", "15s")
	v.SetDefault("watch.uiRefreshRate", 1.0)
	v.SetDefault("watch.concurrency", 4)
	v.SetDefault("watch.fitPadding", 0.1)

	v.SetDefault("trackers.renamePolicy", string(registry.RenameKeepColor))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", DefaultLogFile)
	v.SetDefault("log.format", "text")
	v.SetDefault("log.gelf", "")

	v.SetDefault("timezone", "Local")
}

// Load builds the configuration. path names an explicit config file; when
// empty, config.yaml in the default directory is used if it exists. flags
// may be nil; only flags the user changed take precedence.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(util.ExpandPath(path))
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(util.ExpandPath(DefaultConfigDir))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if flags != nil {
		for key, name := range FlagBindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Tracking converts the settings used by the fetch cycle and watch view
func (c *Config) Tracking() (*tracking.TrackingConfig, error) {
	policy, err := registry.ParseRenamePolicy(c.Trackers.RenamePolicy)
	if err != nil {
		return nil, err
	}
	tc := &tracking.TrackingConfig{
		BackendURL:     c.Backend.URL,
		RequestTimeout: c.Backend.Timeout,
		StateDir:       util.ExpandPath(c.State.Dir),
		StoreBackend:   c.State.Backend,
		Interval:       c.Watch.Interval,
		UIRefreshRate:  c.Watch.UIRefreshRate,
		Concurrency:    c.Watch.Concurrency,
		FitPadding:     c.Watch.FitPadding,
		RenamePolicy:   policy,
		Timezone:       c.Timezone,
	}
	return tc, tc.Validate()
}

// LoggerOptions converts the log settings
func (c *Config) LoggerOptions() util.LoggerOptions {
	opts := util.LoggerOptions{
		Level:       c.Log.Level,
		Format:      util.LogFormat(c.Log.Format),
		GELFAddress: c.Log.GELF,
	}
	if c.Log.File != "" {
		opts.File = util.ExpandPath(c.Log.File)
	}
	return opts
}

// Marshal renders the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Write saves the configuration as YAML to path, creating parent
// directories. An existing file is only replaced when overwrite is set.
func (c *Config) Write(path string, overwrite bool) error {
	path = util.ExpandPath(path)
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	if err := util.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultPath is where Load looks for a config file when none is given
func DefaultPath() string {
	return filepath.Join(util.ExpandPath(DefaultConfigDir), DefaultConfigName+".yaml")
}
