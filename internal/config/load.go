package config

import (
	"fmt"
	"reflect"
	"regexp"
	"time"

	"github.com/spf13/viper"
)

var sourceNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Load reads the config file (explicit path, or config.yaml discovered on
// searchPath) plus TILECACHE_-prefixed environment overrides, and
// unmarshals it into a Config. Mirrors the teacher's viper setup in
// internal/cmd/root.go, generalized from flat flag binding to a nested
// struct schema via viper.Unmarshal.
func Load(explicitPath string, searchPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TILECACHE")
	v.AutomaticEnv()

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		v.AddConfigPath(searchPath)
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetDefault("port", 7000)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	// time.Duration fields: bare numbers are seconds, strings such as
	// "90s" go through time.ParseDuration.
	durationHook := viper.DecodeHook(func(_, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch d := data.(type) {
		case int:
			return time.Duration(d) * time.Second, nil
		case float64:
			return time.Duration(d * float64(time.Second)), nil
		case string:
			return time.ParseDuration(d)
		}
		return data, nil
	})

	var cfg Config
	if err := v.Unmarshal(&cfg, durationHook); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// SearchPath picks the dev-vs-production config folder the way the
// teacher's RACK_ENV-equivalent toggle does, per spec.md §6.
func SearchPath(env string) string {
	if env == "production" {
		return "/configs"
	}
	return "."
}

func (c *Config) validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("no sources configured")
	}
	for name, s := range c.Sources {
		if !sourceNamePattern.MatchString(name) {
			return fmt.Errorf("source %q: name must be alnum, underscore, or hyphen", name)
		}
		if s.Path == "" {
			return fmt.Errorf("source %q: path is required", name)
		}
		if s.Target == "" {
			return fmt.Errorf("source %q: target is required", name)
		}
		if s.MBTilesFile == "" {
			return fmt.Errorf("source %q: mbtiles_file is required", name)
		}
		if s.MaxZoom < s.MinZoom {
			return fmt.Errorf("source %q: maxzoom %d below minzoom %d", name, s.MaxZoom, s.MinZoom)
		}
	}
	return nil
}
