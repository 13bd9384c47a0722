// Package config loads the YAML configuration, overlays .env and process
// environment, and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/1F47E/quadcursor/pkg/cursor"
	"github.com/1F47E/quadcursor/pkg/keyboard"
	"github.com/1F47E/quadcursor/pkg/models"
	"github.com/1F47E/quadcursor/pkg/poi"
	"github.com/1F47E/quadcursor/pkg/session"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config structure for YAML configuration
type Config struct {
	Cursor        cursor.Options `yaml:"cursor"`
	LabelProperty string         `yaml:"label_property"`
	Timing        struct {
		SettleDelay      time.Duration `yaml:"settle_delay"`
		RefitDelay       time.Duration `yaml:"refit_delay"`
		StableRetryDelay time.Duration `yaml:"stable_retry_delay"`
		StableQueries    int           `yaml:"stable_queries"`
	} `yaml:"timing"`
	Announce struct {
		MaxCommandLength int `yaml:"max_command_length"`
	} `yaml:"announce"`
	POI struct {
		Enabled    bool           `yaml:"enabled"`
		Endpoint   string         `yaml:"endpoint"`
		APIKey     string         `yaml:"-"`
		Categories []poi.Category `yaml:"categories"`
		Timeout    time.Duration  `yaml:"timeout"`
		CacheTTL   time.Duration  `yaml:"cache_ttl"`
		CacheSize  int            `yaml:"cache_size"`
	} `yaml:"poi"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"-"`
	} `yaml:"redis"`
	PostGIS struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgis"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	View struct {
		Width  int     `yaml:"width"`
		Height int     `yaml:"height"`
		Zoom   float64 `yaml:"zoom"`
	} `yaml:"view"`
}

// Default returns the built-in configuration
func Default() Config {
	var c Config
	c.Cursor = cursor.DefaultOptions()
	c.LabelProperty = models.DefaultLabelProperty
	c.Timing.SettleDelay = 200 * time.Millisecond
	c.Timing.RefitDelay = 100 * time.Millisecond
	c.Timing.StableRetryDelay = 100 * time.Millisecond
	c.Timing.StableQueries = 1
	c.Announce.MaxCommandLength = keyboard.DefaultMaxAnnouncement
	c.POI.Endpoint = poi.DefaultEndpoint
	c.POI.Categories = poi.DefaultCategories
	c.POI.Timeout = 2 * time.Second
	c.POI.CacheTTL = 10 * time.Minute
	c.POI.CacheSize = 1024
	c.Server.Addr = ":8080"
	c.View.Width = 1024
	c.View.Height = 768
	c.View.Zoom = 15
	return c
}

// Load reads path over the defaults, then applies .env and environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	c := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// .env is optional
	_ = godotenv.Load()
	c.applyEnv()

	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TOMTOM_API_KEY"); v != "" {
		c.POI.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.PostGIS.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASS"); v != "" {
		c.Redis.Password = v
	}
}

// Validate reports the first configuration fault
func (c Config) Validate() error {
	if err := c.Cursor.Validate(); err != nil {
		return err
	}
	if c.LabelProperty == "" {
		return session.ErrMissingLabelProperty
	}
	if c.Timing.SettleDelay < 0 || c.Timing.RefitDelay < 0 || c.Timing.StableRetryDelay < 0 {
		return errors.New("timing delays must not be negative")
	}
	if c.Timing.StableQueries < 1 {
		return fmt.Errorf("timing.stable_queries must be at least 1, got %d", c.Timing.StableQueries)
	}
	if c.Announce.MaxCommandLength <= 0 {
		return fmt.Errorf("announce.max_command_length must be positive, got %d", c.Announce.MaxCommandLength)
	}
	if c.POI.Enabled && c.POI.APIKey == "" {
		return fmt.Errorf("poi enabled without TOMTOM_API_KEY: %w", poi.ErrMissingKey)
	}
	if c.View.Width <= 0 || c.View.Height <= 0 {
		return fmt.Errorf("view size must be positive, got %dx%d", c.View.Width, c.View.Height)
	}
	return nil
}

// SessionOptions maps the configuration onto session options. Scheduler,
// logger and POI lookup are left to the caller.
func (c Config) SessionOptions() session.Options {
	opts := session.DefaultOptions()
	opts.Cursor = c.Cursor
	opts.LabelProperty = c.LabelProperty
	opts.SettleDelay = c.Timing.SettleDelay
	opts.RefitDelay = c.Timing.RefitDelay
	opts.StableRetryDelay = c.Timing.StableRetryDelay
	opts.StableQueries = c.Timing.StableQueries
	opts.MaxCommandLength = c.Announce.MaxCommandLength
	opts.POITimeout = c.POI.Timeout
	return opts
}
