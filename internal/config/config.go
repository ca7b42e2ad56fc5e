// Package config loads the session configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Content backends.
const (
	BackendDir      = "dir"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Transition modes.
const (
	TransitionTimed = "timed"
	TransitionMQTT  = "mqtt"
)

// DefaultAdventureDatabase is the address of the scene database.
const DefaultAdventureDatabase = "AdventureDatabase"

type SessionConfig struct {
	Version int `yaml:"version"`
	Session struct {
		ID         string `yaml:"id"`
		Name       string `yaml:"name"`
		StartScene string `yaml:"start_scene"`
	} `yaml:"session"`
	Content    ContentConfig    `yaml:"content"`
	Transition TransitionConfig `yaml:"transition"`
	Network    struct {
		HTTPPort int  `yaml:"http_port"`
		MQTT     bool `yaml:"mqtt"`
	} `yaml:"network"`
	Events struct {
		Postgres bool `yaml:"postgres"`
	} `yaml:"events"`
}

// ContentConfig selects where content databases are loaded from.
type ContentConfig struct {
	Backend           string   `yaml:"backend"`
	Dir               string   `yaml:"dir"`
	SQLitePath        string   `yaml:"sqlite_path"`
	FallbackDir       string   `yaml:"fallback_dir"`
	Watch             bool     `yaml:"watch"`
	AdventureDatabase string   `yaml:"adventure_database"`
	Preload           []string `yaml:"preload"`
}

// Validate checks that the selected backend has what it needs.
func (c *ContentConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = BackendDir
	}
	if c.AdventureDatabase == "" {
		c.AdventureDatabase = DefaultAdventureDatabase
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendDir, BackendSQLite, BackendPostgres)),
		validation.Field(&c.Dir, validation.When(c.Backend == BackendDir || c.Watch, validation.Required)),
		validation.Field(&c.SQLitePath, validation.When(c.Backend == BackendSQLite, validation.Required)),
		validation.Field(&c.Preload, validation.Each(validation.Required)),
	)
}

// TransitionConfig controls scene transition timing.
type TransitionConfig struct {
	Mode    string        `yaml:"mode"`
	FadeOut time.Duration `yaml:"fade_out"`
	FadeIn  time.Duration `yaml:"fade_in"`
	Settle  time.Duration `yaml:"settle"`
}

func (c *TransitionConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = TransitionTimed
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.In(TransitionTimed, TransitionMQTT)),
		validation.Field(&c.FadeOut, validation.Min(time.Duration(0))),
		validation.Field(&c.FadeIn, validation.Min(time.Duration(0))),
		validation.Field(&c.Settle, validation.Min(time.Duration(0))),
	)
}

// Validate fills defaults and checks the whole file.
func (c *SessionConfig) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported session.yaml version: %d", c.Version)
	}
	if err := validation.Validate(c.Session.ID, validation.Required.Error("session.id is required")); err != nil {
		return err
	}
	if err := c.Content.Validate(); err != nil {
		return fmt.Errorf("content: %w", err)
	}
	if err := c.Transition.Validate(); err != nil {
		return fmt.Errorf("transition: %w", err)
	}
	if c.Transition.Mode == TransitionMQTT && !c.Network.MQTT {
		return errors.New("transition: mode is \"mqtt\" but network.mqtt is disabled")
	}
	return validation.Validate(c.Network.HTTPPort, validation.Min(0), validation.Max(65535))
}

// HTTPPort returns the configured HTTP port, defaulting to 8080 if not set.
func (c *SessionConfig) HTTPPort() int {
	if c.Network.HTTPPort == 0 {
		return 8080
	}
	return c.Network.HTTPPort
}

// LoadSessionConfig reads path, expands ${VAR} references from the
// environment and validates the result.
func LoadSessionConfig(path string) (*SessionConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSessionConfig(b)
}

// ParseSessionConfig decodes and validates a session config document.
func ParseSessionConfig(b []byte) (*SessionConfig, error) {
	var cfg SessionConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
