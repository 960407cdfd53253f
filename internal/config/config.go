// Package config loads the daemon configuration: YAML file first, then
// environment overrides (optionally via a .env file) on top of defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "25s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard-library form.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full daemon configuration.
type Config struct {
	Gateway struct {
		SocketPath string `yaml:"socket_path"`
	} `yaml:"gateway"`

	Turn struct {
		Workers  int      `yaml:"workers"`
		Deadline Duration `yaml:"deadline"`
	} `yaml:"turn"`

	Window struct {
		Capacity int `yaml:"capacity"`
	} `yaml:"window"`

	Temporal struct {
		SkewTolerance Duration `yaml:"skew_tolerance"`
	} `yaml:"temporal"`

	Collaborators struct {
		CallTimeout    Duration `yaml:"call_timeout"`
		ResearchURL    string   `yaml:"research_url"`
		IntegrationURL string   `yaml:"integration_url"`
	} `yaml:"collaborators"`

	Sandbox struct {
		Tool            string   `yaml:"tool"`
		TTL             Duration `yaml:"ttl"`
		MaxTTL          Duration `yaml:"max_ttl"`
		JanitorInterval Duration `yaml:"janitor_interval"`
	} `yaml:"sandbox"`

	Archive struct {
		Path      string `yaml:"path"`
		CacheSize int    `yaml:"cache_size"`
	} `yaml:"archive"`

	LLM struct {
		Command string   `yaml:"command"`
		Args    []string `yaml:"args"`
		Model   string   `yaml:"model"`
		Timeout Duration `yaml:"timeout"`
	} `yaml:"llm"`

	Style struct {
		MatchUserLength  bool     `yaml:"match_user_length"`
		AllowEmoji       bool     `yaml:"allow_emoji"`
		ForbiddenPhrases []string `yaml:"forbidden_phrases"`
		VerbosityFlag    string   `yaml:"verbosity_flag"`
	} `yaml:"style"`

	Logging struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"logging"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	var c Config
	c.Gateway.SocketPath = "/tmp/junkie-gateway.sock"
	c.Turn.Workers = 4
	c.Turn.Deadline = Duration(60 * time.Second)
	c.Window.Capacity = 100
	c.Temporal.SkewTolerance = Duration(5 * time.Second)
	c.Collaborators.CallTimeout = Duration(25 * time.Second)
	c.Sandbox.Tool = "sbxctl"
	c.Sandbox.TTL = Duration(10 * time.Minute)
	c.Sandbox.MaxTTL = Duration(time.Hour)
	c.Sandbox.JanitorInterval = Duration(time.Minute)
	c.Archive.Path = "junkie.db"
	c.Archive.CacheSize = 128
	c.LLM.Command = "genctl"
	c.LLM.Timeout = Duration(30 * time.Second)
	c.Style.MatchUserLength = true
	c.Style.AllowEmoji = true
	c.Style.VerbosityFlag = "--long"
	c.Logging.Level = "info"
	return c
}

// Load reads the config file at path (skipped when empty or absent),
// applies environment overrides, and validates. A .env file in the working
// directory is honored when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults plus environment are enough to run.
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv layers JUNKIE_* variables over the file values.
func (c *Config) applyEnv() {
	setString := func(key string, target *string) {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}
	setString("JUNKIE_SOCKET_PATH", &c.Gateway.SocketPath)
	setString("JUNKIE_ARCHIVE_PATH", &c.Archive.Path)
	setString("JUNKIE_LLM_COMMAND", &c.LLM.Command)
	setString("JUNKIE_LLM_MODEL", &c.LLM.Model)
	setString("JUNKIE_SANDBOX_TOOL", &c.Sandbox.Tool)
	setString("JUNKIE_RESEARCH_URL", &c.Collaborators.ResearchURL)
	setString("JUNKIE_INTEGRATION_URL", &c.Collaborators.IntegrationURL)
	setString("JUNKIE_LOG_LEVEL", &c.Logging.Level)

	if v := os.Getenv("JUNKIE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Turn.Workers = n
		}
	}
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Gateway.SocketPath == "" {
		return fmt.Errorf("config: gateway.socket_path is required")
	}
	if c.Turn.Workers <= 0 {
		return fmt.Errorf("config: turn.workers must be positive, got %d", c.Turn.Workers)
	}
	if c.Window.Capacity <= 0 {
		return fmt.Errorf("config: window.capacity must be positive, got %d", c.Window.Capacity)
	}
	if c.Turn.Deadline.Std() <= 0 {
		return fmt.Errorf("config: turn.deadline must be positive")
	}
	if c.Collaborators.CallTimeout.Std() <= 0 {
		return fmt.Errorf("config: collaborators.call_timeout must be positive")
	}
	if c.Collaborators.CallTimeout.Std() > c.Turn.Deadline.Std() {
		return fmt.Errorf("config: collaborators.call_timeout exceeds turn.deadline")
	}
	if c.Sandbox.TTL.Std() > c.Sandbox.MaxTTL.Std() {
		return fmt.Errorf("config: sandbox.ttl exceeds sandbox.max_ttl")
	}
	if c.LLM.Command == "" {
		return fmt.Errorf("config: llm.command is required")
	}
	if c.Archive.Path == "" {
		return fmt.Errorf("config: archive.path is required")
	}
	return nil
}
