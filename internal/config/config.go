// Package config loads the Ponderer configuration: a .env file for secrets
// (the same role github.com/joho/godotenv plays in cmd/bud/main.go) layered
// under a canonical YAML document for the whole-config read/write surface
// required by GET/POST /v1/config.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MLTQ/Ponderer/internal/apperr"
)

// Config is the canonical textual configuration document (§6.3).
type Config struct {
	EnableAmbientLoop     bool `yaml:"enable_ambient_loop"`
	EnableJournal         bool `yaml:"enable_journal"`
	EnableConcerns        bool `yaml:"enable_concerns"`
	EnableDreamCycle      bool `yaml:"enable_dream_cycle"`
	EnableALMAExploration bool `yaml:"enable_alma_exploration"`

	AmbientMinIntervalSecs int `yaml:"ambient_min_interval_secs"`
	JournalMinIntervalSecs int `yaml:"journal_min_interval_secs"`
	DreamMinIntervalSecs   int `yaml:"dream_min_interval_secs"`
	PollIntervalSecs       int `yaml:"poll_interval_secs"`

	LLMAPIURL string `yaml:"llm_api_url"`
	LLMModel  string `yaml:"llm_model"`
	LLMAPIKey string `yaml:"llm_api_key,omitempty"`

	DatabasePath     string `yaml:"database_path"`
	Username         string `yaml:"username"`
	MaxPostsPerHour  int    `yaml:"max_posts_per_hour"`

	// WorkspaceDir is the directory the read_file/list_directory capability
	// tools are restricted to (§4.8's Ambient/Dream Allowed sets).
	WorkspaceDir string `yaml:"workspace_dir"`
}

// Defaults returns the configuration with every documented default applied.
// All booleans default to false except as noted in §6.3 (none are true by
// default).
func Defaults() Config {
	return Config{
		AmbientMinIntervalSecs: 30,
		JournalMinIntervalSecs: 300,
		DreamMinIntervalSecs:   3600,
		PollIntervalSecs:       1,
		LLMModel:               "local-default",
		DatabasePath:           "state/ponderer.db",
		WorkspaceDir:           "state/workspace",
	}
}

// JournalMinInterval is the rate-limit window as a time.Duration.
func (c Config) JournalMinInterval() time.Duration {
	return time.Duration(c.JournalMinIntervalSecs) * time.Second
}

// DreamMinInterval is the minimum spacing between dream cycles.
func (c Config) DreamMinInterval() time.Duration {
	return time.Duration(c.DreamMinIntervalSecs) * time.Second
}

// PollInterval is the scheduler's pause-check interval.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSecs) * time.Second
}

// Load reads an optional .env file (missing is not an error, matching
// cmd/bud/main.go's "No .env file found, using environment variables"
// behavior) and then a YAML config file at path. Missing path falls back to
// Defaults().
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		// Absence of .env is expected in production deployments; the error
		// is discarded and never fails the load.
		_ = err
	}

	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, apperr.WrapErr(apperr.ConfigInvalid, "read config file", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, apperr.WrapErr(apperr.ConfigInvalid, "parse config yaml", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg back to path as canonical YAML, used by POST /v1/config.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return apperr.WrapErr(apperr.ConfigInvalid, "marshal config yaml", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return apperr.WrapErr(apperr.Storage, "write config file", err)
	}
	return nil
}

// Validate rejects configuration documents with invalid interval or path
// fields.
func (c Config) Validate() error {
	if c.AmbientMinIntervalSecs < 0 || c.JournalMinIntervalSecs < 0 ||
		c.DreamMinIntervalSecs < 0 || c.PollIntervalSecs <= 0 {
		return apperr.Wrap(apperr.ConfigInvalid, "interval fields must be non-negative and poll_interval_secs must be positive")
	}
	if c.DatabasePath == "" {
		return apperr.Wrap(apperr.ConfigInvalid, "database_path is required")
	}
	return nil
}

// Env holds the §6.4 environment variables, read the same way
// cmd/bud/main.go reads DISCORD_TOKEN/STATE_PATH: plain os.Getenv with
// defaults.
type Env struct {
	BackendURL      string
	AutostartBackend bool
	BackendBind     string
	AuthMode        string
}

// LoadEnv reads the §6.4 environment variables.
func LoadEnv() Env {
	autostart := os.Getenv("PONDERER_AUTOSTART_BACKEND") != "0"
	return Env{
		BackendURL:       os.Getenv("PONDERER_BACKEND_URL"),
		AutostartBackend: autostart,
		BackendBind:      envOr("PONDERER_BACKEND_BIND", "127.0.0.1:8420"),
		AuthMode:         os.Getenv("PONDERER_BACKEND_AUTH_MODE"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// AutostartSuppressed reports whether the launcher must not autostart a
// local backend, per §6.4: either PONDERER_BACKEND_URL is set, or autostart
// was explicitly disabled.
func (e Env) AutostartSuppressed() bool {
	return e.BackendURL != "" || !e.AutostartBackend
}

// String implements fmt.Stringer for debug logging without leaking an API
// key.
func (c Config) String() string {
	return fmt.Sprintf("Config{ambient=%v journal=%v concerns=%v dream=%v alma=%v model=%s db=%s}",
		c.EnableAmbientLoop, c.EnableJournal, c.EnableConcerns, c.EnableDreamCycle,
		c.EnableALMAExploration, c.LLMModel, c.DatabasePath)
}
