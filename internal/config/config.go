// Package config provides configuration management for parley.
//
// Settings are resolved by viper from three sources in increasing
// precedence: built-in defaults (SetDefaults), the YAML config file
// under ConfigDir, and PARLEY_* environment variables where dots in
// the key become underscores, e.g. PARLEY_ORCHESTRATOR_MAX_TURNS.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/parley/internal/errors"
)

// Config holds all parley configuration.
type Config struct {
	Engine       EngineConfig       `mapstructure:"engine"`
	Session      SessionConfig      `mapstructure:"session"`
	Registry     RegistryConfig     `mapstructure:"registry"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	History      HistoryConfig      `mapstructure:"history"`
	Prompt       PromptConfig       `mapstructure:"prompt"`
	Results      ResultsConfig      `mapstructure:"results"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// EngineConfig controls how engine subprocesses are spawned.
type EngineConfig struct {
	// Binary is the engine executable. Empty falls back to the
	// CLAUDE_BINARY environment variable, then "claude".
	Binary string `mapstructure:"binary"`

	// ExtraArgs are appended to the engine command line before the
	// initial prompt.
	ExtraArgs []string `mapstructure:"extra_args"`

	// ExtraEnv entries are appended to the inherited environment of
	// every engine subprocess.
	ExtraEnv []string `mapstructure:"extra_env"`

	// PermissionMode controls the engine's tool permission behavior.
	// Default: "acceptEdits"
	PermissionMode string `mapstructure:"permission_mode"`

	// SystemPromptFile, when set, appends a system prompt loaded from
	// the given file to every engine spawn.
	SystemPromptFile string `mapstructure:"system_prompt_file"`

	// WorkDir is the working directory engine subprocesses run in and
	// the directory result files are collected from. Empty inherits
	// the caller's working directory.
	WorkDir string `mapstructure:"work_dir"`

	// TurnTimeoutSeconds bounds how long one turn may wait for the
	// engine's response before the subprocess is killed. A value of 0
	// uses the built-in 5 minute default. Default: 300
	TurnTimeoutSeconds int `mapstructure:"turn_timeout_seconds"`

	// Quota constrains engine subprocess resources.
	Quota QuotaConfig `mapstructure:"quota"`
}

// QuotaConfig bounds the resources one engine subprocess may consume.
// Setting both fields to 0 disables the quota wrapper entirely.
type QuotaConfig struct {
	// CPUs is the CPU budget granted to one engine, in CPUs' worth of
	// the conversation time limit. Default: 1
	CPUs int `mapstructure:"cpus"`

	// MemoryMB caps the engine's address space in mebibytes.
	// Default: 1024
	MemoryMB int `mapstructure:"memory_mb"`
}

// SessionConfig controls per-session lifecycle thresholds.
type SessionConfig struct {
	// IdleTimeoutMinutes is how long a session may sit between turns
	// before the idle sweeper reclaims it. A value of 0 uses the
	// built-in 11 minute default. Default: 11
	IdleTimeoutMinutes int `mapstructure:"idle_timeout_minutes"`
}

// RegistryConfig controls the session registry.
type RegistryConfig struct {
	// MaxActors caps the number of simultaneously live sessions.
	// A value of 0 means unlimited. Default: 0
	MaxActors int `mapstructure:"max_actors"`

	// SweepIntervalSeconds is the background idle-sweeper period.
	// A value of 0 uses the built-in 60 second default. Default: 60
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds"`
}

// OrchestratorConfig controls the conversation loop.
type OrchestratorConfig struct {
	// MaxTurns caps the number of completed exchanges in one
	// conversation. Default: 50
	MaxTurns int `mapstructure:"max_turns"`

	// TimeoutSeconds is the wall-clock ceiling for one conversation.
	// Default: 600
	TimeoutSeconds int `mapstructure:"timeout_seconds"`

	// CompletionMode selects how conversations end: "auto" ends them
	// when the engine emits its completion marker, "manual" only on a
	// human stop phrase or a limit. Default: "auto"
	CompletionMode string `mapstructure:"completion_mode"`

	// StopPhrases are the human inputs that end a conversation,
	// compared case-insensitively after trimming.
	// Default: done, exit, quit, stop
	StopPhrases []string `mapstructure:"stop_phrases"`
}

// HistoryConfig controls the durable conversation store.
type HistoryConfig struct {
	// Backend selects the turn store: "memory", "file", or "redis".
	// Default: "memory"
	Backend string `mapstructure:"backend"`

	// Dir is where the file backend keeps per-session transcripts.
	// Empty resolves to <config dir>/history.
	Dir string `mapstructure:"dir"`

	// Redis configures the redis backend.
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds connection settings for the redis history backend.
type RedisConfig struct {
	// Addr is the host:port of the redis server.
	// Default: "localhost:6379"
	Addr string `mapstructure:"addr"`

	// Password authenticates the connection. Empty disables auth.
	Password string `mapstructure:"password"`

	// DB selects the redis database number. Default: 0
	DB int `mapstructure:"db"`

	// Prefix namespaces all history keys. Default: "parley:history:"
	Prefix string `mapstructure:"prefix"`

	// TTLMinutes expires a session's stored history after inactivity.
	// A value of 0 keeps history forever. Default: 0
	TTLMinutes int `mapstructure:"ttl_minutes"`
}

// PromptConfig controls how suspended conversations ask the human for
// the next turn.
type PromptConfig struct {
	// Mode selects the prompter: "terminal" runs an inline input,
	// "file" exchanges prompt and reply files for headless callers.
	// Default: "terminal"
	Mode string `mapstructure:"mode"`

	// ExchangeDir is where the file prompter writes prompt files and
	// watches for replies. Empty resolves to <config dir>/exchange.
	ExchangeDir string `mapstructure:"exchange_dir"`
}

// ResultsConfig controls where conversation output lands.
type ResultsConfig struct {
	// Dir is where per-session summaries and collected files are
	// written. Empty resolves to <config dir>/results.
	Dir string `mapstructure:"dir"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	// Level is the minimum severity logged: debug, info, warn, or
	// error. Default: "info"
	Level string `mapstructure:"level"`

	// Dir is where log files are written. Empty resolves to
	// <config dir>/logs.
	Dir string `mapstructure:"dir"`

	// MaxSizeMB is the log file size that triggers rotation. A value
	// of 0 disables rotation. Default: 10
	MaxSizeMB int `mapstructure:"max_size_mb"`

	// MaxBackups is the number of rotated log files to keep.
	// Default: 3
	MaxBackups int `mapstructure:"max_backups"`

	// Compress gzip-compresses rotated log files. Default: false
	Compress bool `mapstructure:"compress"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			PermissionMode:     "acceptEdits",
			TurnTimeoutSeconds: 300,
			Quota: QuotaConfig{
				CPUs:     1,
				MemoryMB: 1024,
			},
		},
		Session: SessionConfig{
			IdleTimeoutMinutes: 11,
		},
		Registry: RegistryConfig{
			MaxActors:            0,
			SweepIntervalSeconds: 60,
		},
		Orchestrator: OrchestratorConfig{
			MaxTurns:       50,
			TimeoutSeconds: 600,
			CompletionMode: "auto",
			StopPhrases:    []string{"done", "exit", "quit", "stop"},
		},
		History: HistoryConfig{
			Backend: "memory",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "parley:history:",
			},
		},
		Prompt: PromptConfig{
			Mode: "terminal",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers all default values with viper. Call once at
// startup before Load.
func SetDefaults() {
	// Engine defaults
	viper.SetDefault("engine.binary", "")
	viper.SetDefault("engine.extra_args", []string{})
	viper.SetDefault("engine.extra_env", []string{})
	viper.SetDefault("engine.permission_mode", "acceptEdits")
	viper.SetDefault("engine.system_prompt_file", "")
	viper.SetDefault("engine.work_dir", "")
	viper.SetDefault("engine.turn_timeout_seconds", 300)
	viper.SetDefault("engine.quota.cpus", 1)
	viper.SetDefault("engine.quota.memory_mb", 1024)

	// Session defaults
	viper.SetDefault("session.idle_timeout_minutes", 11)

	// Registry defaults
	viper.SetDefault("registry.max_actors", 0)
	viper.SetDefault("registry.sweep_interval_seconds", 60)

	// Orchestrator defaults
	viper.SetDefault("orchestrator.max_turns", 50)
	viper.SetDefault("orchestrator.timeout_seconds", 600)
	viper.SetDefault("orchestrator.completion_mode", "auto")
	viper.SetDefault("orchestrator.stop_phrases", []string{"done", "exit", "quit", "stop"})

	// History defaults
	viper.SetDefault("history.backend", "memory")
	viper.SetDefault("history.dir", "")
	viper.SetDefault("history.redis.addr", "localhost:6379")
	viper.SetDefault("history.redis.password", "")
	viper.SetDefault("history.redis.db", 0)
	viper.SetDefault("history.redis.prefix", "parley:history:")
	viper.SetDefault("history.redis.ttl_minutes", 0)

	// Prompt defaults
	viper.SetDefault("prompt.mode", "terminal")
	viper.SetDefault("prompt.exchange_dir", "")

	// Results defaults
	viper.SetDefault("results.dir", "")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.dir", "")
	viper.SetDefault("logging.max_size_mb", 10)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.compress", false)
}

// Load unmarshals the configuration from viper and validates it.
// SetDefaults must have been called first.
func Load() (*Config, error) {
	cfg := Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return cfg, nil
}

// Get returns the current configuration, falling back to defaults when
// loading fails.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the directory parley reads its config file from,
// honoring XDG_CONFIG_HOME.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "parley")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".parley"
	}
	return filepath.Join(home, ".config", "parley")
}

// ConfigFile returns the path of the YAML config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// TurnTimeout returns the per-turn response deadline as a duration.
func (c EngineConfig) TurnTimeout() time.Duration {
	return time.Duration(c.TurnTimeoutSeconds) * time.Second
}

// IdleTimeout returns the idle threshold as a duration.
func (c SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMinutes) * time.Minute
}

// SweepInterval returns the sweeper period as a duration.
func (c RegistryConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// Timeout returns the conversation ceiling as a duration.
func (c OrchestratorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TTL returns the redis expiry as a duration.
func (c RedisConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// QuotaCommand builds the limiter argv prepended to the engine
// command, or nil when both quota fields are 0. MemoryMB caps the
// address space; the CPU-time budget is Quota.CPUs times the
// conversation ceiling, in seconds.
func (c *Config) QuotaCommand() []string {
	q := c.Engine.Quota
	if q.CPUs <= 0 && q.MemoryMB <= 0 {
		return nil
	}

	cmd := []string{"prlimit"}
	if q.MemoryMB > 0 {
		cmd = append(cmd, fmt.Sprintf("--as=%d", int64(q.MemoryMB)*1024*1024))
	}
	if q.CPUs > 0 {
		seconds := c.Orchestrator.TimeoutSeconds
		if seconds <= 0 {
			seconds = 600
		}
		cmd = append(cmd, fmt.Sprintf("--cpu=%d", q.CPUs*seconds))
	}
	return cmd
}

// HistoryDir returns the file backend's storage directory.
func (c *Config) HistoryDir() string {
	if c.History.Dir != "" {
		return c.History.Dir
	}
	return filepath.Join(ConfigDir(), "history")
}

// ExchangeDir returns the file prompter's exchange directory.
func (c *Config) ExchangeDir() string {
	if c.Prompt.ExchangeDir != "" {
		return c.Prompt.ExchangeDir
	}
	return filepath.Join(ConfigDir(), "exchange")
}

// ResultsDir returns where conversation results are written.
func (c *Config) ResultsDir() string {
	if c.Results.Dir != "" {
		return c.Results.Dir
	}
	return filepath.Join(ConfigDir(), "results")
}

// LogDir returns where log files are written.
func (c *Config) LogDir() string {
	if c.Logging.Dir != "" {
		return c.Logging.Dir
	}
	return filepath.Join(ConfigDir(), "logs")
}

// ValidCompletionModes returns the list of valid completion modes.
func ValidCompletionModes() []string {
	return []string{"auto", "manual"}
}

// IsValidCompletionMode checks if the given mode is valid.
func IsValidCompletionMode(mode string) bool {
	return slices.Contains(ValidCompletionModes(), mode)
}

// ValidHistoryBackends returns the list of valid history backends.
func ValidHistoryBackends() []string {
	return []string{"memory", "file", "redis"}
}

// IsValidHistoryBackend checks if the given backend is valid.
func IsValidHistoryBackend(backend string) bool {
	return slices.Contains(ValidHistoryBackends(), backend)
}

// ValidPromptModes returns the list of valid prompt modes.
func ValidPromptModes() []string {
	return []string{"terminal", "file"}
}

// IsValidPromptMode checks if the given mode is valid.
func IsValidPromptMode(mode string) bool {
	return slices.Contains(ValidPromptModes(), mode)
}

// ValidPermissionModes returns the engine permission modes parley
// knows how to pass through.
func ValidPermissionModes() []string {
	return []string{"default", "acceptEdits", "plan", "bypassPermissions"}
}

// IsValidPermissionMode checks if the given mode is valid.
func IsValidPermissionMode(mode string) bool {
	return slices.Contains(ValidPermissionModes(), mode)
}
