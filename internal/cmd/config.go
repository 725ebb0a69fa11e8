package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/Iron-Ham/parley/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify Parley configuration",
	Long: `View or modify Parley configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  parley config set orchestrator.max_turns 30
  parley config set history.backend file
  parley config set logging.level debug

Valid keys:
  engine.binary                  - Engine executable name or path
  engine.permission_mode         - Permission mode handed to the engine
                                   Options: default, acceptEdits, plan, bypassPermissions
  engine.turn_timeout_seconds    - Per-turn response deadline
  session.idle_timeout_minutes   - Idle time before a session is swept
  registry.max_actors            - Max live engines (0 = unlimited)
  orchestrator.max_turns         - Turn ceiling per conversation
  orchestrator.timeout_seconds   - Wall-clock ceiling per conversation
  orchestrator.completion_mode   - How conversations end (auto/manual)
  history.backend                - Transcript storage (memory/file/redis)
  prompt.mode                    - Human input source (terminal/file)
  logging.level                  - Log verbosity (debug/info/warn/error)`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/parley/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	fmt.Println("Current configuration:")
	fmt.Println()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Config file: (none - using defaults)\n")
	}
	fmt.Println()

	// Engine settings
	fmt.Println("engine:")
	fmt.Printf("  binary: %s\n", cfg.Engine.Binary)
	fmt.Printf("  permission_mode: %s\n", cfg.Engine.PermissionMode)
	fmt.Printf("  turn_timeout_seconds: %d\n", cfg.Engine.TurnTimeoutSeconds)
	fmt.Println("  quota:")
	fmt.Printf("    cpus: %d\n", cfg.Engine.Quota.CPUs)
	fmt.Printf("    memory_mb: %d\n", cfg.Engine.Quota.MemoryMB)

	// Session settings
	fmt.Println("session:")
	fmt.Printf("  idle_timeout_minutes: %d\n", cfg.Session.IdleTimeoutMinutes)

	// Registry settings
	fmt.Println("registry:")
	fmt.Printf("  max_actors: %d\n", cfg.Registry.MaxActors)
	fmt.Printf("  sweep_interval_seconds: %d\n", cfg.Registry.SweepIntervalSeconds)

	// Orchestrator settings
	fmt.Println("orchestrator:")
	fmt.Printf("  max_turns: %d\n", cfg.Orchestrator.MaxTurns)
	fmt.Printf("  timeout_seconds: %d\n", cfg.Orchestrator.TimeoutSeconds)
	fmt.Printf("  completion_mode: %s\n", cfg.Orchestrator.CompletionMode)
	fmt.Printf("  stop_phrases: [%s]\n", strings.Join(cfg.Orchestrator.StopPhrases, ", "))

	// History settings
	fmt.Println("history:")
	fmt.Printf("  backend: %s\n", cfg.History.Backend)
	fmt.Printf("  dir: %s\n", cfg.HistoryDir())
	if cfg.History.Backend == "redis" {
		fmt.Println("  redis:")
		fmt.Printf("    addr: %s\n", cfg.History.Redis.Addr)
		fmt.Printf("    prefix: %s\n", cfg.History.Redis.Prefix)
		fmt.Printf("    ttl_minutes: %d\n", cfg.History.Redis.TTLMinutes)
	}

	// Prompt settings
	fmt.Println("prompt:")
	fmt.Printf("  mode: %s\n", cfg.Prompt.Mode)

	// Results settings
	fmt.Println("results:")
	fmt.Printf("  dir: %s\n", cfg.ResultsDir())

	// Logging settings
	fmt.Println("logging:")
	fmt.Printf("  level: %s\n", cfg.Logging.Level)
	fmt.Printf("  dir: %s\n", cfg.LogDir())

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	// Validate the key exists
	validKeys := map[string]string{
		"engine.binary":                "string",
		"engine.permission_mode":       "string",
		"engine.turn_timeout_seconds":  "int",
		"session.idle_timeout_minutes": "int",
		"registry.max_actors":          "int",
		"orchestrator.max_turns":       "int",
		"orchestrator.timeout_seconds": "int",
		"orchestrator.completion_mode": "string",
		"history.backend":              "string",
		"prompt.mode":                  "string",
		"logging.level":                "string",
	}

	keyType, ok := validKeys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'parley config set --help' to see valid keys", key)
	}

	// Validate the value based on type
	var typedValue interface{}
	switch keyType {
	case "string":
		if err := validateConfigString(key, value); err != nil {
			return err
		}
		typedValue = value
	case "int":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if intVal < 0 {
			return fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		typedValue = intVal
	}

	// Ensure config directory exists
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set the value in viper
	viper.Set(key, typedValue)

	// Write to config file
	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Set %s = %v\n", key, typedValue)
	fmt.Printf("Config saved to %s\n", configFile)

	return nil
}

// validateConfigString rejects values the loaded config would refuse
// anyway, so a bad set fails before it lands in the file.
func validateConfigString(key, value string) error {
	switch key {
	case "engine.permission_mode":
		if !config.IsValidPermissionMode(value) {
			return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(config.ValidPermissionModes(), ", "))
		}
	case "orchestrator.completion_mode":
		if !config.IsValidCompletionMode(value) {
			return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(config.ValidCompletionModes(), ", "))
		}
	case "history.backend":
		if !config.IsValidHistoryBackend(value) {
			return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(config.ValidHistoryBackends(), ", "))
		}
	case "prompt.mode":
		if !config.IsValidPromptMode(value) {
			return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(config.ValidPromptModes(), ", "))
		}
	case "logging.level":
		if !slices.Contains(config.ValidLogLevels(), strings.ToLower(value)) {
			return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(config.ValidLogLevels(), ", "))
		}
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'parley config set' to modify values", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Generate a commented config file
	configContent := `# Parley Configuration
# See: https://github.com/Iron-Ham/parley

# Engine settings
engine:
  # Executable launched for each session actor
  binary: claude
  # Permission mode handed to the engine
  # Options: default, acceptEdits, plan, bypassPermissions
  permission_mode: acceptEdits
  # Deadline for a single engine response in seconds
  turn_timeout_seconds: 300
  # Resource quota applied to the engine subprocess (0 disables)
  quota:
    cpus: 1
    memory_mb: 1024

# Session settings
session:
  # Idle time before a paused session is swept, in minutes
  idle_timeout_minutes: 11

# Registry settings
registry:
  # Maximum simultaneous live engines (0 = unlimited)
  max_actors: 0
  # How often the idle sweeper runs, in seconds
  sweep_interval_seconds: 60

# Orchestrator settings
orchestrator:
  # Turn ceiling per conversation
  max_turns: 50
  # Wall-clock ceiling per conversation, in seconds
  timeout_seconds: 600
  # auto ends the conversation on the engine's completion marker;
  # manual keeps it open until a stop phrase
  completion_mode: auto
  # Phrases that end the conversation when the human enters one
  stop_phrases:
    - done
    - exit
    - quit
    - stop

# History settings
history:
  # Transcript storage: memory, file, or redis
  backend: memory
  # Directory for the file backend (default: <config dir>/history)
  # dir: /path/to/history
  # redis:
  #   addr: localhost:6379
  #   prefix: "parley:history:"
  #   ttl_minutes: 0

# Prompt settings
prompt:
  # Where human input comes from: terminal or file
  mode: terminal

# Logging settings
logging:
  # Verbosity: debug, info, warn, error
  level: info
  # Log file rotation
  max_size_mb: 10
  max_backups: 3
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created config file at %s\n", configFile)
	fmt.Println("Edit this file to customize Parley's behavior.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Println("\nSearch paths:")
	fmt.Printf("  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Printf("  2. $HOME/.config/parley/config.yaml\n")
	fmt.Printf("  3. ./config.yaml (current directory)\n")
	fmt.Println("\nEnvironment variables: PARLEY_* (e.g., PARLEY_ORCHESTRATOR_MAX_TURNS)")

	return nil
}
