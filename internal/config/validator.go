package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/Iron-Ham/parley/internal/errors"
)

// ValidationErrors is a collection of validation failures from one
// Validate pass.
type ValidationErrors []*errors.ValidationError

// Error implements the error interface for ValidationErrors.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e ValidationErrors) Unwrap() []error {
	out := make([]error, len(e))
	for i, err := range e {
		out[i] = err
	}
	return out
}

// ValidLogLevels returns the list of valid log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all
// validation errors found.
func (c *Config) Validate() []*errors.ValidationError {
	var errs []*errors.ValidationError

	errs = append(errs, c.validateEngine()...)
	errs = append(errs, c.validateSession()...)
	errs = append(errs, c.validateRegistry()...)
	errs = append(errs, c.validateOrchestrator()...)
	errs = append(errs, c.validateHistory()...)
	errs = append(errs, c.validatePrompt()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

// validateEngine validates the EngineConfig.
func (c *Config) validateEngine() []*errors.ValidationError {
	var errs []*errors.ValidationError

	if c.Engine.PermissionMode != "" && !IsValidPermissionMode(c.Engine.PermissionMode) {
		errs = append(errs, errors.NewValidationError(
			fmt.Sprintf("must be one of: %s", strings.Join(ValidPermissionModes(), ", "))).
			WithField("engine.permission_mode").
			WithValue(c.Engine.PermissionMode))
	}

	if c.Engine.SystemPromptFile != "" {
		if _, err := os.Stat(c.Engine.SystemPromptFile); err != nil {
			errs = append(errs, errors.NewValidationError("file does not exist").
				WithField("engine.system_prompt_file").
				WithValue(c.Engine.SystemPromptFile))
		}
	}

	if c.Engine.TurnTimeoutSeconds < 0 {
		errs = append(errs, errors.NewValidationError("must be non-negative").
			WithField("engine.turn_timeout_seconds").
			WithValue(c.Engine.TurnTimeoutSeconds))
	}

	// Reasonable upper bound for a single engine response.
	const maxTurnTimeoutSeconds = 3600 // 1 hour
	if c.Engine.TurnTimeoutSeconds > maxTurnTimeoutSeconds {
		errs = append(errs, errors.NewValidationError(
			fmt.Sprintf("exceeds maximum of %d seconds", maxTurnTimeoutSeconds)).
			WithField("engine.turn_timeout_seconds").
			WithValue(c.Engine.TurnTimeoutSeconds))
	}

	if c.Engine.Quota.CPUs < 0 {
		errs = append(errs, errors.NewValidationError("must be non-negative (0 disables the CPU quota)").
			WithField("engine.quota.cpus").
			WithValue(c.Engine.Quota.CPUs))
	}

	if c.Engine.Quota.MemoryMB < 0 {
		errs = append(errs, errors.NewValidationError("must be non-negative (0 disables the memory quota)").
			WithField("engine.quota.memory_mb").
			WithValue(c.Engine.Quota.MemoryMB))
	}

	// Below this the engine cannot start at all.
	const minQuotaMemoryMB = 128
	if c.Engine.Quota.MemoryMB > 0 && c.Engine.Quota.MemoryMB < minQuotaMemoryMB {
		errs = append(errs, errors.NewValidationError(
			fmt.Sprintf("must be at least %dMB", minQuotaMemoryMB)).
			WithField("engine.quota.memory_mb").
			WithValue(c.Engine.Quota.MemoryMB))
	}

	return errs
}

// validateSession validates the SessionConfig.
func (c *Config) validateSession() []*errors.ValidationError {
	var errs []*errors.ValidationError

	if c.Session.IdleTimeoutMinutes < 0 {
		errs = append(errs, errors.NewValidationError("must be non-negative").
			WithField("session.idle_timeout_minutes").
			WithValue(c.Session.IdleTimeoutMinutes))
	}

	const maxIdleTimeoutMinutes = 1440 // 24 hours
	if c.Session.IdleTimeoutMinutes > maxIdleTimeoutMinutes {
		errs = append(errs, errors.NewValidationError(
			fmt.Sprintf("exceeds maximum of %d minutes", maxIdleTimeoutMinutes)).
			WithField("session.idle_timeout_minutes").
			WithValue(c.Session.IdleTimeoutMinutes))
	}

	return errs
}

// validateRegistry validates the RegistryConfig.
func (c *Config) validateRegistry() []*errors.ValidationError {
	var errs []*errors.ValidationError

	if c.Registry.MaxActors < 0 {
		errs = append(errs, errors.NewValidationError("must be non-negative (0 means unlimited)").
			WithField("registry.max_actors").
			WithValue(c.Registry.MaxActors))
	}

	if c.Registry.SweepIntervalSeconds < 0 {
		errs = append(errs, errors.NewValidationError("must be non-negative").
			WithField("registry.sweep_interval_seconds").
			WithValue(c.Registry.SweepIntervalSeconds))
	}

	return errs
}

// validateOrchestrator validates the OrchestratorConfig.
func (c *Config) validateOrchestrator() []*errors.ValidationError {
	var errs []*errors.ValidationError

	if c.Orchestrator.MaxTurns < 0 {
		errs = append(errs, errors.NewValidationError("must be non-negative").
			WithField("orchestrator.max_turns").
			WithValue(c.Orchestrator.MaxTurns))
	}

	const maxTurnsLimit = 1000
	if c.Orchestrator.MaxTurns > maxTurnsLimit {
		errs = append(errs, errors.NewValidationError(
			fmt.Sprintf("exceeds maximum of %d", maxTurnsLimit)).
			WithField("orchestrator.max_turns").
			WithValue(c.Orchestrator.MaxTurns))
	}

	if c.Orchestrator.TimeoutSeconds < 0 {
		errs = append(errs, errors.NewValidationError("must be non-negative").
			WithField("orchestrator.timeout_seconds").
			WithValue(c.Orchestrator.TimeoutSeconds))
	}

	const maxTimeoutSeconds = 86400 // 24 hours
	if c.Orchestrator.TimeoutSeconds > maxTimeoutSeconds {
		errs = append(errs, errors.NewValidationError(
			fmt.Sprintf("exceeds maximum of %d seconds", maxTimeoutSeconds)).
			WithField("orchestrator.timeout_seconds").
			WithValue(c.Orchestrator.TimeoutSeconds))
	}

	if c.Orchestrator.CompletionMode != "" && !IsValidCompletionMode(c.Orchestrator.CompletionMode) {
		errs = append(errs, errors.NewValidationError(
			fmt.Sprintf("must be one of: %s", strings.Join(ValidCompletionModes(), ", "))).
			WithField("orchestrator.completion_mode").
			WithValue(c.Orchestrator.CompletionMode))
	}

	errs = append(errs, validateStopPhrases(c.Orchestrator.StopPhrases)...)

	return errs
}

// validateStopPhrases checks each configured stop phrase for blanks
// and duplicates. Phrases compare case-insensitively after trimming,
// so duplicates are detected on the normalized form.
func validateStopPhrases(phrases []string) []*errors.ValidationError {
	var errs []*errors.ValidationError

	seen := make(map[string]bool)
	for i, phrase := range phrases {
		field := fmt.Sprintf("orchestrator.stop_phrases[%d]", i)

		normalized := strings.ToLower(strings.TrimSpace(phrase))
		if normalized == "" {
			errs = append(errs, errors.NewValidationError("stop phrase cannot be blank").
				WithField(field).
				WithValue(phrase))
			continue
		}

		if seen[normalized] {
			errs = append(errs, errors.NewValidationError("duplicate stop phrase").
				WithField(field).
				WithValue(phrase))
		}
		seen[normalized] = true
	}

	return errs
}

// validateHistory validates the HistoryConfig.
func (c *Config) validateHistory() []*errors.ValidationError {
	var errs []*errors.ValidationError

	if c.History.Backend != "" && !IsValidHistoryBackend(c.History.Backend) {
		errs = append(errs, errors.NewValidationError(
			fmt.Sprintf("must be one of: %s", strings.Join(ValidHistoryBackends(), ", "))).
			WithField("history.backend").
			WithValue(c.History.Backend))
	}

	if c.History.Redis.DB < 0 {
		errs = append(errs, errors.NewValidationError("must be non-negative").
			WithField("history.redis.db").
			WithValue(c.History.Redis.DB))
	}

	if c.History.Redis.TTLMinutes < 0 {
		errs = append(errs, errors.NewValidationError("must be non-negative (0 keeps history forever)").
			WithField("history.redis.ttl_minutes").
			WithValue(c.History.Redis.TTLMinutes))
	}

	return errs
}

// validatePrompt validates the PromptConfig.
func (c *Config) validatePrompt() []*errors.ValidationError {
	var errs []*errors.ValidationError

	if c.Prompt.Mode != "" && !IsValidPromptMode(c.Prompt.Mode) {
		errs = append(errs, errors.NewValidationError(
			fmt.Sprintf("must be one of: %s", strings.Join(ValidPromptModes(), ", "))).
			WithField("prompt.mode").
			WithValue(c.Prompt.Mode))
	}

	return errs
}

// validateLogging validates the LoggingConfig.
func (c *Config) validateLogging() []*errors.ValidationError {
	var errs []*errors.ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, errors.NewValidationError(
			fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", "))).
			WithField("logging.level").
			WithValue(c.Logging.Level))
	}

	if c.Logging.MaxSizeMB < 0 {
		errs = append(errs, errors.NewValidationError("must be non-negative (0 disables rotation)").
			WithField("logging.max_size_mb").
			WithValue(c.Logging.MaxSizeMB))
	}

	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errs = append(errs, errors.NewValidationError(
			fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB)).
			WithField("logging.max_size_mb").
			WithValue(c.Logging.MaxSizeMB))
	}

	if c.Logging.MaxBackups < 0 {
		errs = append(errs, errors.NewValidationError("must be non-negative").
			WithField("logging.max_backups").
			WithValue(c.Logging.MaxBackups))
	}

	return errs
}
