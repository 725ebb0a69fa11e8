package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Iron-Ham/parley/internal/config"
	"github.com/Iron-Ham/parley/internal/display"
	"github.com/Iron-Ham/parley/internal/engine"
	"github.com/Iron-Ham/parley/internal/event"
	"github.com/Iron-Ham/parley/internal/history"
	"github.com/Iron-Ham/parley/internal/logging"
	"github.com/Iron-Ham/parley/internal/orchestrator"
	"github.com/Iron-Ham/parley/internal/prompt"
	"github.com/Iron-Ham/parley/internal/registry"
	"github.com/Iron-Ham/parley/internal/results"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query [session-id] <prompt...>",
	Short: "Converse with a session's engine",
	Long: `Query starts or resumes the conversation addressed by the session ID and
opens it with the given prompt. The engine stays alive between turns;
whenever it finishes a response, Parley pauses for the next human input.

The conversation ends when a stop phrase is entered, the engine emits
its completion marker (auto mode), or a turn or time limit trips. Files
the engine wrote are collected into the results directory along with a
summary document.

Examples:
  # Open a fresh conversation with a generated session ID
  parley query --new "Review the failing build on main"

  # Resume session abc123 with a follow-up
  parley query abc123 "Now fix the flaky test you found"

  # Keep the conversation open until a stop phrase, ignoring the marker
  parley query --new -m manual "Let's plan the migration"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var (
	queryNew     bool
	queryMode    string
	queryWorkDir string
	queryPlain   bool
)

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().BoolVar(&queryNew, "new", false, "Generate a fresh session ID instead of naming one")
	queryCmd.Flags().StringVarP(&queryMode, "mode", "m", "", "Completion mode: auto or manual (default from config)")
	queryCmd.Flags().StringVarP(&queryWorkDir, "work-dir", "w", "", "Engine working directory (default from config)")
	queryCmd.Flags().BoolVar(&queryPlain, "plain", false, "Disable styled terminal output")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sessionID, initialPrompt, err := querySession(args)
	if err != nil {
		return err
	}

	mode, err := queryCompletionMode(cfg)
	if err != nil {
		return err
	}

	workDir := queryWorkDir
	if workDir == "" {
		workDir = cfg.Engine.WorkDir
	}
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return fmt.Errorf("failed to resolve working directory: %w", err)
		}
	}

	logger, err := logging.NewLoggerWithRotation(cfg.LogDir(), logging.ParseLevel(cfg.Logging.Level), logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logger.Close()

	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	bus := event.NewBus()
	bus.SubscribeAll(func(e event.Event) {
		logger.Debug("event", "type", e.EventType())
	})

	reg := registry.New(registry.Config{
		Driver: &engine.ClaudeDriver{
			Binary:       cfg.Engine.Binary,
			QuotaCommand: cfg.QuotaCommand(),
			ExtraArgs:    cfg.Engine.ExtraArgs,
		},
		StartOptions: engine.StartOptions{
			WorkingDir:       workDir,
			PermissionMode:   cfg.Engine.PermissionMode,
			SystemPromptFile: cfg.Engine.SystemPromptFile,
			ExtraEnv:         cfg.Engine.ExtraEnv,
		},
		TurnTimeout:   cfg.Engine.TurnTimeout(),
		MaxActors:     cfg.Registry.MaxActors,
		IdleTimeout:   cfg.Session.IdleTimeout(),
		SweepInterval: cfg.Registry.SweepInterval(),
		Logger:        logger,
		Bus:           bus,
	})
	reg.StartSweeper()
	defer reg.Close()

	prompter, err := queryPrompter(cfg, logger)
	if err != nil {
		return err
	}

	renderer := display.New(os.Stdout, display.Options{Styled: !queryPlain})

	orc, err := orchestrator.New(orchestrator.Config{
		Registry:    reg,
		History:     store,
		Prompter:    prompter,
		Renderer:    renderer,
		Collector:   &results.Collector{Logger: logger},
		WorkDir:     workDir,
		ResultsDir:  cfg.ResultsDir(),
		Mode:        mode,
		StopPhrases: cfg.Orchestrator.StopPhrases,
		MaxTurns:    cfg.Orchestrator.MaxTurns,
		Ceiling:     cfg.Orchestrator.Timeout(),
		Bus:         bus,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build orchestrator: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := orc.Run(ctx, sessionID, initialPrompt)
	if err != nil {
		return fmt.Errorf("conversation failed: %w", err)
	}

	if path, werr := writeSummary(cfg.ResultsDir(), summary); werr != nil {
		logger.Warn("summary write failed", "error", werr)
	} else {
		fmt.Printf("\nSummary written to %s\n", path)
	}

	return nil
}

// querySession resolves the session ID and opening prompt from the
// positional arguments. With --new every argument is prompt text and a
// fresh ID is generated; otherwise the first argument names the session.
func querySession(args []string) (sessionID, initialPrompt string, err error) {
	if queryNew {
		return uuid.NewString(), strings.Join(args, " "), nil
	}
	if len(args) < 2 {
		return "", "", fmt.Errorf("usage: parley query <session-id> <prompt...> (or --new <prompt...>)")
	}
	return args[0], strings.Join(args[1:], " "), nil
}

func queryCompletionMode(cfg *config.Config) (results.Mode, error) {
	raw := queryMode
	if raw == "" {
		raw = cfg.Orchestrator.CompletionMode
	}
	mode, err := results.ParseMode(raw)
	if err != nil {
		return "", fmt.Errorf("invalid completion mode: %w", err)
	}
	return mode, nil
}

func queryPrompter(cfg *config.Config, logger *logging.Logger) (prompt.Prompter, error) {
	switch cfg.Prompt.Mode {
	case "", "terminal":
		return prompt.NewTerminalPrompter(), nil
	case "file":
		p, err := prompt.NewFilePrompter(cfg.ExchangeDir(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to set up file prompter: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown prompt mode %q", cfg.Prompt.Mode)
	}
}

// openHistory builds the history store the config names. The caller
// owns Close.
func openHistory(cfg *config.Config) (history.Store, error) {
	store, err := history.Open(history.Options{
		Backend: cfg.History.Backend,
		Dir:     cfg.HistoryDir(),
		Redis: history.RedisConfig{
			Addr:     cfg.History.Redis.Addr,
			Password: cfg.History.Redis.Password,
			DB:       cfg.History.Redis.DB,
			Prefix:   cfg.History.Redis.Prefix,
			TTL:      cfg.History.Redis.TTL(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	return store, nil
}

// writeSummary renders the conversation summary to
// <resultsDir>/<session>/summary.md.
func writeSummary(resultsDir string, sum results.Summary) (string, error) {
	dir := filepath.Join(resultsDir, sum.SessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "summary.md")
	if err := os.WriteFile(path, []byte(sum.Markdown()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
