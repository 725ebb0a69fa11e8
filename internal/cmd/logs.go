package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Iron-Ham/parley/internal/config"
	"github.com/Iron-Ham/parley/internal/logging"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View Parley logs",
	Long: `View and filter the structured log written by parley query.

By default, shows the last 50 entries. Use flags to filter by session,
engine incarnation, component, level, or time, and to export the
filtered entries for post-hoc debugging.

Examples:
  # Show recent activity
  parley logs

  # Everything logged for one session
  parley logs -s abc123 -n 0

  # Warnings and errors from the registry sweeper
  parley logs --level warn --component sweeper

  # Entries from the last hour mentioning crashes
  parley logs --since 1h --grep crash

  # Export a session's entries as CSV
  parley logs -s abc123 --export abc123.csv --format csv`,
	RunE: runLogs,
}

var (
	logsSessionID   string
	logsExecutionID string
	logsComponent   string
	logsLevel       string
	logsSince       string
	logsGrep        string
	logsTail        int
	logsExport      string
	logsFormat      string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVarP(&logsSessionID, "session", "s", "", "Filter by session ID")
	logsCmd.Flags().StringVar(&logsExecutionID, "execution", "", "Filter by engine execution ID")
	logsCmd.Flags().StringVar(&logsComponent, "component", "", "Filter by component (registry, actor, engine, orchestrator, sweeper)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show entries since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter entries whose message contains this text")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().StringVar(&logsExport, "export", "", "Write the filtered entries to this file instead of the terminal")
	logsCmd.Flags().StringVar(&logsFormat, "format", "json", "Export format: json, text, or csv")
}

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorBlue   = "\033[34m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
)

// levelColor returns the ANSI color code for a log level
func levelColor(level string) string {
	switch strings.ToUpper(level) {
	case logging.LevelDebug:
		return colorGray
	case logging.LevelInfo:
		return colorBlue
	case logging.LevelWarn:
		return colorYellow
	case logging.LevelError:
		return colorRed
	default:
		return colorReset
	}
}

// formatLogEntry formats a log entry for terminal output
func formatLogEntry(entry logging.LogEntry) string {
	var sb strings.Builder

	// Timestamp
	sb.WriteString(colorGray)
	sb.WriteString("[")
	sb.WriteString(entry.Timestamp.Format("15:04:05.000"))
	sb.WriteString("]")
	sb.WriteString(colorReset)

	// Level with color
	sb.WriteString(" ")
	sb.WriteString(levelColor(entry.Level))
	sb.WriteString("[")
	sb.WriteString(entry.Level)
	sb.WriteString("]")
	sb.WriteString(colorReset)

	// Message
	sb.WriteString(" ")
	sb.WriteString(entry.Message)

	// Context fields (session_id, execution_id, component)
	for _, kv := range [][2]string{
		{"session", entry.SessionID},
		{"execution", entry.ExecutionID},
		{"component", entry.Component},
	} {
		if kv[1] == "" {
			continue
		}
		sb.WriteString(" ")
		sb.WriteString(colorCyan)
		sb.WriteString(kv[0])
		sb.WriteString("=")
		sb.WriteString(kv[1])
		sb.WriteString(colorReset)
	}

	// Extra fields
	for key, value := range entry.Attrs {
		sb.WriteString(" ")
		sb.WriteString(colorCyan)
		sb.WriteString(key)
		sb.WriteString("=")
		sb.WriteString(colorReset)
		sb.WriteString(fmt.Sprintf("%v", value))
	}

	return sb.String()
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	logDir := cfg.LogDir()

	logPath := filepath.Join(logDir, "debug.log")
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Println("No logs found.")
		fmt.Println("Logs are written to:", logPath)
		return nil
	}

	filter := logging.LogFilter{
		SessionID:       logsSessionID,
		ExecutionID:     logsExecutionID,
		Component:       logsComponent,
		MessageContains: logsGrep,
	}

	if logsLevel != "" {
		filter.Level = logging.ParseLevel(logsLevel)
	}

	if logsSince != "" {
		duration, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid duration format: %w", err)
		}
		filter.StartTime = time.Now().Add(-duration)
	}

	entries, err := logging.AggregateLogs(logDir)
	if err != nil {
		return fmt.Errorf("failed to read logs: %w", err)
	}
	entries = logging.FilterLogs(entries, filter)

	// Export mode writes the filtered set and skips terminal output
	if logsExport != "" {
		if err := logging.ExportLogEntries(entries, logsExport, logsFormat); err != nil {
			return fmt.Errorf("failed to export logs: %w", err)
		}
		fmt.Printf("Exported %d entries to %s\n", len(entries), logsExport)
		return nil
	}

	// Apply tail limit
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}

	for _, entry := range entries {
		fmt.Println(formatLogEntry(entry))
	}

	if len(entries) == 0 {
		fmt.Println("No matching log entries found.")
	}

	return nil
}
