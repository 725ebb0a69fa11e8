package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/parley/internal/config"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored conversation sessions",
	Long:  `Commands for listing and cleaning up durable conversation records.`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions with stored history",
	Long: `List every session the history store holds a transcript for, with
turn counts and the time of the last recorded activity.`,
	RunE: runSessionsList,
}

var sessionsEvictCmd = &cobra.Command{
	Use:   "evict <session-id>",
	Short: "Discard a session's stored history",
	Long: `Evict removes the durable transcript of a session. The next query
under the same ID starts the engine from a blank slate.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionsEvict,
}

var sessionsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Discard sessions idle past the timeout",
	Long: `Sweep removes the stored transcript of every session whose last
recorded turn is older than the idle timeout. The threshold comes from
session.idle_timeout_minutes unless --older-than overrides it.`,
	RunE: runSessionsSweep,
}

var sweepOlderThan string

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsEvictCmd)
	sessionsCmd.AddCommand(sessionsSweepCmd)

	sessionsSweepCmd.Flags().StringVar(&sweepOlderThan, "older-than", "", "Idle threshold (e.g. 30m, 2h), overrides config")
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	ids, err := store.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	fmt.Println(strings.Repeat("─", 70))
	fmt.Println("Parley Sessions")
	fmt.Println(strings.Repeat("─", 70))

	if len(ids) == 0 {
		fmt.Println("\nNo stored sessions found.")
		if cfg.History.Backend == "" || cfg.History.Backend == "memory" {
			fmt.Println("The memory backend keeps nothing between runs; set")
			fmt.Println("history.backend to \"file\" or \"redis\" for durable records.")
		}
		fmt.Println(strings.Repeat("─", 70))
		return nil
	}

	fmt.Printf("\nFound %d session(s):\n\n", len(ids))

	for _, id := range ids {
		turns, err := store.Load(ctx, id)
		if err != nil {
			fmt.Printf("  Session: %s (unreadable: %v)\n\n", id, err)
			continue
		}

		fmt.Printf("  Session: %s\n", id)
		fmt.Printf("    Turns:   %d\n", len(turns))
		if len(turns) > 0 {
			fmt.Printf("    Opened:  %s\n", turns[0].Timestamp.Format(time.RFC822))
			fmt.Printf("    Last:    %s\n", turns[len(turns)-1].Timestamp.Format(time.RFC822))
		}
		fmt.Println()
	}

	fmt.Println(strings.Repeat("─", 70))
	fmt.Println("\nTo resume a session: parley query <session-id> <prompt...>")
	fmt.Println("To discard one:      parley sessions evict <session-id>")
	return nil
}

func runSessionsEvict(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sessionID := args[0]
	if err := store.Clear(cmd.Context(), sessionID); err != nil {
		return fmt.Errorf("failed to evict session %s: %w", sessionID, err)
	}

	fmt.Printf("Evicted stored history for session %s\n", sessionID)
	return nil
}

func runSessionsSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	threshold := cfg.Session.IdleTimeout()
	if sweepOlderThan != "" {
		threshold, err = time.ParseDuration(sweepOlderThan)
		if err != nil {
			return fmt.Errorf("invalid --older-than duration: %w", err)
		}
	}

	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	ids, err := store.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	cutoff := time.Now().Add(-threshold)
	var swept int
	for _, id := range ids {
		turns, err := store.Load(ctx, id)
		if err != nil {
			fmt.Printf("Warning: session %s is unreadable: %v\n", id, err)
			continue
		}

		// A record with no turns is stale by definition.
		idle := len(turns) == 0 || turns[len(turns)-1].Timestamp.Before(cutoff)
		if !idle {
			continue
		}

		if err := store.Clear(ctx, id); err != nil {
			fmt.Printf("Warning: failed to sweep session %s: %v\n", id, err)
			continue
		}
		swept++
		fmt.Printf("  - Session %s\n", id)
	}

	if swept == 0 {
		fmt.Println("No idle sessions to sweep")
	} else {
		fmt.Printf("Swept %d idle session(s) (threshold %s)\n", swept, threshold)
	}
	return nil
}
