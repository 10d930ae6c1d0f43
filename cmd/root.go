package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/abhisek/dalil/internal/app"
	"github.com/abhisek/dalil/internal/config"
	"github.com/abhisek/dalil/internal/store"
	"github.com/spf13/cobra"
)

// cfg is loaded once by the root command before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dalil",
	Short: "History tutor that answers from the curriculum and quizzes learners",
	Long: `Dalil answers history questions grounded on a curriculum corpus,
keeps per-learner conversations, and generates multiple-choice and
historical-events quizzes that track mastery over time.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command. An interrupt cancels the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("db", "", "Path to SQLite database file (overrides DALIL_DB env var)")
	pf.String("config", "", "Path to YAML config file (overrides DALIL_CONFIG env var)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: text or json")
	pf.StringP("user", "u", defaultUser(), "Learner id (defaults to DALIL_USER)")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(quizCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(personalityCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(topicsCmd)
	rootCmd.AddCommand(corpusCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

func defaultUser() string {
	if u := os.Getenv("DALIL_USER"); u != "" {
		return u
	}
	return "local"
}

// setup loads configuration, applies flag overrides and installs the
// default logger.
func setup(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		c.LogLevel = lvl
	}
	if f, _ := cmd.Flags().GetString("log-format"); f != "" {
		c.LogFormat = f
	}
	cfg = c

	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.EqualFold(c.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then DALIL_DB env var or the config file, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if cfg != nil && cfg.DBPath != "" {
		return cfg.DBPath, store.EnsureDir(cfg.DBPath)
	}
	return store.DefaultDBPath()
}

// openStore opens the database for commands that only read learner state.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

// newEngine assembles the full engine for commands that generate text.
func newEngine(cmd *cobra.Command) (*app.Engine, error) {
	return buildEngine(cmd, false)
}

// newGradingEngine assembles an engine without a generation backend, for
// commands that only grade answers or report progress.
func newGradingEngine(cmd *cobra.Command) (*app.Engine, error) {
	return buildEngine(cmd, true)
}

func buildEngine(cmd *cobra.Command, skipGeneration bool) (*app.Engine, error) {
	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	return app.New(cmd.Context(), cfg, app.Options{DSN: dbPath, SkipGeneration: skipGeneration})
}

func userFlag(cmd *cobra.Command) string {
	u, _ := cmd.Flags().GetString("user")
	return u
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
