package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/abhisek/dalil/internal/session"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05"

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List, show and clean conversation sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the learner's sessions, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		mgr := session.NewManager(s.SessionRepo(), slog.Default())
		list, err := mgr.List(cmd.Context(), userFlag(cmd))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, "No sessions found.")
			return nil
		}

		fmt.Fprintf(out, "%-36s  %-6s  %-19s  %4s  %s\n", "Session", "Stage", "Last Activity", "Qs", "First Question")
		fmt.Fprintln(out, strings.Repeat("─", 100))
		for _, sum := range list {
			fmt.Fprintf(out, "%-36s  %-6s  %-19s  %4d  %s\n",
				sum.Token,
				sum.Stage,
				sum.LastActivity.Local().Format(timeLayout),
				sum.QuestionsCount,
				truncate(sum.FirstQuestion, 40),
			)
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <token>",
	Short: "Print every turn of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		mgr := session.NewManager(s.SessionRepo(), slog.Default())
		sess, err := mgr.Get(cmd.Context(), userFlag(cmd), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Session:   %s\n", sess.Token)
		fmt.Fprintf(out, "Stage:     %s\n", sess.Stage)
		if sess.Topic != "" {
			fmt.Fprintf(out, "Topic:     %s\n", sess.Topic)
		}
		fmt.Fprintf(out, "Created:   %s\n", sess.CreatedAt.Local().Format(timeLayout))
		fmt.Fprintf(out, "Questions: %d\n", sess.QuestionsCount)

		sep := strings.Repeat("─", 60)
		for i, t := range sess.Turns {
			fmt.Fprintln(out, sep)
			fmt.Fprintf(out, "[%d] %s\n", i+1, t.Timestamp.Local().Format(timeLayout))
			fmt.Fprintf(out, "Q: %s\n\nA: %s\n", t.Question, t.Answer)
		}
		return nil
	},
}

var sessionsCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete sessions with no activity within --max-age",
	RunE: func(cmd *cobra.Command, args []string) error {
		maxAge, _ := cmd.Flags().GetDuration("max-age")
		if maxAge <= 0 {
			maxAge = cfg.Session.MaxAge
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		mgr := session.NewManager(s.SessionRepo(), slog.Default())
		n, err := mgr.CleanOld(cmd.Context(), maxAge)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d session(s).\n", n)
		return nil
	},
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func init() {
	sessionsCleanCmd.Flags().Duration("max-age", 0, "Inactivity cutoff (default from config, 720h)")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsCleanCmd)
}
