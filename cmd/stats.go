package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/abhisek/dalil/internal/mastery"
	"github.com/abhisek/dalil/internal/store"
	"github.com/abhisek/dalil/internal/ui/components"
	"github.com/spf13/cobra"
)

const barWidth = 40

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show quiz mastery for a stage, or one level in detail",
	RunE: func(cmd *cobra.Command, args []string) error {
		stage, _ := cmd.Flags().GetString("stage")
		level, _ := cmd.Flags().GetInt("level")
		asJSON, _ := cmd.Flags().GetBool("json")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		tracker := newTracker(s)
		ctx := cmd.Context()
		user := userFlag(cmd)
		out := cmd.OutOrStdout()

		if level > 0 {
			p, err := tracker.Progress(ctx, user, stage, level)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, p)
			}
			printLevel(out, stage, level, p)
			return nil
		}

		levels, err := tracker.StageProgress(ctx, user, stage)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd, levels)
		}
		if len(levels) == 0 {
			fmt.Fprintf(out, "No quiz progress recorded for %s.\n", stage)
			return nil
		}
		fmt.Fprintf(out, "Stage %s\n\n", stage)
		for _, l := range slices.Sorted(maps.Keys(levels)) {
			sum := levels[l]
			bar := components.NewProgressBar(fmt.Sprintf("Level %-2d", l), float64(sum.Progress), barWidth)
			fmt.Fprintf(out, "%s  %d/%d correct\n", bar.View(), sum.TotalCorrect, sum.QuestionsAttempted)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show learning statistics across stages",
	RunE: func(cmd *cobra.Command, args []string) error {
		stage, _ := cmd.Flags().GetString("stage")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := newTracker(s).UserStats(cmd.Context(), userFlag(cmd), stage)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, stats)
		}

		out := cmd.OutOrStdout()
		if stats.TotalQuestionsAnswered == 0 {
			fmt.Fprintln(out, "No quiz answers recorded yet.")
			return nil
		}
		fmt.Fprintf(out, "Questions answered: %d\n", stats.TotalQuestionsAnswered)
		fmt.Fprintf(out, "Correct:            %d\n", stats.TotalCorrect)
		fmt.Fprintf(out, "Incorrect:          %d\n", stats.TotalIncorrect)
		fmt.Fprintf(out, "Accuracy:           %.1f%%\n", stats.Accuracy)
		fmt.Fprintf(out, "Levels completed:   %d\n", stats.LevelsCompleted)

		for _, name := range slices.Sorted(maps.Keys(stats.Stages)) {
			ss := stats.Stages[name]
			fmt.Fprintln(out)
			fmt.Fprintln(out, components.NewProgressBar(name, ss.Progress, barWidth).View())
			fmt.Fprintln(out, strings.Repeat("─", barWidth))
			for _, l := range slices.Sorted(maps.Keys(ss.Levels)) {
				ls := ss.Levels[l]
				fmt.Fprintf(out, "  level %-3d %3d%%  %3d/%-3d correct  %5.1f%% accuracy\n",
					l, ls.Progress, ls.CorrectAnswers, ls.TotalQuestions, ls.Accuracy)
			}
		}
		return nil
	},
}

func newTracker(s *store.Store) *mastery.Tracker {
	return mastery.NewTracker(s.ProgressRepo(), mastery.Options{Logger: slog.Default()})
}

func printLevel(out io.Writer, stage string, level int, p mastery.LevelProgress) {
	fmt.Fprintln(out, components.NewProgressBar(fmt.Sprintf("%s level %d", stage, level), float64(p.Progress), barWidth).View())
	fmt.Fprintf(out, "Seen %d  ✓ %d  ✗ %d  mastery %d\n",
		p.TotalQuestionsSeen, p.TotalCorrect, p.TotalIncorrect, p.MasteryScore())

	if len(p.IncorrectQuestions) > 0 {
		fmt.Fprintln(out, "\nTo review:")
		for _, q := range p.IncorrectQuestions {
			fmt.Fprintf(out, "  - %s\n", q)
		}
	}
	if len(p.QuizHistory) > 0 {
		fmt.Fprintln(out, "\nRecent answers:")
		for _, h := range p.QuizHistory {
			mark := "✓"
			if !h.Correct {
				mark = "✗"
			}
			fmt.Fprintf(out, "  %s %s  %s\n", mark, h.Timestamp.Local().Format(timeLayout), truncate(h.Question, 60))
		}
	}
}

func init() {
	progressCmd.Flags().StringP("stage", "s", "", "Educational stage (e.g. JS1)")
	progressCmd.Flags().IntP("level", "l", 0, "Show one level in detail")
	progressCmd.Flags().Bool("json", false, "Print the result as JSON")
	_ = progressCmd.MarkFlagRequired("stage")

	statsCmd.Flags().StringP("stage", "s", "", "Limit to one stage")
	statsCmd.Flags().Bool("json", false, "Print the result as JSON")
}
