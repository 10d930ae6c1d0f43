package cmd

import (
	"fmt"
	"strings"

	"github.com/abhisek/dalil/internal/personality"
	"github.com/spf13/cobra"
)

var personalityCmd = &cobra.Command{
	Use:     "personality",
	Aliases: []string{"figures"},
	Short:   "Personality quiz: match historical figures to their descriptions",
}

var personalityGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Pick unsolved figures for a stage and shuffle their descriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		stage, _ := cmd.Flags().GetString("stage")
		n, _ := cmd.Flags().GetInt("count")
		if n <= 0 {
			n = cfg.Personality.NumQuestions
		}

		e, err := newGradingEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		q, err := e.PersonalityQuiz.Generate(cmd.Context(), userFlag(cmd), stage, n)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, map[string]any{"quiz": q, "total_questions": n})
		}

		out := cmd.OutOrStdout()
		if len(q.Personalities) == 0 {
			fmt.Fprintln(out, "No unsolved figures left for this stage.")
			return nil
		}
		fmt.Fprintln(out, "Figures:")
		for _, c := range q.Personalities {
			fmt.Fprintf(out, "  [%d] %s\n", c.ID, c.Name)
		}
		fmt.Fprintln(out, "\nDescriptions:")
		for _, d := range q.Descriptions {
			fmt.Fprintf(out, "  (%d) %s\n", d.ID, truncate(d.Text, 70))
		}
		return nil
	},
}

var personalitySubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Grade figure/description matches and record progress",
	Long: `Reads a JSON array of {"personality_id", "description_id"} objects.
Use --file - to read from stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		stage, _ := cmd.Flags().GetString("stage")

		var matches []personality.Match
		if err := decodeInput(cmd, path, &matches); err != nil {
			return err
		}

		e, err := newGradingEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := e.PersonalityQuiz.Submit(cmd.Context(), userFlag(cmd), stage, matches)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, res)
		}

		out := cmd.OutOrStdout()
		correct := 0
		for _, r := range res.Results {
			mark := "✗"
			if r.Correct {
				mark = "✓"
				correct++
			}
			fmt.Fprintf(out, "%s figure %d\n", mark, r.PersonalityID)
		}
		fmt.Fprintln(out, strings.Repeat("─", 40))
		fmt.Fprintf(out, "Correct: %d / %d  (solved so far: %d)\n", correct, len(res.Results), len(res.Progress))
		return nil
	},
}

var personalityProgressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show matched figures and mastery for a stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		stage, _ := cmd.Flags().GetString("stage")

		e, err := newGradingEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		view, err := e.PersonalityQuiz.Progress(cmd.Context(), userFlag(cmd), stage)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, view)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Stage %s: %d / %d figures matched (%.1f%%), %d of %d attempts correct\n",
			stage, len(view.SolvedPersonalities), view.TotalPersonalities, view.MasteryPercentage,
			view.CorrectMatches, view.TotalAttempts)
		for _, s := range view.SolvedPersonalities {
			fmt.Fprintf(out, "  %-24s  %s\n", truncate(s.Name, 24), truncate(s.Description, 50))
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{personalityGenerateCmd, personalitySubmitCmd, personalityProgressCmd} {
		c.Flags().StringP("stage", "s", "", "Educational stage (e.g. JS1)")
		c.Flags().Bool("json", false, "Print the result as JSON")
		_ = c.MarkFlagRequired("stage")
	}
	personalityGenerateCmd.Flags().IntP("count", "n", 0, "Number of figures (default from config)")
	personalitySubmitCmd.Flags().StringP("file", "f", "", "Matches JSON file, or - for stdin")

	personalityCmd.AddCommand(personalityGenerateCmd)
	personalityCmd.AddCommand(personalitySubmitCmd)
	personalityCmd.AddCommand(personalityProgressCmd)
}
