package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/abhisek/dalil/internal/app"
	"github.com/abhisek/dalil/internal/events"
	"github.com/abhisek/dalil/internal/screens/quizplay"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Historical events quiz: match dates and events",
}

var eventsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Pick unsolved events for a stage in chronological order",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newGradingEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		qs, err := generateEvents(cmd, e)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, map[string]any{"quiz": qs})
		}

		out := cmd.OutOrStdout()
		if len(qs) == 0 {
			fmt.Fprintln(out, "Not enough unsolved events left for this stage.")
			return nil
		}
		for _, q := range qs {
			if q.Type == events.DateToEvent {
				fmt.Fprintf(out, "[%d] What happened on %s?\n", q.ID, q.Date)
			} else {
				fmt.Fprintf(out, "[%d] When did this happen? %s\n", q.ID, q.Event)
			}
		}
		return nil
	},
}

var eventsPlayCmd = &cobra.Command{
	Use:   "play",
	Short: "Answer an events quiz in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newGradingEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		qs, err := generateEvents(cmd, e)
		if err != nil {
			return err
		}
		stage, _ := cmd.Flags().GetString("stage")
		return app.Run(quizplay.NewEventsScreen(userFlag(cmd), stage, qs, e.EventsQuiz))
	},
}

var eventsSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Grade events answers and record progress",
	Long: `Reads a JSON array of {"question_id", "answer", "type"} objects.
Type 0 answers name the event; type 1 answers give the date.
Use --file - to read from stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		stage, _ := cmd.Flags().GetString("stage")

		var answers []events.Answer
		if err := decodeInput(cmd, path, &answers); err != nil {
			return err
		}

		e, err := newGradingEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		results, err := e.EventsQuiz.Submit(cmd.Context(), userFlag(cmd), stage, answers)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, results)
		}

		out := cmd.OutOrStdout()
		correct := 0
		for _, r := range results {
			mark := "✗"
			if r.Correct {
				mark = "✓"
				correct++
			}
			fmt.Fprintf(out, "%s event %d\n", mark, r.QuestionID)
		}
		fmt.Fprintln(out, strings.Repeat("─", 40))
		fmt.Fprintf(out, "Correct: %d / %d\n", correct, len(results))
		return nil
	},
}

var eventsProgressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show solved events and mastery for a stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		stage, _ := cmd.Flags().GetString("stage")

		e, err := newGradingEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		view, err := e.EventsQuiz.Progress(cmd.Context(), userFlag(cmd), stage)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, view)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Stage %s: %d / %d events solved (%.1f%%)\n",
			stage, len(view.SolvedQuestions), view.TotalEvents, view.MasteryPercentage)
		for _, s := range view.SolvedQuestions {
			fmt.Fprintf(out, "  %-12s  %s\n", s.Date, truncate(s.Event, 60))
		}
		return nil
	},
}

func generateEvents(cmd *cobra.Command, e *app.Engine) ([]events.Question, error) {
	stage, _ := cmd.Flags().GetString("stage")
	n, _ := cmd.Flags().GetInt("count")
	if n <= 0 {
		n = cfg.Events.NumQuestions
	}
	return e.EventsQuiz.Generate(cmd.Context(), userFlag(cmd), stage, n)
}

// decodeInput decodes JSON from path, or from stdin when path is "-".
func decodeInput(cmd *cobra.Command, path string, v any) error {
	if path == "" {
		return fmt.Errorf("--file is required")
	}
	if path == "-" {
		return json.NewDecoder(cmd.InOrStdin()).Decode(v)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func init() {
	for _, c := range []*cobra.Command{eventsGenerateCmd, eventsPlayCmd, eventsSubmitCmd, eventsProgressCmd} {
		c.Flags().StringP("stage", "s", "", "Educational stage (e.g. JS1)")
		_ = c.MarkFlagRequired("stage")
	}
	for _, c := range []*cobra.Command{eventsGenerateCmd, eventsPlayCmd} {
		c.Flags().IntP("count", "n", 0, "Number of questions (default from config)")
	}
	for _, c := range []*cobra.Command{eventsGenerateCmd, eventsSubmitCmd, eventsProgressCmd} {
		c.Flags().Bool("json", false, "Print the result as JSON")
	}
	eventsSubmitCmd.Flags().StringP("file", "f", "", "Answers JSON file, or - for stdin")

	eventsCmd.AddCommand(eventsGenerateCmd)
	eventsCmd.AddCommand(eventsPlayCmd)
	eventsCmd.AddCommand(eventsSubmitCmd)
	eventsCmd.AddCommand(eventsProgressCmd)
}
