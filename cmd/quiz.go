package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/dalil/internal/app"
	"github.com/abhisek/dalil/internal/quiz"
	"github.com/abhisek/dalil/internal/screens/quizplay"
	"github.com/spf13/cobra"
)

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Generate, play and submit multiple-choice quizzes",
}

var quizGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a quiz for a stage and level",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := generateQuiz(cmd, e)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, res)
		}

		out := cmd.OutOrStdout()
		if len(res.Quiz) == 0 {
			fmt.Fprintln(out, "No new questions could be generated for this level.")
			return nil
		}
		for _, q := range res.Quiz {
			fmt.Fprintf(out, "%d. %s\n", q.ID, q.Text)
			for _, a := range q.Answers {
				fmt.Fprintf(out, "   %d) %s\n", a.Index, a.Label)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

var quizPlayCmd = &cobra.Command{
	Use:   "play",
	Short: "Generate a quiz and answer it in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := generateQuiz(cmd, e)
		if err != nil {
			return err
		}
		stage, _ := cmd.Flags().GetString("stage")
		level, _ := cmd.Flags().GetInt("level")
		return app.Run(quizplay.NewQuizScreen(userFlag(cmd), stage, level, res.Quiz, e.Quiz))
	},
}

// submission is the file read by quiz submit: the quiz as generated and
// the chosen answer index for each question id.
type submission struct {
	Stage   string          `json:"stage"`
	Level   int             `json:"level"`
	Quiz    []quiz.Question `json:"quiz"`
	Answers map[int]int     `json:"answers"`
}

var quizSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Grade answers to a generated quiz and record progress",
	Long: `Reads a JSON document with "stage", "level", "quiz" (as printed by
quiz generate --json) and "answers" mapping question id to answer index.
Use --file - to read from stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		var sub submission
		if err := decodeInput(cmd, path, &sub); err != nil {
			return err
		}
		if s, _ := cmd.Flags().GetString("stage"); s != "" {
			sub.Stage = s
		}
		if l, _ := cmd.Flags().GetInt("level"); l > 0 {
			sub.Level = l
		}

		e, err := newGradingEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		now := time.Now()
		res, err := e.Quiz.Submit(cmd.Context(), quiz.SubmitInput{
			UserID:    userFlag(cmd),
			Stage:     sub.Stage,
			Level:     sub.Level,
			Answers:   sub.Answers,
			Quiz:      sub.Quiz,
			StartTime: now,
			EndTime:   now,
		})
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, res)
		}

		out := cmd.OutOrStdout()
		for _, r := range res.Results {
			mark := "✓"
			if !r.Correct {
				mark = "✗"
			}
			line := fmt.Sprintf("%s question %d", mark, r.QuestionID)
			if r.Error != "" {
				line += " (" + r.Error + ")"
			}
			fmt.Fprintln(out, line)
		}
		sum := res.Summary
		fmt.Fprintln(out, strings.Repeat("─", 40))
		fmt.Fprintf(out, "Correct:  %d / %d (%.0f%%)\n", sum.CorrectAnswers, sum.TotalQuestions, sum.Accuracy)
		fmt.Fprintf(out, "Progress: %d%%\n", sum.FinalProgress)
		return nil
	},
}

func generateQuiz(cmd *cobra.Command, e *app.Engine) (*quiz.GenerateResult, error) {
	stage, _ := cmd.Flags().GetString("stage")
	level, _ := cmd.Flags().GetInt("level")
	n, _ := cmd.Flags().GetInt("count")
	cached, _ := cmd.Flags().GetBool("cached")
	return e.Quiz.GenerateForUser(cmd.Context(), quiz.GenerateRequest{
		UserID:       userFlag(cmd),
		Stage:        stage,
		Level:        level,
		NumQuestions: n,
		UseCache:     cached,
	})
}

func init() {
	for _, c := range []*cobra.Command{quizGenerateCmd, quizPlayCmd} {
		c.Flags().StringP("stage", "s", "", "Educational stage (e.g. JS1)")
		c.Flags().IntP("level", "l", 1, "Curriculum level")
		c.Flags().IntP("count", "n", 0, "Number of questions (default from config)")
		c.Flags().Bool("cached", false, "Reuse a stored quiz for this level when available")
		_ = c.MarkFlagRequired("stage")
	}
	quizGenerateCmd.Flags().Bool("json", false, "Print the quiz as JSON")

	quizSubmitCmd.Flags().StringP("file", "f", "", "Submission JSON file, or - for stdin")
	quizSubmitCmd.Flags().StringP("stage", "s", "", "Override the stage in the file")
	quizSubmitCmd.Flags().IntP("level", "l", 0, "Override the level in the file")
	quizSubmitCmd.Flags().Bool("json", false, "Print the result as JSON")

	quizCmd.AddCommand(quizGenerateCmd)
	quizCmd.AddCommand(quizPlayCmd)
	quizCmd.AddCommand(quizSubmitCmd)
}
