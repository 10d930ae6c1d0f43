package cmd

import (
	"errors"
	"fmt"

	"github.com/abhisek/dalil/internal/corpus"
	"github.com/spf13/cobra"
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Browse curriculum topics and read generated lessons",
}

var topicsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the topics of a stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		stage, _ := cmd.Flags().GetString("stage")
		content, err := loadContent()
		if err != nil {
			return err
		}

		topics := content.Topics(stage)
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, map[string]any{"topics": topics})
		}

		out := cmd.OutOrStdout()
		if len(topics) == 0 {
			fmt.Fprintf(out, "No topics for stage %q. Stages in corpus: %v\n", stage, content.Stages())
			return nil
		}
		for _, t := range topics {
			fmt.Fprintf(out, "%4s  %s\n", t.ID, t.Title)
		}
		return nil
	},
}

var topicsShowCmd = &cobra.Command{
	Use:   "show <id|title>",
	Short: "Print the lesson for a topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stage, _ := cmd.Flags().GetString("stage")

		e, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		title := args[0]
		if t, err := e.Lessons.TopicByID(stage, args[0]); err == nil {
			title = t.Title
		}

		lesson, err := e.Lessons.TopicContent(cmd.Context(), stage, title)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, lesson)
		}
		fmt.Fprintln(cmd.OutOrStdout(), lesson.Content)
		if !lesson.Enhanced {
			fmt.Fprintln(cmd.ErrOrStderr(), "\n(lesson generation failed; showing the curriculum text)")
		}
		return nil
	},
}

func loadContent() (*corpus.Content, error) {
	if cfg.Corpus.ContentPath == "" {
		return nil, errors.New("no content corpus configured (set corpus.content_path or DALIL_CORPUS)")
	}
	return corpus.LoadContent(cfg.Corpus.ContentPath)
}

func init() {
	for _, c := range []*cobra.Command{topicsListCmd, topicsShowCmd} {
		c.Flags().StringP("stage", "s", "", "Educational stage (e.g. JS1)")
		c.Flags().Bool("json", false, "Print the result as JSON")
		_ = c.MarkFlagRequired("stage")
	}

	topicsCmd.AddCommand(topicsListCmd)
	topicsCmd.AddCommand(topicsShowCmd)
}
