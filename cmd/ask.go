package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/abhisek/dalil/internal/chat"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask one question, optionally continuing a session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		in := askInput(cmd, strings.Join(args, " "))
		in.SessionToken, _ = cmd.Flags().GetString("session")

		res, err := e.Chat.Ask(cmd.Context(), in)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, res)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, res.Answer)
		fmt.Fprintf(out, "\nsession: %s\n", res.SessionToken)
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question and answer session on stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		token, _ := cmd.Flags().GetString("session")

		fmt.Fprintln(out, "Ask a question. An empty line or Ctrl+D ends the session.")
		sc := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !sc.Scan() {
				break
			}
			q := strings.TrimSpace(sc.Text())
			if q == "" {
				break
			}
			in := askInput(cmd, q)
			in.SessionToken = token
			res, err := e.Chat.Ask(ctx, in)
			if err != nil {
				return err
			}
			token = res.SessionToken
			fmt.Fprintf(out, "\n%s\n\n", res.Answer)
		}
		if token != "" {
			fmt.Fprintf(out, "session: %s\n", token)
		}
		return sc.Err()
	},
}

func askInput(cmd *cobra.Command, question string) chat.AskInput {
	stage, _ := cmd.Flags().GetString("stage")
	era, _ := cmd.Flags().GetString("era")
	topic, _ := cmd.Flags().GetString("topic")
	return chat.AskInput{
		UserID:   userFlag(cmd),
		Question: question,
		Stage:    stage,
		Era:      era,
		Topic:    topic,
	}
}

func init() {
	for _, c := range []*cobra.Command{askCmd, chatCmd} {
		c.Flags().StringP("stage", "s", "", "Educational stage (e.g. JS1, HSS2)")
		c.Flags().String("era", "", "Restrict retrieval to a historical era")
		c.Flags().String("topic", "", "Answer from this topic's content instead of retrieval")
		c.Flags().String("session", "", "Session token to continue")
	}
	askCmd.Flags().Bool("json", false, "Print the result as JSON")
}
