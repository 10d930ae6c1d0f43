package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/abhisek/dalil/internal/app"
	"github.com/abhisek/dalil/internal/corpus"
	"github.com/abhisek/dalil/internal/embedding"
	"github.com/spf13/cobra"
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Inspect corpus files and precompute their embeddings",
}

var corpusInspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Validate a corpus file and summarize its contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		out := cmd.OutOrStdout()

		switch kind {
		case "content":
			c, err := corpus.LoadContent(args[0])
			if err != nil {
				return err
			}
			embedded := 0
			for _, it := range c.Items {
				if len(it.Embedding) > 0 {
					embedded++
				}
			}
			printManifest(cmd, c.Manifest, c.Len(), embedded)
			for _, st := range c.Stages() {
				fmt.Fprintf(out, "  %-8s %4d items  %3d topics\n", st, len(c.ByStage(st)), len(c.Topics(st)))
			}
		case "events":
			e, err := corpus.LoadEvents(args[0])
			if err != nil {
				return err
			}
			embedded := 0
			perStage := make(map[string]int)
			var stages []string
			for _, it := range e.Items {
				if len(it.Embedding) > 0 {
					embedded++
				}
				if perStage[it.EducationalStage] == 0 {
					stages = append(stages, it.EducationalStage)
				}
				perStage[it.EducationalStage]++
			}
			printManifest(cmd, e.Manifest, e.Len(), embedded)
			for _, st := range stages {
				fmt.Fprintf(out, "  %-8s %4d events\n", st, perStage[st])
			}
		case "personalities":
			p, err := corpus.LoadPersonalities(args[0])
			if err != nil {
				return err
			}
			perStage := make(map[string]int)
			var stages []string
			for _, it := range p.Items {
				if perStage[it.EducationalStage] == 0 {
					stages = append(stages, it.EducationalStage)
				}
				perStage[it.EducationalStage]++
			}
			printManifest(cmd, p.Manifest, p.Len(), 0)
			for _, st := range stages {
				fmt.Fprintf(out, "  %-8s %4d figures\n", st, perStage[st])
			}
		default:
			return fmt.Errorf("unknown corpus kind %q (want content, events or personalities)", kind)
		}
		return nil
	},
}

var corpusEmbedCmd = &cobra.Command{
	Use:   "embed <file>",
	Short: "Compute missing embeddings and write the corpus with vectors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		outPath, _ := cmd.Flags().GetString("out")
		if outPath == "" {
			return fmt.Errorf("--out is required")
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		inner, err := app.NewEmbedder(ctx, cfg.Embedding)
		if err != nil {
			return err
		}
		emb := embedding.NewCachedEmbedder(inner, cfg.Embedding.CacheCapacity, s.EmbeddingCacheRepo(), slog.Default())

		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", outPath, err)
		}
		defer f.Close()

		n, err := embedCorpus(cmd, kind, args[0], emb, f)
		if err != nil {
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Embedded %d item(s) with %s -> %s\n", n, emb.Model(), outPath)
		return nil
	},
}

// embedCorpus loads the corpus at path, fills missing vectors and writes
// the result to w.
func embedCorpus(cmd *cobra.Command, kind, path string, emb embedding.Embedder, w io.Writer) (int, error) {
	ctx := cmd.Context()
	switch kind {
	case "content":
		c, err := corpus.LoadContent(path)
		if err != nil {
			return 0, err
		}
		n, err := c.EnsureEmbeddings(ctx, emb)
		if err != nil {
			return n, err
		}
		return n, corpus.WriteContent(w, c)
	case "events":
		e, err := corpus.LoadEvents(path)
		if err != nil {
			return 0, err
		}
		n, err := e.EnsureEmbeddings(ctx, emb)
		if err != nil {
			return n, err
		}
		return n, corpus.WriteEvents(w, e)
	default:
		return 0, fmt.Errorf("unknown corpus kind %q (want content or events)", kind)
	}
}

func printManifest(cmd *cobra.Command, m corpus.Manifest, total, embedded int) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Version:   %s\n", m.Version)
	model := m.EmbeddingModel
	if model == "" {
		model = "(none)"
	}
	fmt.Fprintf(out, "Embedding: %s\n", model)
	fmt.Fprintf(out, "Items:     %d (%d embedded)\n\n", total, embedded)
}

func init() {
	corpusInspectCmd.Flags().StringP("kind", "k", "content", "Corpus kind: content, events or personalities")
	corpusEmbedCmd.Flags().StringP("kind", "k", "content", "Corpus kind: content or events")
	corpusEmbedCmd.Flags().StringP("out", "o", "", "Output file (envelope JSON)")

	corpusCmd.AddCommand(corpusInspectCmd)
	corpusCmd.AddCommand(corpusEmbedCmd)
}
