// Package retrieval selects curriculum passages relevant to a learner's
// question, blending in recent conversation history and bounding the
// result by a word budget.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abhisek/dalil/internal/cache"
	"github.com/abhisek/dalil/internal/corpus"
	"github.com/abhisek/dalil/internal/embedding"
	"github.com/abhisek/dalil/internal/textnorm"
	"github.com/abhisek/dalil/internal/vecindex"
)

// Defaults for Query fields left at zero.
const (
	DefaultMaxWords     = 1000
	DefaultThreshold    = 55
	DefaultTopK         = 20
	DefaultHistoryTurns = 2
)

// NoThreshold disables the similarity cut-off. A zero Threshold selects
// the default instead.
const NoThreshold = -1

// Turn is one prior question/answer exchange.
type Turn struct {
	Question string
	Answer   string
}

// Query describes one retrieval request.
type Query struct {
	Question string
	Stage    string // empty matches all stages
	Era      string // empty or "none" disables the era filter
	History  []Turn

	MaxWords  int
	Threshold float64 // 0-100 scale; NoThreshold keeps every candidate
	TopK      int
}

// Options tunes a Retriever.
type Options struct {
	CurrentWeight float64
	HistoryTurns  int
	// MaxWords, Threshold and TopK fill in Query fields left at zero.
	MaxWords  int
	Threshold float64
	TopK      int
	// IndexCacheSize bounds the number of per-filter indexes kept.
	IndexCacheSize int
	Normalizer     textnorm.Normalizer
	Logger         *slog.Logger
}

// Retriever answers Query against a read-only content corpus.
type Retriever struct {
	content  *corpus.Content
	embedder embedding.Embedder
	opts     Options
	indexes  *cache.LRU[string, *filtered]
	logger   *slog.Logger
}

type filtered struct {
	items []corpus.ContentItem
	index *vecindex.Flat
}

// New creates a Retriever.
func New(content *corpus.Content, embedder embedding.Embedder, opts Options) *Retriever {
	if opts.CurrentWeight == 0 {
		opts.CurrentWeight = DefaultCurrentWeight
	}
	if opts.HistoryTurns == 0 {
		opts.HistoryTurns = DefaultHistoryTurns
	}
	if opts.MaxWords <= 0 {
		opts.MaxWords = DefaultMaxWords
	}
	if opts.Threshold == 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.IndexCacheSize <= 0 {
		opts.IndexCacheSize = 64
	}
	if opts.Normalizer == nil {
		opts.Normalizer = textnorm.Identity
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		content:  content,
		embedder: embedder,
		opts:     opts,
		indexes:  cache.NewLRU[string, *filtered](opts.IndexCacheSize),
		logger:   logger,
	}
}

// IsNoneEra reports whether era is the sentinel that disables era filtering.
func IsNoneEra(era string) bool {
	return era == "" || strings.EqualFold(era, "none")
}

// Retrieve returns passages relevant to q in descending similarity, with
// a combined word count of at most q.MaxWords. No match is an empty
// result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, q Query) ([]string, error) {
	if q.MaxWords <= 0 {
		q.MaxWords = r.opts.MaxWords
	}
	if q.Threshold == 0 {
		q.Threshold = r.opts.Threshold
	}
	if q.TopK <= 0 {
		q.TopK = r.opts.TopK
	}

	f, err := r.filter(q.Stage, q.Era)
	if err != nil {
		return nil, err
	}
	if f == nil {
		r.logger.Debug("no content for filter", "stage", q.Stage, "era", q.Era)
		return nil, nil
	}

	qv, err := r.embedder.Embed(ctx, r.opts.Normalizer.Normalize(q.Question))
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	recent := q.History
	if len(recent) > r.opts.HistoryTurns {
		recent = recent[len(recent)-r.opts.HistoryTurns:]
	}
	hist := make([][]float32, 0, len(recent))
	for _, t := range recent {
		v, err := r.embedder.Embed(ctx, t.Question+" "+t.Answer)
		if err != nil {
			return nil, fmt.Errorf("embed history: %w", err)
		}
		hist = append(hist, v)
	}

	combined := vecindex.Normalize(Compose(qv, hist, r.opts.CurrentWeight))

	idx, scores, err := f.index.Search(combined, q.TopK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var (
		out   []string
		total int
	)
	for i, row := range idx {
		if q.Threshold > 0 && float64(scores[i])*100 < q.Threshold {
			continue
		}
		words := strings.Fields(f.items[row].Content)
		if len(words) == 0 {
			continue
		}
		remaining := q.MaxWords - total
		if len(words) <= remaining {
			out = append(out, f.items[row].Content)
			total += len(words)
			if total == q.MaxWords {
				break
			}
			continue
		}
		truncated := strings.Join(words[:remaining], " ")
		if !strings.HasSuffix(truncated, ".") {
			truncated += "."
		}
		out = append(out, truncated)
		break
	}

	r.logger.Debug("retrieved context", "stage", q.Stage, "candidates", len(idx), "kept", len(out), "words", min(total, q.MaxWords))
	return out, nil
}

// filter returns the corpus subset for stage and era with its index, or
// nil when the subset is empty.
func (r *Retriever) filter(stage, era string) (*filtered, error) {
	key := stage + "\x00" + era
	if f, ok := r.indexes.Get(key); ok {
		return f, nil
	}

	var items []corpus.ContentItem
	if stage == "" {
		items = r.allWithContent()
	} else {
		items = r.content.ByStage(stage)
	}
	if len(items) > 0 && !IsNoneEra(era) {
		kept := items[:0:0]
		for _, it := range items {
			if it.HistoricalEra == era {
				kept = append(kept, it)
			}
		}
		items = kept
	}

	var f *filtered
	if len(items) > 0 {
		rows := make([][]float32, len(items))
		for i, it := range items {
			if len(it.Embedding) == 0 {
				return nil, fmt.Errorf("content item %q has no embedding", it.Topic)
			}
			rows[i] = it.Embedding
		}
		index, err := vecindex.Build(rows)
		if err != nil {
			return nil, fmt.Errorf("build index: %w", err)
		}
		f = &filtered{items: items, index: index}
	}
	r.indexes.Add(key, f)
	return f, nil
}

func (r *Retriever) allWithContent() []corpus.ContentItem {
	var out []corpus.ContentItem
	for _, it := range r.content.Items {
		if strings.TrimSpace(it.Content) != "" {
			out = append(out, it)
		}
	}
	return out
}
