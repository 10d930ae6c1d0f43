package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abhisek/dalil/internal/corpus"
	"github.com/abhisek/dalil/internal/embedding"
	"github.com/abhisek/dalil/internal/vecindex"
)

// DefaultMatchThreshold is the cosine an event answer must exceed.
const DefaultMatchThreshold = 0.82

var (
	// ErrMalformedAnswer means the submitted event text could not be compared.
	ErrMalformedAnswer = errors.New("malformed event answer")

	// ErrMissingEmbedding means the corpus row has no usable embedding.
	ErrMissingEmbedding = errors.New("event has no embedding")
)

// Validator grades free-text event answers by semantic similarity.
type Validator struct {
	embedder  embedding.Embedder
	threshold float64
	logger    *slog.Logger
}

// NewValidator creates a Validator. A non-positive threshold uses
// DefaultMatchThreshold.
func NewValidator(embedder embedding.Embedder, threshold float64, logger *slog.Logger) *Validator {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{embedder: embedder, threshold: threshold, logger: logger}
}

// ValidateEvent reports whether answer describes item. Any failure to
// compare counts as a wrong answer.
func (v *Validator) ValidateEvent(ctx context.Context, answer string, item corpus.EventItem) bool {
	ok, err := v.ValidateEventDetailed(ctx, answer, item)
	if err != nil {
		v.logger.Warn("event answer not comparable", "event_id", item.ID, "error", err)
		return false
	}
	return ok
}

// ValidateEventDetailed is ValidateEvent with the failure kept apart from
// a wrong answer.
func (v *Validator) ValidateEventDetailed(ctx context.Context, answer string, item corpus.EventItem) (bool, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return false, ErrMalformedAnswer
	}
	if vecindex.Norm(item.Embedding) == 0 {
		return false, ErrMissingEmbedding
	}

	vec, err := v.embedder.Embed(ctx, answer)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrMalformedAnswer, err)
	}
	if len(vec) != len(item.Embedding) {
		return false, fmt.Errorf("%w: dimension %d, event has %d", ErrMalformedAnswer, len(vec), len(item.Embedding))
	}

	sim := vecindex.Cosine(vec, item.Embedding)
	v.logger.Debug("event answer similarity", "event_id", item.ID, "similarity", sim)
	return sim > v.threshold, nil
}
