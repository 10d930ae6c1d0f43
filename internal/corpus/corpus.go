// Package corpus holds the read-only curriculum content and historical
// events collections, loaded once at startup and shared by reference.
package corpus

import (
	"context"
	"fmt"
	"strings"

	"github.com/abhisek/dalil/internal/embedding"
)

// ContentItem is one curriculum passage.
type ContentItem struct {
	Content          string    `json:"content"`
	Topic            string    `json:"topic,omitempty"`
	EducationalStage string    `json:"educational_stage"`
	HistoricalEra    string    `json:"historical_era,omitempty"`
	Level            int       `json:"level,omitempty"`
	Embedding        []float32 `json:"embedding,omitempty"`
}

// EventItem is one dated historical event. Date is "Y", "Y/M", "Y/M/D" or
// an interval "start-end" of those forms.
type EventItem struct {
	ID               int       `json:"id"`
	Date             string    `json:"date"`
	Content          string    `json:"content"`
	EducationalStage string    `json:"educational_stage"`
	Embedding        []float32 `json:"embedding,omitempty"`
}

// PersonalityItem is one historical figure and the description a learner
// matches to them.
type PersonalityItem struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	Content          string `json:"content"`
	ImageLink        string `json:"image_link,omitempty"`
	EducationalStage string `json:"educational_stage"`
}

// Topic is a selectable lesson title within a stage.
type Topic struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Content is the curriculum collection.
type Content struct {
	Manifest Manifest
	Items    []ContentItem
}

// Events is the historical events collection.
type Events struct {
	Manifest Manifest
	Items    []EventItem

	byID map[int]int
}

// Personalities is the historical figures collection.
type Personalities struct {
	Manifest Manifest
	Items    []PersonalityItem

	byID map[int]int
}

// NewContent wraps items in a collection.
func NewContent(items []ContentItem) *Content {
	return &Content{Manifest: Manifest{Version: CurrentVersion}, Items: items}
}

// NewEvents wraps items in a collection. Items with a zero ID are numbered
// by position starting at 1.
func NewEvents(items []EventItem) *Events {
	e := &Events{Manifest: Manifest{Version: CurrentVersion}, Items: items}
	e.index()
	return e
}

func (e *Events) index() {
	e.byID = make(map[int]int, len(e.Items))
	for i := range e.Items {
		if e.Items[i].ID == 0 {
			e.Items[i].ID = i + 1
		}
		e.byID[e.Items[i].ID] = i
	}
}

// NewPersonalities wraps items in a collection. Items with a zero ID are
// numbered by position starting at 1.
func NewPersonalities(items []PersonalityItem) *Personalities {
	p := &Personalities{Manifest: Manifest{Version: CurrentVersion}, Items: items}
	p.index()
	return p
}

func (p *Personalities) index() {
	p.byID = make(map[int]int, len(p.Items))
	for i := range p.Items {
		if p.Items[i].ID == 0 {
			p.Items[i].ID = i + 1
		}
		p.byID[p.Items[i].ID] = i
	}
}

// Len returns the number of items.
func (p *Personalities) Len() int { return len(p.Items) }

// Get returns the item with id.
func (p *Personalities) Get(id int) (PersonalityItem, bool) {
	if p.byID == nil {
		p.index()
	}
	i, ok := p.byID[id]
	if !ok {
		return PersonalityItem{}, false
	}
	return p.Items[i], true
}

// ByStage returns the personalities of stage in corpus order.
func (p *Personalities) ByStage(stage string) []PersonalityItem {
	var out []PersonalityItem
	for _, it := range p.Items {
		if it.EducationalStage == stage {
			out = append(out, it)
		}
	}
	return out
}

// Len returns the number of items.
func (c *Content) Len() int { return len(c.Items) }

// ByStage returns items of stage with non-empty content.
func (c *Content) ByStage(stage string) []ContentItem {
	return c.filter(func(it *ContentItem) bool {
		return it.EducationalStage == stage
	})
}

// ByStageLevel returns items of stage at level with non-empty content.
func (c *Content) ByStageLevel(stage string, level int) []ContentItem {
	return c.filter(func(it *ContentItem) bool {
		return it.EducationalStage == stage && it.Level == level
	})
}

// ByStageEra returns items of stage in era with non-empty content.
func (c *Content) ByStageEra(stage, era string) []ContentItem {
	return c.filter(func(it *ContentItem) bool {
		return it.EducationalStage == stage && it.HistoricalEra == era
	})
}

func (c *Content) filter(keep func(*ContentItem) bool) []ContentItem {
	var out []ContentItem
	for i := range c.Items {
		it := &c.Items[i]
		if strings.TrimSpace(it.Content) == "" {
			continue
		}
		if keep(it) {
			out = append(out, *it)
		}
	}
	return out
}

// FindTopic returns the first item of stage whose topic matches.
func (c *Content) FindTopic(stage, topic string) (ContentItem, bool) {
	for _, it := range c.Items {
		if it.EducationalStage == stage && strings.TrimSpace(it.Topic) == topic {
			return it, true
		}
	}
	return ContentItem{}, false
}

// Topics lists the distinct non-empty topics of stage in corpus order,
// numbered from 1.
func (c *Content) Topics(stage string) []Topic {
	seen := make(map[string]bool)
	var out []Topic
	for _, it := range c.Items {
		if it.EducationalStage != stage {
			continue
		}
		title := strings.TrimSpace(it.Topic)
		if title == "" || strings.EqualFold(title, "nan") || seen[title] {
			continue
		}
		seen[title] = true
		out = append(out, Topic{ID: fmt.Sprint(len(out) + 1), Title: title})
	}
	return out
}

// Stages lists the distinct stages in corpus order.
func (c *Content) Stages() []string {
	seen := make(map[string]bool)
	var out []string
	for _, it := range c.Items {
		if !seen[it.EducationalStage] {
			seen[it.EducationalStage] = true
			out = append(out, it.EducationalStage)
		}
	}
	return out
}

// EnsureEmbeddings fills in missing vectors with e. When the manifest
// names a different model every vector is recomputed.
func (c *Content) EnsureEmbeddings(ctx context.Context, e embedding.Embedder) (int, error) {
	stale := c.Manifest.EmbeddingModel != "" && c.Manifest.EmbeddingModel != e.Model()
	n, err := fill(ctx, e, len(c.Items), stale,
		func(i int) []float32 { return c.Items[i].Embedding },
		func(i int) string { return c.Items[i].Content },
		func(i int, v []float32) { c.Items[i].Embedding = v })
	if err != nil {
		return n, err
	}
	c.Manifest.EmbeddingModel = e.Model()
	return n, nil
}

// Len returns the number of items.
func (e *Events) Len() int { return len(e.Items) }

// Get returns the item with id.
func (e *Events) Get(id int) (EventItem, bool) {
	if e.byID == nil {
		e.index()
	}
	i, ok := e.byID[id]
	if !ok {
		return EventItem{}, false
	}
	return e.Items[i], true
}

// ByStage returns the events of stage in corpus order.
func (e *Events) ByStage(stage string) []EventItem {
	var out []EventItem
	for _, it := range e.Items {
		if it.EducationalStage == stage {
			out = append(out, it)
		}
	}
	return out
}

// EnsureEmbeddings fills in missing event vectors with emb.
func (e *Events) EnsureEmbeddings(ctx context.Context, emb embedding.Embedder) (int, error) {
	stale := e.Manifest.EmbeddingModel != "" && e.Manifest.EmbeddingModel != emb.Model()
	n, err := fill(ctx, emb, len(e.Items), stale,
		func(i int) []float32 { return e.Items[i].Embedding },
		func(i int) string { return e.Items[i].Content },
		func(i int, v []float32) { e.Items[i].Embedding = v })
	if err != nil {
		return n, err
	}
	e.Manifest.EmbeddingModel = emb.Model()
	return n, nil
}

func fill(ctx context.Context, e embedding.Embedder, n int, all bool,
	get func(int) []float32, text func(int) string, set func(int, []float32)) (int, error) {
	computed := 0
	dim := 0
	for i := 0; i < n; i++ {
		v := get(i)
		if all || len(v) == 0 {
			var err error
			v, err = e.Embed(ctx, text(i))
			if err != nil {
				return computed, fmt.Errorf("embed item %d: %w", i, err)
			}
			set(i, v)
			computed++
		}
		if dim == 0 {
			dim = len(v)
		} else if len(v) != dim {
			return computed, fmt.Errorf("item %d: embedding dimension %d, expected %d", i, len(v), dim)
		}
	}
	return computed, nil
}
