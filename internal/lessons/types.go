package lessons

import "time"

// Lesson is the markdown rendition of one topic's curriculum content.
type Lesson struct {
	Stage   string `json:"educational_stage"`
	Topic   string `json:"title"`
	Content string `json:"content"`

	// Enhanced is false when generation failed and Content is the raw
	// corpus text.
	Enhanced bool `json:"enhanced"`
	Cached   bool `json:"cached"`
}

// cacheEntry is the persisted form of an enhanced lesson.
type cacheEntry struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
