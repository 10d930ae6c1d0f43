package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"
)

// CurrentVersion is the corpus format version written by Write.
const CurrentVersion = "v1.0.0"

// Manifest describes a corpus file written in envelope form.
type Manifest struct {
	Version        string `json:"version"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
}

// checkVersion accepts any v1 release, with or without the "v" prefix.
func (m *Manifest) checkVersion() error {
	if m.Version == "" {
		m.Version = CurrentVersion
		return nil
	}
	v := m.Version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("invalid corpus version %q", m.Version)
	}
	if semver.Major(v) != semver.Major(CurrentVersion) {
		return fmt.Errorf("unsupported corpus version %s (want %s.x)", v, semver.Major(CurrentVersion))
	}
	m.Version = v
	return nil
}

type envelope struct {
	Manifest
	Items []json.RawMessage `json:"items"`
}

// LoadContent reads a content corpus from path.
func LoadContent(path string) (*Content, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open content corpus: %w", err)
	}
	defer f.Close()

	m, items, err := decode[ContentItem](f, isJSONL(path), contentSchema)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return &Content{Manifest: m, Items: items}, nil
}

// LoadEvents reads an events corpus from path.
func LoadEvents(path string) (*Events, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events corpus: %w", err)
	}
	defer f.Close()

	m, items, err := decode[EventItem](f, isJSONL(path), eventSchema)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	e := &Events{Manifest: m, Items: items}
	e.index()
	return e, nil
}

// LoadPersonalities reads a personality corpus from path.
func LoadPersonalities(path string) (*Personalities, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open personality corpus: %w", err)
	}
	defer f.Close()

	p, err := ReadPersonalities(f, isJSONL(path))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return p, nil
}

// ReadPersonalities decodes a personality corpus from r.
func ReadPersonalities(r io.Reader, jsonl bool) (*Personalities, error) {
	m, items, err := decode[PersonalityItem](r, jsonl, personalitySchema)
	if err != nil {
		return nil, err
	}
	p := &Personalities{Manifest: m, Items: items}
	p.index()
	return p, nil
}

// ReadContent decodes a content corpus from r. JSON input may be a bare
// array or an envelope object; jsonl is one record per line.
func ReadContent(r io.Reader, jsonl bool) (*Content, error) {
	m, items, err := decode[ContentItem](r, jsonl, contentSchema)
	if err != nil {
		return nil, err
	}
	return &Content{Manifest: m, Items: items}, nil
}

// ReadEvents decodes an events corpus from r.
func ReadEvents(r io.Reader, jsonl bool) (*Events, error) {
	m, items, err := decode[EventItem](r, jsonl, eventSchema)
	if err != nil {
		return nil, err
	}
	e := &Events{Manifest: m, Items: items}
	e.index()
	return e, nil
}

// WriteContent writes c in envelope form.
func WriteContent(w io.Writer, c *Content) error {
	return write(w, c.Manifest, c.Items)
}

// WriteEvents writes e in envelope form.
func WriteEvents(w io.Writer, e *Events) error {
	return write(w, e.Manifest, e.Items)
}

// WritePersonalities writes p in envelope form.
func WritePersonalities(w io.Writer, p *Personalities) error {
	return write(w, p.Manifest, p.Items)
}

func write[T any](w io.Writer, m Manifest, items []T) error {
	if m.Version == "" {
		m.Version = CurrentVersion
	}
	out := struct {
		Manifest
		Items []T `json:"items"`
	}{m, items}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

func isJSONL(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".jsonl" || ext == ".ndjson"
}

func decode[T any](r io.Reader, jsonl bool, schema string) (Manifest, []T, error) {
	var (
		m   Manifest
		raw []json.RawMessage
	)

	if jsonl {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 {
				continue
			}
			raw = append(raw, json.RawMessage(bytes.Clone(line)))
		}
		if err := sc.Err(); err != nil {
			return m, nil, fmt.Errorf("read jsonl: %w", err)
		}
	} else {
		data, err := io.ReadAll(r)
		if err != nil {
			return m, nil, fmt.Errorf("read json: %w", err)
		}
		data = bytes.TrimSpace(data)
		switch {
		case len(data) == 0:
		case data[0] == '[':
			if err := json.Unmarshal(data, &raw); err != nil {
				return m, nil, fmt.Errorf("decode array: %w", err)
			}
		case data[0] == '{':
			var env envelope
			if err := json.Unmarshal(data, &env); err != nil {
				return m, nil, fmt.Errorf("decode envelope: %w", err)
			}
			m, raw = env.Manifest, env.Items
		default:
			return m, nil, fmt.Errorf("unexpected leading byte %q", data[0])
		}
	}

	if err := m.checkVersion(); err != nil {
		return m, nil, err
	}

	items := make([]T, 0, len(raw))
	for i, rec := range raw {
		if err := validateRecord(schema, rec); err != nil {
			return m, nil, fmt.Errorf("item %d: %w", i, err)
		}
		var it T
		if err := json.Unmarshal(rec, &it); err != nil {
			return m, nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, it)
	}
	return m, items, nil
}
