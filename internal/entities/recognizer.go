// Package entities is the entity-recognition boundary of the pipeline.
package entities

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jdkato/prose/v2"
)

// Span is one recognised entity: a text span and its label.
type Span struct {
	Text  string
	Label string
}

// Recognizer extracts typed spans from plain text. Implementations must be
// safe for concurrent use by independent workers.
type Recognizer interface {
	Recognize(text string) ([]Span, error)
}

const modelCacheSize = 4

var (
	modelCacheOnce sync.Once
	modelCache     *lru.Cache[string, Recognizer]
)

// Load returns a recognizer for the named model plus its identity string
// (recorded in the run report). Loaded models are shared through a small
// LRU cache so repeated loads within one process are free.
func Load(name string) (Recognizer, string, error) {
	modelCacheOnce.Do(func() {
		modelCache, _ = lru.New[string, Recognizer](modelCacheSize)
	})

	if rec, ok := modelCache.Get(name); ok {
		return rec, identity(name), nil
	}

	rec, err := newProseRecognizer(name)
	if err != nil {
		return nil, "", err
	}
	modelCache.Add(name, rec)
	return rec, identity(name), nil
}

func identity(name string) string {
	return fmt.Sprintf("prose/v2 %s", name)
}

// proseRecognizer backs the Recognizer interface with prose's statistical
// NER. prose ships a single built-in English model; the name is kept for
// the run report and for forward compatibility with external models.
type proseRecognizer struct {
	name string
}

func newProseRecognizer(name string) (Recognizer, error) {
	if name == "" {
		return nil, fmt.Errorf("recognizer model name is empty")
	}
	return &proseRecognizer{name: name}, nil
}

func (r *proseRecognizer) Recognize(text string) ([]Span, error) {
	if text == "" {
		return nil, nil
	}
	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}
	ents := doc.Entities()
	spans := make([]Span, 0, len(ents))
	for _, ent := range ents {
		spans = append(spans, Span{Text: ent.Text, Label: ent.Label})
	}
	return spans, nil
}

// Truncate caps text at max runes before recognition. Zero or negative max
// means no cap.
func Truncate(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
