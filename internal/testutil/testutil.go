// Package testutil provides shared test helpers: an in-memory repository,
// a programmable knowledge service and an event recorder.
package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/starford/cogninote/internal/apperr"
	"github.com/starford/cogninote/internal/knowledge"
	"github.com/starford/cogninote/internal/models"
	"github.com/starford/cogninote/internal/repository"
	"github.com/starford/cogninote/internal/storage"
)

// Repo creates a repository over a memory store preloaded with notes.
func Repo(t *testing.T, notes ...models.Note) (*repository.Repository, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	if len(notes) > 0 {
		if err := mem.Save(context.Background(), notes); err != nil {
			t.Fatal(err)
		}
	}
	repo, err := repository.New(context.Background(), mem)
	if err != nil {
		t.Fatal(err)
	}
	return repo, mem
}

// Structured returns a valid structuring result titled title.
func Structured(title string, connections ...string) *knowledge.Structured {
	s := &knowledge.Structured{
		Title:    title,
		Category: models.CategoryStudy,
		Tags:     []string{"test"},
		Cornell: models.Cornell{
			Notes:   "Notes about " + title,
			Cues:    []string{"What is " + title + "?"},
			Summary: title + " in brief.",
		},
		Validation: models.Validation{
			AccuracyScore:    90,
			VerificationNote: "ok",
			FactCheckDetails: []models.FactCheck{{Fact: title + " exists", Status: models.FactVerified}},
		},
		Connections: []models.Connection{},
	}
	for _, c := range connections {
		s.Connections = append(s.Connections, models.Connection{Title: c, Relation: "related"})
	}
	return s
}

// StructureCall records one Structure invocation.
type StructureCall struct {
	Input  string
	Titles []string
	Seed   bool
}

// Knowledge is a fake knowledge.Service. Zero value structures every input
// into a note titled after it.
type Knowledge struct {
	mu sync.Mutex

	StructureFn func(ctx context.Context, input string, titles []string, seed bool) (*knowledge.Structured, error)
	Reply       string
	ConverseErr error
	Keywords    map[string][]string

	structureCalls []StructureCall
	keywordCalls   []string
}

// Structure implements knowledge.Service.
func (k *Knowledge) Structure(ctx context.Context, input string, titles []string, seed bool) (*knowledge.Structured, error) {
	k.mu.Lock()
	k.structureCalls = append(k.structureCalls, StructureCall{Input: input, Titles: slices.Clone(titles), Seed: seed})
	fn := k.StructureFn
	k.mu.Unlock()
	if fn != nil {
		return fn(ctx, input, titles, seed)
	}
	return Structured(input), nil
}

// Converse implements knowledge.Service.
func (k *Knowledge) Converse(_ context.Context, prompt, noteContext string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.ConverseErr != nil {
		return "", k.ConverseErr
	}
	if k.Reply != "" {
		return k.Reply, nil
	}
	return fmt.Sprintf("answer to %q", prompt), nil
}

// SuggestKeywords implements knowledge.Service.
func (k *Knowledge) SuggestKeywords(_ context.Context, query string) []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keywordCalls = append(k.keywordCalls, query)
	if kws, ok := k.Keywords[query]; ok {
		return slices.Clone(kws)
	}
	return []string{}
}

// StructureCalls returns the recorded Structure invocations.
func (k *Knowledge) StructureCalls() []StructureCall {
	k.mu.Lock()
	defer k.mu.Unlock()
	return slices.Clone(k.structureCalls)
}

// KeywordCalls returns the queries passed to SuggestKeywords.
func (k *Knowledge) KeywordCalls() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return slices.Clone(k.keywordCalls)
}

// FailStructure makes every Structure call fail with a service error.
func (k *Knowledge) FailStructure() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.StructureFn = func(context.Context, string, []string, bool) (*knowledge.Structured, error) {
		return nil, fmt.Errorf("fake: %w", apperr.ErrService)
	}
}

// Event is one recorded notification.
type Event struct {
	Kind string
	Data any
}

// Events records notifications.
type Events struct {
	mu   sync.Mutex
	list []Event
}

// Notify implements noteservice.Notifier.
func (e *Events) Notify(kind string, data any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.list = append(e.list, Event{Kind: kind, Data: data})
}

// Kinds returns the recorded kinds in order.
func (e *Events) Kinds() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.list))
	for i, ev := range e.list {
		out[i] = ev.Kind
	}
	return out
}

// Last returns the most recent event of kind.
func (e *Events) Last(kind string) (Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.list) - 1; i >= 0; i-- {
		if e.list[i].Kind == kind {
			return e.list[i], true
		}
	}
	return Event{}, false
}
