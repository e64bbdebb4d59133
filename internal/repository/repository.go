// Package repository owns the in-memory note collection and persists it
// in full through a storage.Provider after every mutation.
package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/cogninote/internal/apperr"
	"github.com/starford/cogninote/internal/mastery"
	"github.com/starford/cogninote/internal/models"
	"github.com/starford/cogninote/internal/storage"
)

// Draft is the content of a note about to be created.
type Draft struct {
	Title       string
	RawInput    string
	Category    models.Category
	Tags        []string
	Cornell     models.Cornell
	Validation  models.Validation
	Connections []models.Connection // IDs are reassigned on create
	IsSeed      bool
}

// Patch is a partial change. Nil fields are left untouched; Tags and
// Connections replace the whole list when non-nil.
type Patch struct {
	Title        *string
	Category     *models.Category
	Tags         []string
	Cornell      *models.Cornell
	Validation   *models.Validation
	Connections  []models.Connection
	MasteryDelta *int
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(gen func() string) Option {
	return func(r *Repository) { r.newID = gen }
}

// Repository is the single owner of the note collection. The collection is
// kept newest first.
type Repository struct {
	mu    sync.Mutex
	store storage.Provider
	notes []models.Note
	now   func() time.Time
	newID func() string
}

// New loads the collection from store once and returns the repository.
func New(ctx context.Context, store storage.Provider, opts ...Option) (*Repository, error) {
	r := &Repository{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}

	notes, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: load: %w", err)
	}
	for i := range notes {
		notes[i].MasteryScore = mastery.Clamp(notes[i].MasteryScore)
		notes[i].Normalize()
	}
	r.notes = notes
	return r, nil
}

// Create assigns identifiers and timestamps and prepends the note.
func (r *Repository) Create(ctx context.Context, d Draft) (models.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := models.At(r.now())
	n := models.Note{
		ID:           r.uniqueID(),
		Title:        d.Title,
		RawInput:     d.RawInput,
		Category:     d.Category,
		Tags:         slices.Clone(d.Tags),
		Cornell:      d.Cornell,
		Validation:   d.Validation,
		Connections:  r.assignConnectionIDs(d.Connections),
		MasteryScore: mastery.Initial(d.IsSeed),
		LastReviewed: now,
		IsSeed:       d.IsSeed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	n = n.Clone()
	n.Normalize()

	next := make([]models.Note, 0, len(r.notes)+1)
	next = append(next, n)
	next = append(next, r.notes...)
	if err := r.commit(ctx, next); err != nil {
		return models.Note{}, err
	}
	return n.Clone(), nil
}

// Update applies p to the note with id and refreshes updatedAt.
func (r *Repository) Update(ctx context.Context, id string, p Patch) (models.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return models.Note{}, fmt.Errorf("repository: note %s: %w", id, apperr.ErrNotFound)
	}

	now := r.now()
	n := r.notes[idx].Clone()
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Category != nil {
		n.Category = *p.Category
	}
	if p.Tags != nil {
		n.Tags = slices.Clone(p.Tags)
	}
	if p.Cornell != nil {
		n.Cornell = *p.Cornell
		n.Cornell.Cues = slices.Clone(p.Cornell.Cues)
	}
	if p.Validation != nil {
		n.Validation = *p.Validation
		n.Validation.FactCheckDetails = slices.Clone(p.Validation.FactCheckDetails)
	}
	if p.Connections != nil {
		n.Connections = r.assignConnectionIDs(p.Connections)
	}
	if p.MasteryDelta != nil {
		n = mastery.Adjust(n, *p.MasteryDelta, now)
	}
	n.UpdatedAt = models.At(now)
	n.Normalize()

	next := slices.Clone(r.notes)
	next[idx] = n
	if err := r.commit(ctx, next); err != nil {
		return models.Note{}, err
	}
	return n.Clone(), nil
}

// Delete removes the note with id. Removal is immediate and permanent.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("repository: note %s: %w", id, apperr.ErrNotFound)
	}
	next := slices.Delete(slices.Clone(r.notes), idx, idx+1)
	return r.commit(ctx, next)
}

// Get returns a copy of the note with id.
func (r *Repository) Get(id string) (models.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return models.Note{}, fmt.Errorf("repository: note %s: %w", id, apperr.ErrNotFound)
	}
	return r.notes[idx].Clone(), nil
}

// All returns a copy of the collection, newest first.
func (r *Repository) All() []models.Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.CloneAll(r.notes)
}

// Len returns the number of notes.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes)
}

// Titles returns up to n titles of the most recent notes.
func (r *Repository) Titles(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	n = min(n, len(r.notes))
	out := make([]string, 0, n)
	for _, note := range r.notes[:n] {
		if t := strings.TrimSpace(note.Title); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// commit persists next and swaps it in only when the save succeeded, so the
// in-memory view never runs ahead of the durable one.
func (r *Repository) commit(ctx context.Context, next []models.Note) error {
	if err := r.store.Save(ctx, next); err != nil {
		return fmt.Errorf("repository: persist: %w", err)
	}
	r.notes = next
	return nil
}

func (r *Repository) indexOf(id string) int {
	return slices.IndexFunc(r.notes, func(n models.Note) bool { return n.ID == id })
}

func (r *Repository) uniqueID() string {
	for {
		id := r.newID()
		if id != "" && r.indexOf(id) < 0 {
			return id
		}
	}
}

// assignConnectionIDs gives every connection a fresh local identifier that
// collides with no note id.
func (r *Repository) assignConnectionIDs(in []models.Connection) []models.Connection {
	out := make([]models.Connection, len(in))
	for i, c := range in {
		c.ID = r.uniqueID()
		out[i] = c
	}
	return out
}
