// Package noteservice coordinates the note repository, the knowledge
// service and change notification. Every user-facing surface (REST, MCP,
// the capture inbox) goes through it.
package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/cogninote/internal/graph"
	"github.com/starford/cogninote/internal/knowledge"
	"github.com/starford/cogninote/internal/mastery"
	"github.com/starford/cogninote/internal/models"
	"github.com/starford/cogninote/internal/repository"
	"github.com/starford/cogninote/internal/search"
)

// Event kinds passed to the Notifier.
const (
	EventNoteCreated      = "note.created"
	EventNoteUpdated      = "note.updated"
	EventNoteDeleted      = "note.deleted"
	EventNoteReviewed     = "note.reviewed"
	EventCapturePending   = "capture.pending"
	EventCaptureCommitted = "capture.committed"
	EventCaptureFailed    = "capture.failed"
	EventKeywords         = "keywords.suggested"
)

// Notifier receives change events.
type Notifier interface {
	Notify(kind string, data any)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, any) {}

// Config tunes the service.
type Config struct {
	// ContextTitles is how many recent titles accompany a structuring call.
	ContextTitles  int
	Debounce       time.Duration
	MinQueryLength int
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		ContextTitles:  15,
		Debounce:       600 * time.Millisecond,
		MinQueryLength: 3,
	}
}

// Stats is the dashboard summary.
type Stats struct {
	Notes            int `json:"notes"`
	Vitality         int `json:"vitality"`
	TotalConnections int `json:"total_connections"`
}

// KeywordEvent is the payload of keywords.suggested.
type KeywordEvent struct {
	Session string `json:"session"`
	search.Suggestion
}

// EventSession scopes the event to the client session that asked for it.
func (e KeywordEvent) EventSession() string { return e.Session }

// Service coordinates repository and knowledge operations.
type Service struct {
	repo     *repository.Repository
	know     knowledge.Service
	cfg      Config
	notifier Notifier
	logger   *slog.Logger

	captures *CaptureTracker
	chats    *conversations
	keywords *search.Hub
}

// NewService creates a new note service. notifier may be nil.
func NewService(repo *repository.Repository, know knowledge.Service, cfg Config, notifier Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:     repo,
		know:     know,
		cfg:      cfg,
		notifier: notifier,
		logger:   logger,
		captures: NewCaptureTracker(time.Now),
		chats:    newConversations(),
	}
	s.keywords = search.NewHub(cfg.Debounce, cfg.MinQueryLength, know.SuggestKeywords,
		func(session string, sg search.Suggestion) {
			s.notifier.Notify(EventKeywords, KeywordEvent{Session: session, Suggestion: sg})
		})
	return s
}

// Close stops pending keyword expansions.
func (s *Service) Close() {
	s.keywords.Close()
}

// List returns the notes matching query and category, newest first.
func (s *Service) List(query string, category *models.Category) []models.Note {
	return search.Filter(s.repo.All(), query, category)
}

// Get returns one note.
func (s *Service) Get(id string) (models.Note, error) {
	return s.repo.Get(id)
}

// Update applies a partial change.
func (s *Service) Update(ctx context.Context, id string, p repository.Patch) (models.Note, error) {
	n, err := s.repo.Update(ctx, id, p)
	if err != nil {
		return models.Note{}, err
	}
	s.notifier.Notify(EventNoteUpdated, noteRef(n))
	return n, nil
}

// Delete removes a note and its conversation.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.chats.forget(id)
	s.notifier.Notify(EventNoteDeleted, map[string]string{"id": id})
	return nil
}

// Review applies an arbitrary mastery delta.
func (s *Service) Review(ctx context.Context, id string, delta int) (models.Note, error) {
	n, err := s.repo.Update(ctx, id, repository.Patch{MasteryDelta: &delta})
	if err != nil {
		return models.Note{}, err
	}
	s.notifier.Notify(EventNoteReviewed, map[string]any{
		"id":           n.ID,
		"delta":        delta,
		"masteryScore": n.MasteryScore,
	})
	return n, nil
}

// ReviewOutcome records a review session self-assessment.
func (s *Service) ReviewOutcome(ctx context.Context, id string, o mastery.Outcome) (models.Note, error) {
	delta, err := o.Delta()
	if err != nil {
		return models.Note{}, fmt.Errorf("noteservice: review: %w", err)
	}
	return s.Review(ctx, id, delta)
}

// Graph returns the knowledge map projection.
func (s *Service) Graph() graph.Projection {
	return graph.Project(s.repo.All())
}

// Stats summarizes the collection.
func (s *Service) Stats() Stats {
	notes := s.repo.All()
	return Stats{
		Notes:            len(notes),
		Vitality:         mastery.Vitality(notes),
		TotalConnections: graph.Project(notes).TotalConnections,
	}
}

func noteRef(n models.Note) map[string]string {
	return map[string]string{"id": n.ID, "title": n.Title}
}
