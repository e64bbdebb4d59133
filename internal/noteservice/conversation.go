package noteservice

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/starford/cogninote/internal/apperr"
	"github.com/starford/cogninote/internal/models"
)

// Message roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one turn of a follow-up conversation.
type Message struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// conversations keeps per-note history for the life of the process only.
type conversations struct {
	mu     sync.Mutex
	byNote map[string][]Message
}

func newConversations() *conversations {
	return &conversations{byNote: make(map[string][]Message)}
}

func (c *conversations) append(id string, msgs ...Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byNote[id] = append(c.byNote[id], msgs...)
}

func (c *conversations) get(id string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.byNote[id])
}

func (c *conversations) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byNote, id)
}

// NoteContext is the note excerpt sent with a follow-up question.
func NoteContext(n models.Note) string {
	return fmt.Sprintf("Title: %s\nNotes: %s", n.Title, n.Cornell.Notes)
}

// Ask sends a follow-up question about note id. The exchange is appended
// to the note's history only when the knowledge service answers.
func (s *Service) Ask(ctx context.Context, id, prompt string) (Message, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Message{}, fmt.Errorf("noteservice: ask: empty prompt: %w", apperr.ErrInvalid)
	}
	n, err := s.repo.Get(id)
	if err != nil {
		return Message{}, err
	}

	asked := time.Now()
	reply, err := s.know.Converse(ctx, prompt, NoteContext(n))
	if err != nil {
		if !errors.Is(err, apperr.ErrService) && !errors.Is(err, apperr.ErrMalformed) {
			err = fmt.Errorf("%w: %v", apperr.ErrService, err)
		}
		return Message{}, fmt.Errorf("noteservice: ask %s: %w", id, err)
	}

	answer := Message{Role: RoleModel, Text: reply, At: time.Now()}
	s.chats.append(id, Message{Role: RoleUser, Text: prompt, At: asked}, answer)
	return answer, nil
}

// History returns the conversation about note id, oldest first.
func (s *Service) History(id string) ([]Message, error) {
	if _, err := s.repo.Get(id); err != nil {
		return nil, err
	}
	return models.NonNil(s.chats.get(id)), nil
}
