package api

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/cogninote/internal/graph"
	"github.com/starford/cogninote/internal/mastery"
	"github.com/starford/cogninote/internal/models"
	"github.com/starford/cogninote/internal/noteservice"
	"github.com/starford/cogninote/internal/repository"
)

const maxInputLen = 100_000

// CaptureRequest is the request body for capturing a note.
type CaptureRequest struct {
	Input string `json:"input" example:"Neurons that fire together wire together." validate:"required"`
	Seed  bool   `json:"seed"`
}

// Validate implements validation.Validatable.
func (r CaptureRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Input, validation.Required, validation.RuneLength(1, maxInputLen)),
	)
}

// PatchRequest is a partial note update. Absent fields are unchanged.
type PatchRequest struct {
	Title       *string             `json:"title,omitempty"`
	Category    *string             `json:"category,omitempty" example:"Study"`
	Tags        []string            `json:"tags,omitempty"`
	Cornell     *models.Cornell     `json:"cornell,omitempty"`
	Validation  *models.Validation  `json:"validation,omitempty"`
	Connections []models.Connection `json:"connections,omitempty"`
}

// Validate implements validation.Validatable.
func (r PatchRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty),
		validation.Field(&r.Category, validation.NilOrNotEmpty),
	)
}

func (r PatchRequest) patch() (repository.Patch, error) {
	p := repository.Patch{
		Title:       r.Title,
		Tags:        r.Tags,
		Cornell:     r.Cornell,
		Validation:  r.Validation,
		Connections: r.Connections,
	}
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		p.Title = &t
	}
	if r.Category != nil {
		c, err := models.ParseCategory(*r.Category)
		if err != nil {
			return repository.Patch{}, err
		}
		p.Category = &c
	}
	return p, nil
}

// ReviewRequest carries either a raw delta or a named outcome.
type ReviewRequest struct {
	Delta   *int   `json:"delta,omitempty" example:"10"`
	Outcome string `json:"outcome,omitempty" example:"mastered"`
}

// Validate implements validation.Validatable.
func (r ReviewRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Delta, validation.When(r.Outcome == "", validation.NotNil).Else(validation.Nil)),
		validation.Field(&r.Outcome, validation.In(string(mastery.Struggled), string(mastery.Mastered))),
	)
}

// AskRequest is a follow-up question about a note.
type AskRequest struct {
	Prompt string `json:"prompt" example:"Explain this like I'm five" validate:"required"`
}

// Validate implements validation.Validatable.
func (r AskRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Prompt, validation.Required, validation.RuneLength(1, maxInputLen)),
	)
}

// ResolveLinkRequest follows a connection title.
type ResolveLinkRequest struct {
	Title      string `json:"title" example:"Memory Consolidation" validate:"required"`
	CreateSeed bool   `json:"create_seed"`
}

// Validate implements validation.Validatable.
func (r ResolveLinkRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required),
	)
}

// ExpandRequest registers the latest search query of a client session.
type ExpandRequest struct {
	Session string `json:"session" example:"tab-1" validate:"required"`
	Query   string `json:"query" example:"neural"`
}

// Validate implements validation.Validatable.
func (r ExpandRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Session, validation.Required, validation.Length(1, 128)),
	)
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// ConversationResponse wraps a note's follow-up history.
type ConversationResponse struct {
	Messages []noteservice.Message `json:"messages" validate:"required"`
}

// KeywordsResponse wraps keyword suggestions.
type KeywordsResponse struct {
	Query    string   `json:"query"`
	Keywords []string `json:"keywords" validate:"required"`
}

// ExpandResponse acknowledges a debounced expansion request.
type ExpandResponse struct {
	Session string `json:"session"`
	Seq     uint64 `json:"seq"`
}

// GraphResponse is the knowledge map projection.
type GraphResponse = graph.Projection
