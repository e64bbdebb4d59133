// Package models defines the domain types for Cogninote.
package models

import (
	"fmt"
	"strings"

	"github.com/starford/cogninote/internal/apperr"
)

// Category is the fixed classification of a note.
type Category string

// Note categories.
const (
	CategoryStudy     Category = "Study"
	CategoryWork      Category = "Work"
	CategoryPersonal  Category = "Personal"
	CategoryIdeas     Category = "Ideas"
	CategoryReference Category = "Reference"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryStudy,
	CategoryWork,
	CategoryPersonal,
	CategoryIdeas,
	CategoryReference,
}

// ParseCategory matches s against the known categories, ignoring case.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("category %q: %w", s, apperr.ErrInvalid)
}

// FactStatus is the verdict attached to a fact-check entry.
type FactStatus string

// Fact-check verdicts.
const (
	FactVerified   FactStatus = "verified"
	FactUncertain  FactStatus = "uncertain"
	FactCorrection FactStatus = "correction"
)

// Cornell holds the cue/notes/summary layout.
type Cornell struct {
	Notes   string   `json:"notes"`
	Cues    []string `json:"cues"`
	Summary string   `json:"summary"`
}

// FactCheck is a single verified, uncertain or corrected statement.
type FactCheck struct {
	Fact   string     `json:"fact"`
	Status FactStatus `json:"status"`
}

// Validation is the fact-check metadata returned with a structured note.
type Validation struct {
	AccuracyScore    float64     `json:"accuracyScore"`
	VerificationNote string      `json:"verificationNote"`
	FactCheckDetails []FactCheck `json:"factCheckDetails"`
	MissingPoints    []string    `json:"missingPoints,omitempty"`
	Inconsistencies  []string    `json:"inconsistencies,omitempty"`
}

// Connection is a directed, title-based reference to another note.
// ID is local to the connection and never equals the target note's ID.
type Connection struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Relation string `json:"relation"`
}

// Note is a single unit of captured and structured knowledge.
type Note struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	RawInput     string       `json:"rawInput"`
	Category     Category     `json:"category"`
	Tags         []string     `json:"tags"`
	Cornell      Cornell      `json:"cornell"`
	Validation   Validation   `json:"validation"`
	Connections  []Connection `json:"connections"`
	MasteryScore int          `json:"masteryScore"`
	LastReviewed Timestamp    `json:"lastReviewed"`
	IsSeed       bool         `json:"isSeed"`
	CreatedAt    Timestamp    `json:"createdAt"`
	UpdatedAt    Timestamp    `json:"updatedAt"`
}

// Clone returns a deep copy of n.
func (n Note) Clone() Note {
	out := n
	out.Tags = cloneSlice(n.Tags)
	out.Cornell.Cues = cloneSlice(n.Cornell.Cues)
	out.Validation.FactCheckDetails = cloneSlice(n.Validation.FactCheckDetails)
	out.Validation.MissingPoints = cloneSlice(n.Validation.MissingPoints)
	out.Validation.Inconsistencies = cloneSlice(n.Validation.Inconsistencies)
	out.Connections = cloneSlice(n.Connections)
	return out
}

// Normalize replaces nil slices with empty ones so the JSON form never
// carries null where the stored format expects an array.
func (n *Note) Normalize() {
	n.Tags = NonNil(n.Tags)
	n.Cornell.Cues = NonNil(n.Cornell.Cues)
	n.Validation.FactCheckDetails = NonNil(n.Validation.FactCheckDetails)
	n.Connections = NonNil(n.Connections)
}

// CloneAll deep-copies a collection.
func CloneAll(notes []Note) []Note {
	out := make([]Note, len(notes))
	for i, n := range notes {
		out[i] = n.Clone()
	}
	return out
}

// NonNil returns s, or an empty slice when s is nil.
func NonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
