// Package search derives filtered views of the note collection and
// debounces keyword expansion requests.
package search

import (
	"strings"

	"github.com/starford/cogninote/internal/models"
)

// Filter returns the notes matching query and category, in input order.
//
// A note matches query when it is a case-insensitive substring of the
// title, any tag, or the summary; an empty query matches everything. A nil
// category matches every note.
func Filter(notes []models.Note, query string, category *models.Category) []models.Note {
	q := strings.ToLower(query)
	out := make([]models.Note, 0, len(notes))
	for _, n := range notes {
		if category != nil && n.Category != *category {
			continue
		}
		if !Matches(n, q) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Matches reports whether n matches the already lower-cased query.
func Matches(n models.Note, lowerQuery string) bool {
	if lowerQuery == "" {
		return true
	}
	if strings.Contains(strings.ToLower(n.Title), lowerQuery) {
		return true
	}
	for _, tag := range n.Tags {
		if strings.Contains(strings.ToLower(tag), lowerQuery) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(n.Cornell.Summary), lowerQuery)
}
