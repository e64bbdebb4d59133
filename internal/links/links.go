// Package links resolves title-based connections to notes.
//
// Connections carry a display title, not a note id. Resolution happens when
// a link is followed, by fuzzy title match, so renamed or duplicated titles
// can resolve to a different note or to none.
package links

import (
	"fmt"
	"strings"

	"github.com/starford/cogninote/internal/models"
)

// Resolution is the result of following a link.
type Resolution struct {
	Query string
	Found bool
	Note  models.Note
}

// Resolve returns the first note, in collection order, whose title contains
// titleQuery case-insensitively. A blank query never resolves.
func Resolve(notes []models.Note, titleQuery string) Resolution {
	res := Resolution{Query: titleQuery}
	q := strings.ToLower(strings.TrimSpace(titleQuery))
	if q == "" {
		return res
	}
	for _, n := range notes {
		if strings.Contains(strings.ToLower(n.Title), q) {
			res.Found = true
			res.Note = n
			return res
		}
	}
	return res
}

// SeedPrompt is the capture input used to research an unresolved topic.
func SeedPrompt(title string) string {
	return fmt.Sprintf("I want to learn about: %s", strings.TrimSpace(title))
}

// ConfirmPrompt is the question put to the user before seeding title.
func ConfirmPrompt(title string) string {
	return fmt.Sprintf("Topic %q is unexplored. Initialize a research seed?", strings.TrimSpace(title))
}
