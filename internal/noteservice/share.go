package noteservice

import (
	"fmt"
	"strings"

	"github.com/starford/cogninote/internal/models"
	"github.com/starford/cogninote/internal/parser"
)

// ShareText renders n as plain text for pasting into other applications.
func ShareText(n models.Note) string {
	return fmt.Sprintf("CogniNote: %s\nCategory: %s\n\nSUMMARY: %s\n\nCUES: %s\n\nNOTES:\n%s",
		n.Title, n.Category, n.Cornell.Summary, strings.Join(n.Cornell.Cues, ", "), n.Cornell.Notes)
}

// Share returns the plain-text rendering of note id.
func (s *Service) Share(id string) (string, error) {
	n, err := s.repo.Get(id)
	if err != nil {
		return "", err
	}
	return ShareText(n), nil
}

// Export returns note id as Markdown with frontmatter.
func (s *Service) Export(id string) ([]byte, error) {
	n, err := s.repo.Get(id)
	if err != nil {
		return nil, err
	}
	return parser.Render(n)
}
