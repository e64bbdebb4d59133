package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/cogninote/internal/models"
)

type exportFrontmatter struct {
	ID       string   `yaml:"id"`
	Title    string   `yaml:"title"`
	Category string   `yaml:"category"`
	Tags     []string `yaml:"tags,flow"`
	Mastery  int      `yaml:"mastery"`
	Accuracy float64  `yaml:"accuracy"`
	Seed     bool     `yaml:"seed,omitempty"`
	Created  string   `yaml:"created"`
	Updated  string   `yaml:"updated"`
}

// Render writes n as Markdown: YAML frontmatter, the Cornell sections, the
// fact check and connections as [[wikilinks]].
func Render(n models.Note) ([]byte, error) {
	fm, err := yaml.Marshal(exportFrontmatter{
		ID:       n.ID,
		Title:    n.Title,
		Category: string(n.Category),
		Tags:     models.NonNil(n.Tags),
		Mastery:  n.MasteryScore,
		Accuracy: n.Validation.AccuracyScore,
		Seed:     n.IsSeed,
		Created:  formatTime(n.CreatedAt),
		Updated:  formatTime(n.UpdatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("parser: render frontmatter: %w", err)
	}

	var b bytes.Buffer
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n", n.Title)

	if len(n.Cornell.Cues) > 0 {
		b.WriteString("\n## Cues\n\n")
		for _, c := range n.Cornell.Cues {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	if notes := strings.TrimSpace(n.Cornell.Notes); notes != "" {
		fmt.Fprintf(&b, "\n## Notes\n\n%s\n", notes)
	}
	if summary := strings.TrimSpace(n.Cornell.Summary); summary != "" {
		fmt.Fprintf(&b, "\n## Summary\n\n%s\n", summary)
	}

	v := n.Validation
	if len(v.FactCheckDetails) > 0 || v.VerificationNote != "" {
		b.WriteString("\n## Fact check\n\n")
		if v.VerificationNote != "" {
			fmt.Fprintf(&b, "%s\n\n", v.VerificationNote)
		}
		for _, f := range v.FactCheckDetails {
			fmt.Fprintf(&b, "- [%s] %s\n", f.Status, f.Fact)
		}
	}

	if len(n.Connections) > 0 {
		b.WriteString("\n## Connections\n\n")
		for _, c := range n.Connections {
			if c.Relation != "" {
				fmt.Fprintf(&b, "- [[%s]] %s\n", c.Title, c.Relation)
			} else {
				fmt.Fprintf(&b, "- [[%s]]\n", c.Title)
			}
		}
	}
	return b.Bytes(), nil
}

func formatTime(ts models.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
