// Package parser reads Markdown capture files and renders notes back to
// Markdown with YAML frontmatter and wikilinks.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)

// Capture is a parsed capture file.
type Capture struct {
	Seed  bool
	Title string
	// Links are the [[wikilink]] targets in the body, in order of first use.
	Links []string
	// Input is the body with frontmatter removed.
	Input string
}

type frontmatter struct {
	Seed  bool   `yaml:"seed"`
	Title string `yaml:"title"`
}

// Parse reads a capture file. It never fails: invalid or unterminated
// frontmatter is treated as part of the body.
func Parse(data []byte) *Capture {
	fm, body := splitFrontmatter(data)
	c := &Capture{
		Seed:  fm.Seed,
		Title: strings.TrimSpace(fm.Title),
		Links: extractLinks(body),
		Input: strings.TrimSpace(body),
	}
	if c.Title == "" {
		c.Title = headingTitle(body)
	}
	return c
}

func splitFrontmatter(data []byte) (frontmatter, string) {
	const delim = "---"
	var fm frontmatter
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return fm, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return fm, string(data)
	}

	block := rest[:idx]
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")

	if err := yaml.Unmarshal(block, &fm); err != nil {
		return frontmatter{}, string(data)
	}
	return fm, body
}

// extractLinks returns deduplicated wikilink targets; [[Target|Alias]]
// yields Target.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target, _, _ := strings.Cut(m[1], "|")
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		key := strings.ToLower(target)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, target)
	}
	return out
}

func headingTitle(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
