package knowledge

import (
	"fmt"
	"strings"

	"github.com/starford/cogninote/internal/models"
)

const captureInstruction = `You turn raw captured text into a validated Cornell note.
Organize the material hierarchically, fact-check its claims, point out gaps,
and relate it to the user's existing notes where it fits.`

const seedInstruction = `The user wants to start learning a topic they have no note for yet.
Produce a research seed: outline what they need to know and phrase the cues
as questions they must be able to answer to master the topic.`

const noteShape = `Reply with one JSON object:
{"title": string, "category": one of %s, "tags": [string],
 "cornell": {"notes": string, "cues": [string], "summary": string},
 "validation": {"accuracyScore": number 0-100, "verificationNote": string,
   "factCheckDetails": [{"fact": string, "status": "verified"|"uncertain"|"correction"}]},
 "connections": [{"title": string, "relation": string}]}`

func instruction(isSeed bool) string {
	if isSeed {
		return seedInstruction
	}
	return captureInstruction
}

func categoryList() string {
	names := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		names[i] = fmt.Sprintf("%q", string(c))
	}
	return strings.Join(names, "|")
}

func contextLine(priorTitles []string) string {
	if len(priorTitles) == 0 {
		return "None"
	}
	return strings.Join(priorTitles, ", ")
}

// structurePrompt is the user turn for Structure.
func structurePrompt(rawInput string, priorTitles []string, isSeed bool) string {
	return fmt.Sprintf("%s\n\nEXISTING NOTES:\n%s\n\nINPUT:\n%s",
		instruction(isSeed), contextLine(priorTitles), rawInput)
}

// conversePrompt is the single turn for Converse.
func conversePrompt(prompt, noteContext string) string {
	return fmt.Sprintf("Help the user master this concept.\n\nNOTE:\n%s\n\nQUESTION:\n%s", noteContext, prompt)
}

// keywordPrompt asks for related search terms.
func keywordPrompt(query string) string {
	return fmt.Sprintf("A user is searching their knowledge base for %q. "+
		"Suggest %d closely related conceptual keywords of one or two words each, "+
		"favoring academic, scientific or professional terms.", query, MaxKeywords)
}
