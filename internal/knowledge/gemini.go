package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/starford/cogninote/internal/apperr"
	"github.com/starford/cogninote/internal/models"
)

// generator is the subset of *genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini implements Service over the Gemini API with schema-constrained
// JSON output.
type Gemini struct {
	models generator
	cfg    Config
	logger *slog.Logger
}

// NewGemini creates a Gemini API client.
func NewGemini(ctx context.Context, cfg Config, logger *slog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge: gemini client: %w", err)
	}
	return newGemini(client.Models, cfg, logger), nil
}

func newGemini(m generator, cfg Config, logger *slog.Logger) *Gemini {
	return &Gemini{models: m, cfg: cfg, logger: logger}
}

// Structure implements Service.
func (g *Gemini) Structure(ctx context.Context, rawInput string, priorTitles []string, isSeed bool) (*Structured, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   noteSchema(),
	}
	if g.cfg.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(g.cfg.ThinkingBudget)}
	}

	text, err := g.generate(ctx, g.cfg.StructureModel, structurePrompt(rawInput, priorTitles, isSeed), cfg)
	if err != nil {
		return nil, err
	}
	return DecodeStructured(text)
}

// Converse implements Service.
func (g *Gemini) Converse(ctx context.Context, prompt, noteContext string) (string, error) {
	text, err := g.generate(ctx, g.cfg.ChatModel, conversePrompt(prompt, noteContext), nil)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("knowledge: empty reply: %w", apperr.ErrMalformed)
	}
	return text, nil
}

// SuggestKeywords implements Service.
func (g *Gemini) SuggestKeywords(ctx context.Context, query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return []string{}
	}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	}
	text, err := g.generate(ctx, g.cfg.ChatModel, keywordPrompt(query), cfg)
	if err == nil {
		var kws []string
		if kws, err = DecodeKeywords(text); err == nil {
			return kws
		}
	}
	g.logger.Warn("keyword suggestion failed",
		slog.String("query", query),
		slog.String("error", err.Error()),
	)
	return []string{}
}

func (g *Gemini) generate(ctx context.Context, model, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	ctx, cancel := withTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	resp, err := g.models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("knowledge: gemini %s: %w: %v", model, apperr.ErrService, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("knowledge: gemini %s: no candidates: %w", model, apperr.ErrService)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}

func noteSchema() *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	strList := &genai.Schema{Type: genai.TypeArray, Items: str}

	categories := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		categories[i] = string(c)
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":    str,
			"category": {Type: genai.TypeString, Enum: categories},
			"tags":     strList,
			"cornell": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"notes":   {Type: genai.TypeString, Description: "Hierarchical Markdown notes"},
					"cues":    strList,
					"summary": str,
				},
				Required: []string{"notes", "cues", "summary"},
			},
			"validation": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"accuracyScore":    {Type: genai.TypeNumber, Description: "0 to 100"},
					"verificationNote": str,
					"missingPoints":    strList,
					"inconsistencies":  strList,
					"factCheckDetails": {
						Type: genai.TypeArray,
						Items: &genai.Schema{
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"fact": str,
								"status": {Type: genai.TypeString, Enum: []string{
									string(models.FactVerified), string(models.FactUncertain), string(models.FactCorrection),
								}},
							},
							Required: []string{"fact", "status"},
						},
					},
				},
				Required: []string{"accuracyScore", "verificationNote", "factCheckDetails"},
			},
			"connections": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"title":    str,
						"relation": str,
					},
					Required: []string{"title", "relation"},
				},
			},
		},
		Required: []string{"title", "category", "tags", "cornell", "validation", "connections"},
	}
}
