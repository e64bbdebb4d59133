// Package knowledge is the boundary to the external language-model service
// that structures raw captures, answers follow-up questions and suggests
// search keywords.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/cogninote/internal/apperr"
	"github.com/starford/cogninote/internal/models"
)

// Providers.
const (
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"
	ProviderOffline = "offline"
)

// MaxKeywords caps keyword suggestions.
const MaxKeywords = 5

// Service is the external knowledge collaborator.
type Service interface {
	// Structure turns raw input into note content. priorTitles are recent
	// note titles passed as disambiguation context.
	Structure(ctx context.Context, rawInput string, priorTitles []string, isSeed bool) (*Structured, error)
	// Converse is a stateless single-turn exchange about a note.
	Converse(ctx context.Context, prompt, noteContext string) (string, error)
	// SuggestKeywords is best effort and never fails: errors yield an empty list.
	SuggestKeywords(ctx context.Context, query string) []string
}

// Structured is the note content produced by Structure.
type Structured struct {
	Title       string              `json:"title"`
	Category    models.Category     `json:"category"`
	Tags        []string            `json:"tags"`
	Cornell     models.Cornell      `json:"cornell"`
	Validation  models.Validation   `json:"validation"`
	Connections []models.Connection `json:"connections"` // IDs are empty
}

// Config selects and tunes the provider.
type Config struct {
	Provider       string
	APIKey         string
	BaseURL        string
	StructureModel string
	ChatModel      string
	ThinkingBudget int32
	Timeout        time.Duration
}

// New builds the Service for cfg.Provider.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Service, error) {
	switch cfg.Provider {
	case ProviderGemini:
		return NewGemini(ctx, cfg, logger)
	case ProviderOpenAI:
		return NewOpenAI(cfg, logger), nil
	case ProviderOffline:
		return Offline{}, nil
	default:
		return nil, fmt.Errorf("knowledge: unknown provider %q", cfg.Provider)
	}
}

// Offline is a Service for runs without a configured model. Structuring and
// conversation fail; keyword suggestion returns nothing.
type Offline struct{}

// Structure always fails.
func (Offline) Structure(context.Context, string, []string, bool) (*Structured, error) {
	return nil, fmt.Errorf("knowledge: no provider configured: %w", apperr.ErrService)
}

// Converse always fails.
func (Offline) Converse(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("knowledge: no provider configured: %w", apperr.ErrService)
}

// SuggestKeywords returns an empty list.
func (Offline) SuggestKeywords(context.Context, string) []string {
	return []string{}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
