package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/starford/cogninote/internal/apperr"
)

// chatCompleter is the subset of *openai.Client used here.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI implements Service over any OpenAI-compatible chat completion
// endpoint using JSON object mode.
type OpenAI struct {
	client chatCompleter
	cfg    Config
	logger *slog.Logger
}

// NewOpenAI creates a client for cfg.BaseURL, or the public API when empty.
func NewOpenAI(cfg Config, logger *slog.Logger) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return newOpenAI(openai.NewClientWithConfig(clientCfg), cfg, logger)
}

func newOpenAI(c chatCompleter, cfg Config, logger *slog.Logger) *OpenAI {
	return &OpenAI{client: c, cfg: cfg, logger: logger}
}

// Structure implements Service.
func (o *OpenAI) Structure(ctx context.Context, rawInput string, priorTitles []string, isSeed bool) (*Structured, error) {
	system := instruction(isSeed) + "\n\n" + fmt.Sprintf(noteShape, categoryList())
	user := fmt.Sprintf("EXISTING NOTES:\n%s\n\nINPUT:\n%s", contextLine(priorTitles), rawInput)

	text, err := o.complete(ctx, o.cfg.StructureModel, system, user, true)
	if err != nil {
		return nil, err
	}
	return DecodeStructured(text)
}

// Converse implements Service.
func (o *OpenAI) Converse(ctx context.Context, prompt, noteContext string) (string, error) {
	text, err := o.complete(ctx, o.cfg.ChatModel, "", conversePrompt(prompt, noteContext), false)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("knowledge: empty reply: %w", apperr.ErrMalformed)
	}
	return text, nil
}

// SuggestKeywords implements Service.
func (o *OpenAI) SuggestKeywords(ctx context.Context, query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return []string{}
	}
	system := `Reply with one JSON object: {"keywords": [string]}`
	text, err := o.complete(ctx, o.cfg.ChatModel, system, keywordPrompt(query), true)
	if err == nil {
		var kws []string
		if kws, err = DecodeKeywords(text); err == nil {
			return kws
		}
	}
	o.logger.Warn("keyword suggestion failed",
		slog.String("query", query),
		slog.String("error", err.Error()),
	)
	return []string{}
}

func (o *OpenAI) complete(ctx context.Context, model, system, user string, jsonMode bool) (string, error) {
	ctx, cancel := withTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	var msgs []openai.ChatCompletionMessage
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})

	req := openai.ChatCompletionRequest{Model: model, Messages: msgs}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("knowledge: openai %s: %w: %v", model, apperr.ErrService, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("knowledge: openai %s: no choices: %w", model, apperr.ErrService)
	}
	return resp.Choices[0].Message.Content, nil
}
