package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/starford/cogninote/internal/apperr"
)

type fakeCompleter struct {
	reply string
	err   error
	req   openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.reply}}},
	}, nil
}

func TestOpenAIStructure(t *testing.T) {
	c := &fakeCompleter{reply: "```json\n" + validReply + "\n```"}
	o := newOpenAI(c, testConfig(), discardLogger())

	s, err := o.Structure(context.Background(), "raw", []string{"Memory"}, false)
	if err != nil {
		t.Fatalf("Structure: %v", err)
	}
	if s.Title != "Neural Plasticity" {
		t.Errorf("title = %q", s.Title)
	}
	if c.req.Model != "structure-model" || c.req.ResponseFormat == nil {
		t.Errorf("request = %+v", c.req)
	}
	if len(c.req.Messages) != 2 || c.req.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Fatalf("messages = %+v", c.req.Messages)
	}
	if !strings.Contains(c.req.Messages[0].Content, `"Reference"`) {
		t.Error("system prompt does not list categories")
	}
}

func TestOpenAIErrors(t *testing.T) {
	o := newOpenAI(&fakeCompleter{err: errors.New("401")}, testConfig(), discardLogger())
	if _, err := o.Converse(context.Background(), "q", "ctx"); !errors.Is(err, apperr.ErrService) {
		t.Errorf("err = %v, want ErrService", err)
	}

	o = newOpenAI(&fakeCompleter{reply: "  "}, testConfig(), discardLogger())
	if _, err := o.Converse(context.Background(), "q", "ctx"); !errors.Is(err, apperr.ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestOpenAISuggestKeywords(t *testing.T) {
	o := newOpenAI(&fakeCompleter{reply: `{"keywords":["entropy","enthalpy"]}`}, testConfig(), discardLogger())
	if got := o.SuggestKeywords(context.Background(), "thermo"); len(got) != 2 {
		t.Errorf("keywords = %v", got)
	}

	o = newOpenAI(&fakeCompleter{reply: "sorry"}, testConfig(), discardLogger())
	if got := o.SuggestKeywords(context.Background(), "thermo"); got == nil || len(got) != 0 {
		t.Errorf("keywords = %#v, want empty", got)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	svc, err := New(context.Background(), Config{Provider: ProviderOffline}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Structure(context.Background(), "x", nil, false); !errors.Is(err, apperr.ErrService) {
		t.Errorf("offline Structure err = %v", err)
	}
	if _, err := New(context.Background(), Config{Provider: "bard"}, discardLogger()); err == nil {
		t.Error("unknown provider accepted")
	}
}
