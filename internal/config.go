package internal

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/cogninote/internal/knowledge"
	"github.com/starford/cogninote/internal/noteservice"
	"github.com/starford/cogninote/internal/storage"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// MaxContextTitles caps the prior titles sent with a structuring call.
const MaxContextTitles = 15

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Store     StoreConfig       `yaml:"store"`
	Knowledge KnowledgeConfig   `yaml:"knowledge"`
	Search    SearchConfig      `yaml:"search"`
	Inbox     InboxConfig       `yaml:"inbox"`
	Auth      AuthConfig        `yaml:"auth"`
	SSE       SSEConfig         `yaml:"sse"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Store, &c.Knowledge, &c.Search, &c.Inbox, &c.Auth, &c.SSE,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig selects the persistent store. Path is a directory for the
// file driver and a database file for sqlite.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	Key    string `yaml:"key"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required,
			validation.In(storage.DriverFile, storage.DriverSQLite, storage.DriverMemory)),
		validation.Field(&c.Path, validation.When(c.Driver != storage.DriverMemory, validation.Required)),
		validation.Field(&c.Key, validation.Required),
	)
}

// KnowledgeConfig configures the language-model provider.
type KnowledgeConfig struct {
	Provider       string        `yaml:"provider"`
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	StructureModel string        `yaml:"structure_model"`
	ChatModel      string        `yaml:"chat_model"`
	ThinkingBudget int32         `yaml:"thinking_budget"`
	Timeout        time.Duration `yaml:"timeout"`
	ContextTitles  int           `yaml:"context_titles"`
}

// Validate validates the knowledge configuration.
func (c *KnowledgeConfig) Validate() error {
	online := c.Provider != knowledge.ProviderOffline
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required,
			validation.In(knowledge.ProviderGemini, knowledge.ProviderOpenAI, knowledge.ProviderOffline)),
		validation.Field(&c.APIKey, validation.When(online, validation.Required.Error("is required unless provider is offline"))),
		validation.Field(&c.StructureModel, validation.When(online, validation.Required)),
		validation.Field(&c.ChatModel, validation.When(online, validation.Required)),
		validation.Field(&c.ThinkingBudget, validation.Min(int32(0))),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.ContextTitles, validation.Min(0), validation.Max(MaxContextTitles)),
	)
}

// Client returns the client configuration for knowledge.New.
func (c *KnowledgeConfig) Client() knowledge.Config {
	return knowledge.Config{
		Provider:       c.Provider,
		APIKey:         c.APIKey,
		BaseURL:        c.BaseURL,
		StructureModel: c.StructureModel,
		ChatModel:      c.ChatModel,
		ThinkingBudget: c.ThinkingBudget,
		Timeout:        c.Timeout,
	}
}

// SearchConfig tunes keyword expansion.
type SearchConfig struct {
	Debounce       time.Duration `yaml:"debounce"`
	MinQueryLength int           `yaml:"min_query_length"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.MinQueryLength, validation.Min(1)),
	)
}

// InboxConfig configures the capture inbox. An empty Path disables it.
type InboxConfig struct {
	Path   string        `yaml:"path"`
	Settle time.Duration `yaml:"settle"`
}

// Validate validates the inbox configuration.
func (c *InboxConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Settle, validation.Min(time.Duration(0))),
	)
}

// Enabled reports whether the inbox watcher should run.
func (c *InboxConfig) Enabled() bool {
	return c.Path != ""
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// SSEConfig tunes the event stream.
type SSEConfig struct {
	GraphThrottle time.Duration `yaml:"graph_throttle"`
}

// Validate validates the SSE configuration.
func (c *SSEConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GraphThrottle, validation.Min(time.Duration(0))),
	)
}

// NoteService returns the orchestration settings.
func (c *Config) NoteService() noteservice.Config {
	return noteservice.Config{
		ContextTitles:  c.Knowledge.ContextTitles,
		Debounce:       c.Search.Debounce,
		MinQueryLength: c.Search.MinQueryLength,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	svc := noteservice.DefaultConfig()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Driver: storage.DriverFile,
			Path:   "./data",
			Key:    storage.DefaultKey,
		},
		Knowledge: KnowledgeConfig{
			Provider:       knowledge.ProviderGemini,
			StructureModel: "gemini-3-pro-preview",
			ChatModel:      "gemini-3-flash-preview",
			ThinkingBudget: 32768,
			Timeout:        2 * time.Minute,
			ContextTitles:  svc.ContextTitles,
		},
		Search: SearchConfig{
			Debounce:       svc.Debounce,
			MinQueryLength: svc.MinQueryLength,
		},
		Inbox: InboxConfig{
			Settle: 200 * time.Millisecond,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		SSE: SSEConfig{
			GraphThrottle: 2 * time.Second,
		},
	}
}

// ApplyEnv fills an empty knowledge API key from COGNINOTE_API_KEY or the
// provider's conventional variable.
func (c *Config) ApplyEnv() {
	if c.Knowledge.APIKey != "" {
		return
	}
	names := []string{"COGNINOTE_API_KEY"}
	switch c.Knowledge.Provider {
	case knowledge.ProviderGemini:
		names = append(names, "GEMINI_API_KEY", "API_KEY")
	case knowledge.ProviderOpenAI:
		names = append(names, "OPENAI_API_KEY")
	}
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			c.Knowledge.APIKey = v
			return
		}
	}
}
