package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/cogninote/internal/knowledge"
	"github.com/starford/cogninote/internal/storage"
	pkgconfig "github.com/starford/cogninote/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestDefaultConfig_NeedsAPIKey(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("gemini provider without api_key should fail")
	}
	cfg.Knowledge.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults with key should pass: %v", err)
	}
}

func TestKnowledgeConfig_OfflineNeedsNothing(t *testing.T) {
	cfg := KnowledgeConfig{Provider: knowledge.ProviderOffline}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("offline provider should pass: %v", err)
	}
}

func TestKnowledgeConfig_UnknownProvider(t *testing.T) {
	cfg := NewDefaultConfig().Knowledge
	cfg.Provider = "claude"
	cfg.APIKey = "k"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown provider should fail")
	}
}

func TestStoreConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     StoreConfig
		wantErr bool
	}{
		{"file", StoreConfig{Driver: storage.DriverFile, Path: "./data", Key: storage.DefaultKey}, false},
		{"sqlite", StoreConfig{Driver: storage.DriverSQLite, Path: "./c.db", Key: storage.DefaultKey}, false},
		{"memory without path", StoreConfig{Driver: storage.DriverMemory, Key: storage.DefaultKey}, false},
		{"file without path", StoreConfig{Driver: storage.DriverFile, Key: storage.DefaultKey}, true},
		{"unknown driver", StoreConfig{Driver: "redis", Path: "x", Key: storage.DefaultKey}, true},
		{"empty key", StoreConfig{Driver: storage.DriverFile, Path: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSearchConfig_ZeroDebounce(t *testing.T) {
	cfg := SearchConfig{MinQueryLength: 3}
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero debounce should fail")
	}
}

func TestLoadYAMLWithEnv(t *testing.T) {
	t.Setenv("COGNINOTE_TEST_KEY", "from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `app:
  log_level: debug
  http:
    port: 9090
store:
  driver: sqlite
  path: ./cogninote.db
  key: cogninote_v4_data
knowledge:
  provider: openai
  api_key: ${COGNINOTE_TEST_KEY}
  base_url: http://localhost:11434/v1
  structure_model: llama3
  chat_model: llama3
  timeout: 30s
search:
  debounce: 250ms
  min_query_length: 3
inbox:
  path: ./inbox
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Knowledge.APIKey != "from-env" {
		t.Errorf("api_key = %q", cfg.Knowledge.APIKey)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.Store.Driver != storage.DriverSQLite {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Search.Debounce != 250*time.Millisecond || cfg.Knowledge.Timeout != 30*time.Second {
		t.Errorf("durations = %v / %v", cfg.Search.Debounce, cfg.Knowledge.Timeout)
	}
	if !cfg.Inbox.Enabled() || cfg.Inbox.Settle != 200*time.Millisecond {
		t.Errorf("inbox = %+v, want defaults kept", cfg.Inbox)
	}
	if got := cfg.NoteService().ContextTitles; got != 15 {
		t.Errorf("context titles = %d, want 15", got)
	}
}

func TestLoadWithDefaults_MissingFile(t *testing.T) {
	t.Setenv("COGNINOTE_API_KEY", "")
	cfg := NewDefaultConfig()
	cfg.Knowledge.Provider = knowledge.ProviderOffline
	err := pkgconfig.LoadWithDefaults(filepath.Join(t.TempDir(), "absent.yaml"), "", cfg)
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Store.Key != storage.DefaultKey {
		t.Errorf("key = %q", cfg.Store.Key)
	}
}

func TestApplyEnv_ProviderKey(t *testing.T) {
	t.Setenv("COGNINOTE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gem")
	cfg := NewDefaultConfig()
	cfg.ApplyEnv()
	if cfg.Knowledge.APIKey != "gem" {
		t.Errorf("api key = %q, want gem", cfg.Knowledge.APIKey)
	}

	cfg.Knowledge.APIKey = "explicit"
	cfg.ApplyEnv()
	if cfg.Knowledge.APIKey != "explicit" {
		t.Errorf("explicit key overridden: %q", cfg.Knowledge.APIKey)
	}
}

func TestKnowledgeConfig_ContextTitlesCapped(t *testing.T) {
	cfg := NewDefaultConfig().Knowledge
	cfg.APIKey = "k"
	cfg.ContextTitles = MaxContextTitles
	if err := cfg.Validate(); err != nil {
		t.Fatalf("%d context titles should pass: %v", MaxContextTitles, err)
	}
	cfg.ContextTitles = MaxContextTitles + 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("more than 15 context titles should fail")
	}
}
