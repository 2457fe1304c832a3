package config_test

import (
	"strings"
	"testing"

	"github.com/robpineda/voiceonstudio/internal/config"
)

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
providers:
  stt:
    name: gspeech
  llm:
    name: openai
    api_key: sk-test
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_MissingProviders(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: info
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing providers, got nil")
	}
	if !strings.Contains(err.Error(), "providers.stt.name") {
		t.Errorf("error should mention providers.stt.name, got: %v", err)
	}
	if !strings.Contains(err.Error(), "providers.llm.name") {
		t.Errorf("error should mention providers.llm.name, got: %v", err)
	}
}

func TestValidate_MissingLLMAPIKeyIsFatal(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: gspeech
  llm:
    name: openai
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing LLM API key, got nil")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Errorf("error should mention api_key, got: %v", err)
	}
}

func TestValidate_LocalLLMNeedsNoAPIKey(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: gspeech
  llm:
    name: ollama
    model: llama3
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unexpected error for local provider without api_key: %v", err)
	}
}

func TestValidate_TLSRequiresBothFiles(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  tls:
    cert_file: /etc/certs/server.pem
providers:
  stt:
    name: gspeech
  llm:
    name: openai
    api_key: sk-test
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for TLS without key_file, got nil")
	}
	if !strings.Contains(err.Error(), "key_file") {
		t.Errorf("error should mention key_file, got: %v", err)
	}
}

func TestValidate_AnalysisBounds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "temperature too high",
			yaml: "analysis:\n  temperature: 3.5\n",
			want: "temperature",
		},
		{
			name: "negative max_tokens",
			yaml: "analysis:\n  max_tokens: -1\n",
			want: "max_tokens",
		},
		{
			name: "phonetic threshold out of range",
			yaml: "analysis:\n  phonetic_threshold: 1.5\n",
			want: "phonetic_threshold",
		},
		{
			name: "fuzzy threshold out of range",
			yaml: "analysis:\n  fuzzy_threshold: -0.1\n",
			want: "fuzzy_threshold",
		},
	}

	const validProviders = `
providers:
  stt:
    name: gspeech
  llm:
    name: openai
    api_key: sk-test
`

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(validProviders + tc.yaml))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error should mention %s, got: %v", tc.want, err)
			}
		})
	}
}

func TestValidate_AllErrorsJoined(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
analysis:
  temperature: 5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{"log_level", "temperature", "providers.stt.name", "providers.llm.name"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %s, got: %v", want, err)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestValidate_FallbackRequiresName(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: gspeech
  llm:
    name: openai
    api_key: sk-test
    fallback:
      model: llama3.1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for fallback without name, got nil")
	}
	if !strings.Contains(err.Error(), "fallback.name") {
		t.Errorf("error should mention fallback.name, got: %v", err)
	}
}

func TestValidate_HostedFallbackRequiresAPIKey(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: gspeech
  llm:
    name: openai
    api_key: sk-test
    fallback:
      name: anthropic
      model: claude-sonnet-4-5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for hosted fallback without api_key, got nil")
	}
	if !strings.Contains(err.Error(), "fallback.api_key") {
		t.Errorf("error should mention fallback.api_key, got: %v", err)
	}
}

func TestValidate_LocalFallbackNeedsNoAPIKey(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: gspeech
  llm:
    name: openai
    api_key: sk-test
    fallback:
      name: ollama
      base_url: http://localhost:11434
      model: llama3.1
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fb := cfg.Providers.LLM.Fallback
	if fb == nil {
		t.Fatal("fallback block not parsed")
	}
	if fb.Name != "ollama" || fb.Model != "llama3.1" {
		t.Errorf("fallback = %+v, want its own name and model", fb)
	}
	entry := fb.Entry()
	if entry.Name != "ollama" || entry.Model != "llama3.1" || entry.APIKey != "" {
		t.Errorf("Entry() = %+v, must not inherit from the primary", entry)
	}
}
