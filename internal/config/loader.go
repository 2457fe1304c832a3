package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"gspeech"},
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// localLLMProviders run without an API key.
var localLLMProviders = []string{"ollama", "llamacpp", "llamafile"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)

	// Both pipeline stages are mandatory: without either, no analysis can run.
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}

	// A missing LLM API key must be caught here, before any request is
	// attempted, for every provider that needs one.
	if name := cfg.Providers.LLM.Name; name != "" && cfg.Providers.LLM.APIKey == "" {
		if !slices.Contains(localLLMProviders, name) {
			errs = append(errs, fmt.Errorf("providers.llm.api_key is required for provider %q", name))
		}
	}

	// The fallback is a full provider in its own right and gets the same
	// scrutiny: it must be nameable and keyed, or it will only ever add a
	// second failure to the diagnostics.
	if fb := cfg.Providers.LLM.Fallback; fb != nil {
		validateProviderName("llm", fb.Name)
		if fb.Name == "" {
			errs = append(errs, errors.New("providers.llm.fallback.name is required when fallback is set"))
		} else if fb.APIKey == "" && !slices.Contains(localLLMProviders, fb.Name) {
			errs = append(errs, fmt.Errorf("providers.llm.fallback.api_key is required for provider %q", fb.Name))
		}
	}

	// Analysis tunables.
	if t := cfg.Analysis.Temperature; t < 0 || t > 2 {
		errs = append(errs, fmt.Errorf("analysis.temperature %.2f is out of range [0, 2]", t))
	}
	if cfg.Analysis.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("analysis.max_tokens %d must not be negative", cfg.Analysis.MaxTokens))
	}
	if th := cfg.Analysis.PhoneticThreshold; th < 0 || th > 1 {
		errs = append(errs, fmt.Errorf("analysis.phonetic_threshold %.2f is out of range [0, 1]", th))
	}
	if th := cfg.Analysis.FuzzyThreshold; th < 0 || th > 1 {
		errs = append(errs, fmt.Errorf("analysis.fuzzy_threshold %.2f is out of range [0, 1]", th))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
