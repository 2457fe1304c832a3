// Package config provides the configuration schema, loader, file watcher,
// and provider registry for the VoiceOn Studio analysis server.
package config

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for VoiceOn Studio.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
}

// ServerConfig holds network and logging settings for the server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	STT ProviderEntry `yaml:"stt"`
	LLM ProviderEntry `yaml:"llm"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "gspeech").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`

	// Fallback optionally declares a second provider of the same kind to try
	// when this one fails or its circuit breaker is open. It carries its own
	// name, credentials, and model; nothing is inherited from the primary.
	Fallback *FallbackEntry `yaml:"fallback"`
}

// FallbackEntry configures a fallback provider. It mirrors [ProviderEntry]
// minus the ability to nest further fallbacks.
type FallbackEntry struct {
	Name    string         `yaml:"name"`
	APIKey  string         `yaml:"api_key"`
	BaseURL string         `yaml:"base_url"`
	Model   string         `yaml:"model"`
	Options map[string]any `yaml:"options"`
}

// Entry converts f into a standalone [ProviderEntry] for factory lookup.
func (f *FallbackEntry) Entry() ProviderEntry {
	return ProviderEntry{
		Name:    f.Name,
		APIKey:  f.APIKey,
		BaseURL: f.BaseURL,
		Model:   f.Model,
		Options: f.Options,
	}
}

// AnalysisConfig holds tunables for the segment-identification pipeline.
// All fields are hot-reloadable (see [Diff] and [Watcher]).
type AnalysisConfig struct {
	// Language is the default BCP-47 transcription language (e.g., "en-US").
	// Callers may override per request.
	Language string `yaml:"language"`

	// Temperature is the LLM sampling temperature for segment extraction.
	// Zero means the built-in default.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens bounds the LLM completion length. Zero means the built-in
	// default.
	MaxTokens int `yaml:"max_tokens"`

	// PhoneticThreshold is the minimum similarity for phonetically
	// overlapping word pairs in script accuracy scoring. Zero means the
	// built-in default.
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`

	// FuzzyThreshold is the minimum similarity for non-phonetic word pairs
	// in script accuracy scoring. Zero means the built-in default.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
}
