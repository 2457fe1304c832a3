package resilience

import (
	"context"

	"github.com/robpineda/voiceonstudio/pkg/provider/stt"
	"github.com/robpineda/voiceonstudio/pkg/types"
)

// STTFallback implements [stt.Provider] with automatic failover across multiple
// STT backends. Each backend has its own circuit breaker, and every attempted
// backend call is counted on the configured provider metrics.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	if cfg.Kind == "" {
		cfg.Kind = "stt"
	}
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe submits the audio to the first healthy provider. If the primary
// fails, subsequent fallbacks are tried with the same request.
func (f *STTFallback) Transcribe(ctx context.Context, req stt.Request) (*types.Transcript, error) {
	return ExecuteWithResult(ctx, f.group, func(p stt.Provider) (*types.Transcript, error) {
		return p.Transcribe(ctx, req)
	})
}
