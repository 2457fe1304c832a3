// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a batch transcription service (e.g., Google Cloud
// Speech-to-Text) and exposes a uniform one-shot interface: the caller hands
// over a complete recorded take and receives the full transcript with
// word-level timing. There is no streaming surface — the analysis pipeline is
// strictly single-pass per request.
//
// Implementations must be safe for concurrent use; multiple analysis requests
// may transcribe simultaneously.
package stt

import (
	"context"

	"github.com/robpineda/voiceonstudio/pkg/types"
)

// Request describes a single batch transcription request.
type Request struct {
	// Audio is the complete encoded audio of the take. Must be non-empty.
	// The provider is responsible for any transport encoding (e.g., base64).
	Audio []byte

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// An empty string lets the provider apply its configured default.
	Language string
}

// Provider is the abstraction over any batch STT backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Transcribe submits the complete audio for recognition and blocks until
	// the service responds. The returned Transcript carries the full text and
	// per-word timing offsets in utterance order.
	//
	// A well-formed response recognising no speech is NOT an error: the
	// returned Transcript has empty Text and no Words. Errors are reserved
	// for transport failures, non-success HTTP statuses, and responses whose
	// shape cannot be interpreted.
	Transcribe(ctx context.Context, req Request) (*types.Transcript, error)
}
