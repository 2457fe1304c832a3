// Package types defines the shared types used across all VoiceOn Studio
// packages.
//
// These types form the lingua franca between the STT and LLM providers and
// the analysis pipeline. They are intentionally minimal — each package defines
// its own domain types, but cross-cutting data structures live here to avoid
// circular imports.
package types

import "time"

// TimedWord is a single recognised word with its timing offsets relative to
// the start of the recording. Words are immutable once produced and are
// ordered by Start ascending to match the original utterance order.
type TimedWord struct {
	// Text is the recognised word, including any attached punctuation.
	Text string

	// Start is the offset at which the word begins.
	Start time.Duration

	// End is the offset at which the word ends.
	End time.Duration
}

// StartSeconds returns the word's start offset in seconds.
func (w TimedWord) StartSeconds() float64 { return w.Start.Seconds() }

// EndSeconds returns the word's end offset in seconds.
func (w TimedWord) EndSeconds() float64 { return w.End.Seconds() }

// Transcript is the normalised result of a batch speech-to-text request.
// A well-formed transcription with no recognised speech is represented by
// empty Text and a nil/empty Words slice — that is a valid outcome, not an
// error.
type Transcript struct {
	// Text is the full transcript with punctuation.
	Text string

	// Words holds per-word timing detail in utterance order. May be empty
	// when the service recognised nothing.
	Words []TimedWord
}

// Segment is a time-bounded candidate "perfect take" proposed by the
// language model. Start and End are offsets in seconds; validation
// guarantees 0 <= Start < End and Confidence in [0, 1] for every Segment
// that leaves the extraction stage.
type Segment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 { return s.End - s.Start }

// Overlaps reports whether s and other share any span of time. The model is
// instructed never to produce overlapping segments, but being a probabilistic
// producer it occasionally does; overlap is surfaced to the reviewer rather
// than resolved silently.
func (s Segment) Overlaps(other Segment) bool {
	return s.Start < other.End && other.Start < s.End
}

// Message represents a single message in an LLM conversation.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is an optional participant name.
	Name string
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one
	// completion.
	MaxOutputTokens int

	// SupportsStreaming indicates the model supports streaming completions.
	SupportsStreaming bool

	// SupportsVision indicates the model can process image inputs.
	SupportsVision bool
}
