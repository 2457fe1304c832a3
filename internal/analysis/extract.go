package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/robpineda/voiceonstudio/pkg/provider/llm"
	"github.com/robpineda/voiceonstudio/pkg/types"
)

const (
	// defaultTemperature favours faithfulness to the prompt's format
	// instructions over creative variation.
	defaultTemperature = 0.3

	// defaultMaxTokens bounds the completion; a segments array for even a
	// long take is far smaller than this.
	defaultMaxTokens = 1024
)

// Result is the outcome of one take analysis. An empty Segments slice is a
// valid result ("no perfect takes found"), distinct from any error.
type Result struct {
	Segments []types.Segment `json:"segments"`

	// Transcript is the full recognised text of the take. Empty when no
	// speech was recognised.
	Transcript string `json:"transcript,omitempty"`
}

// ExtractorOption configures an [Extractor].
type ExtractorOption func(*Extractor)

// WithTemperature overrides the sampling temperature.
func WithTemperature(temp float64) ExtractorOption {
	return func(e *Extractor) {
		e.temperature = temp
	}
}

// WithMaxTokens overrides the completion length bound.
func WithMaxTokens(n int) ExtractorOption {
	return func(e *Extractor) {
		e.maxTokens = n
	}
}

// Extractor invokes the language model with a rendered prompt and validates
// its structured output into a [Result]. It is safe for concurrent use.
type Extractor struct {
	llm         llm.Provider
	temperature float64
	maxTokens   int
}

// NewExtractor returns an [Extractor] backed by the given [llm.Provider].
func NewExtractor(provider llm.Provider, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		llm:         provider,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// segmentsResponse is the expected model output. Fields are pointers so a
// missing field is distinguishable from a zero value.
type segmentsResponse struct {
	Segments []struct {
		Start      *float64 `json:"start"`
		End        *float64 `json:"end"`
		Confidence *float64 `json:"confidence"`
	} `json:"segments"`
}

// Extract sends the prompt as a single user message and validates the
// model's JSON reply. Transport failures map to [ErrModelService]; missing,
// unparseable, or schema-invalid content maps to [ErrModelOutput]. One bad
// segment invalidates the entire response; a systematically malformed reply
// makes every entry untrustworthy.
func (e *Extractor) Extract(ctx context.Context, prompt string) (*Result, error) {
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Messages:    []types.Message{{Role: "user", Content: prompt}},
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelService, err)
	}

	if resp == nil {
		return nil, fmt.Errorf("%w: provider returned no response", ErrModelOutput)
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: completion has no content", ErrModelOutput)
	}

	payload := jsonPayload(content)

	var parsed segmentsResponse
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, fmt.Errorf("%w: parsing completion as JSON: %v (raw: %s)",
			ErrModelOutput, err, truncate(content))
	}
	if parsed.Segments == nil {
		return nil, fmt.Errorf("%w: completion lacks a segments array (raw: %s)",
			ErrModelOutput, truncate(content))
	}

	segments := make([]types.Segment, 0, len(parsed.Segments))
	for i, s := range parsed.Segments {
		if s.Start == nil || s.End == nil || s.Confidence == nil {
			return nil, fmt.Errorf("%w: segment %d is missing a required field", ErrModelOutput, i)
		}
		if *s.Start < 0 {
			return nil, fmt.Errorf("%w: segment %d has negative start %.2f", ErrModelOutput, i, *s.Start)
		}
		if *s.End <= *s.Start {
			return nil, fmt.Errorf("%w: segment %d has end %.2f not after start %.2f",
				ErrModelOutput, i, *s.End, *s.Start)
		}
		segments = append(segments, types.Segment{
			Start:      *s.Start,
			End:        *s.End,
			Confidence: clampUnit(*s.Confidence),
		})
	}

	// Segments are returned in model order; ordering is Finalize's job.
	return &Result{Segments: segments}, nil
}

// jsonPayload locates the JSON body inside a completion. Models often wrap
// the JSON in a fenced code block with prose around it; the first fenced
// block wins. Without a fence the whole trimmed completion is the payload.
func jsonPayload(content string) string {
	start := strings.Index(content, "```")
	if start < 0 {
		return strings.TrimSpace(content)
	}
	rest := content[start+3:]
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	// Drop a language tag (e.g. "json") on the fence line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && isFenceTag(rest[:nl]) {
		rest = rest[nl+1:]
	}
	return strings.TrimSpace(rest)
}

func isFenceTag(s string) bool {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string) string {
	const max = 512
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
