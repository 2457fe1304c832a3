// Package analysis implements the clean-take identification pipeline: audio
// in, time-coded segment candidates out.
//
// The [Analyzer] drives a strictly linear, single-pass sequence per request:
// validate input, transcribe with word timing, build the model prompt,
// extract and validate the model's segment JSON. No state is retained across
// requests, so one Analyzer safely serves concurrent callers.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robpineda/voiceonstudio/internal/gcpauth"
	"github.com/robpineda/voiceonstudio/internal/observe"
	"github.com/robpineda/voiceonstudio/pkg/provider/llm"
	"github.com/robpineda/voiceonstudio/pkg/provider/stt"
	"github.com/robpineda/voiceonstudio/pkg/types"
)

// Request is one caller-supplied take analysis request.
type Request struct {
	// Audio is the complete encoded take. Must be non-empty.
	Audio []byte

	// Script is the optional reference text the actor was reading. When
	// empty, segments are judged on delivery quality only.
	Script string

	// Language is an optional BCP-47 language hint for transcription.
	Language string
}

// AnalyzerOption configures an [Analyzer].
type AnalyzerOption func(*Analyzer)

// WithMetrics overrides the metrics instance. Tests use this to avoid the
// global meter provider.
func WithMetrics(m *observe.Metrics) AnalyzerOption {
	return func(a *Analyzer) {
		a.metrics = m
	}
}

// WithExtractorOptions forwards options to the underlying [Extractor].
func WithExtractorOptions(opts ...ExtractorOption) AnalyzerOption {
	return func(a *Analyzer) {
		a.extractorOpts = append(a.extractorOpts, opts...)
	}
}

// WithDefaultLanguage sets the transcription language used when a request
// carries no language hint of its own.
func WithDefaultLanguage(lang string) AnalyzerOption {
	return func(a *Analyzer) {
		a.defaultLanguage = lang
	}
}

// Analyzer is the public entry point of the pipeline. Safe for concurrent
// use.
type Analyzer struct {
	stt       stt.Provider
	extractor *Extractor
	metrics   *observe.Metrics

	extractorOpts   []ExtractorOption
	defaultLanguage string
}

// New creates an [Analyzer] over the given transcription and language-model
// providers. Both are required.
func New(sttProvider stt.Provider, llmProvider llm.Provider, opts ...AnalyzerOption) (*Analyzer, error) {
	if sttProvider == nil {
		return nil, errors.New("analysis: stt provider is required")
	}
	if llmProvider == nil {
		return nil, errors.New("analysis: llm provider is required")
	}
	a := &Analyzer{stt: sttProvider}
	for _, o := range opts {
		o(a)
	}
	a.extractor = NewExtractor(llmProvider, a.extractorOpts...)
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a, nil
}

// Analyze runs the full pipeline for one request. Failures carry a
// [StageError] identifying the failing stage and wrap the matching sentinel
// from this package's taxonomy. No retries happen at this layer; each
// downstream failure is fatal to the request.
//
// A transcription response recognising no speech short-circuits to an empty
// [Result] without invoking the model.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	if len(req.Audio) == 0 {
		return nil, &StageError{
			Stage: StageInput,
			Err:   fmt.Errorf("%w: audio is empty", ErrInvalidInput),
		}
	}

	ctx, span := observe.StartSpan(ctx, "analysis.Analyze")
	defer span.End()
	log := observe.Logger(ctx)

	a.metrics.ActiveAnalyses.Add(ctx, 1)
	defer a.metrics.ActiveAnalyses.Add(ctx, -1)
	start := time.Now()

	language := req.Language
	if language == "" {
		language = a.defaultLanguage
	}

	sttStart := time.Now()
	transcript, err := a.stt.Transcribe(ctx, stt.Request{Audio: req.Audio, Language: language})
	a.metrics.STTDuration.Record(ctx, time.Since(sttStart).Seconds())
	if err != nil {
		stage, kind := StageTranscription, ErrTranscription
		if errors.Is(err, gcpauth.ErrNoCredentials) {
			stage, kind = StageAuth, ErrAuth
		}
		a.metrics.RecordAnalysis(ctx, "error", 0)
		return nil, &StageError{Stage: stage, Err: fmt.Errorf("%w: %w", kind, err)}
	}

	if transcript.Text == "" && len(transcript.Words) == 0 {
		log.Info("no speech recognized, skipping model call")
		a.metrics.RecordAnalysis(ctx, "empty", 0)
		return &Result{Segments: []types.Segment{}}, nil
	}

	prompt := BuildPrompt(transcript, req.Script)

	llmStart := time.Now()
	result, err := a.extractor.Extract(ctx, prompt)
	a.metrics.LLMDuration.Record(ctx, time.Since(llmStart).Seconds())
	if err != nil {
		a.metrics.RecordAnalysis(ctx, "error", 0)
		return nil, &StageError{Stage: StageExtraction, Err: err}
	}

	result.Transcript = transcript.Text

	a.metrics.AnalysisDuration.Record(ctx, time.Since(start).Seconds())
	a.metrics.RecordAnalysis(ctx, "ok", len(result.Segments))
	log.Info("analysis complete",
		"words", len(transcript.Words),
		"segments", len(result.Segments),
		"duration", time.Since(start))
	return result, nil
}
