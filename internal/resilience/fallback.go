package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robpineda/voiceonstudio/internal/observe"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails or has an
// open circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures a [FallbackGroup].
type FallbackConfig struct {
	// CircuitBreaker is the per-entry breaker template; each entry gets its
	// own breaker named after the provider.
	CircuitBreaker CircuitBreakerConfig

	// Metrics, when non-nil, receives a provider request counter increment
	// for every attempted entry and an error counter increment for every
	// failed one. Attempts skipped because a breaker is open are not
	// requests and are not counted.
	Metrics *observe.Metrics

	// Kind is the provider kind attribute on recorded metrics, e.g. "stt"
	// or "llm".
	Kind string
}

// fallbackEntry pairs a provider value with its dedicated circuit breaker.
type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup wraps a primary and zero or more fallback instances of the same
// provider type. When the primary fails (or its circuit breaker is open), the
// next healthy fallback is tried in registration order.
//
// FallbackGroup is safe for concurrent use.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a [FallbackGroup] with primary as the first entry.
// Additional fallbacks are registered via [FallbackGroup.AddFallback].
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	cbCfg := cfg.CircuitBreaker
	cbCfg.Name = primaryName
	return &FallbackGroup[T]{
		entries: []fallbackEntry[T]{
			{
				name:    primaryName,
				value:   primary,
				breaker: NewCircuitBreaker(cbCfg),
			},
		},
		cfg: cfg,
	}
}

// AddFallback appends a fallback provider. Fallbacks are tried in the order they
// are added, after the primary.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// record counts one attempted call against the configured metrics.
func (fg *FallbackGroup[T]) record(ctx context.Context, name string, err error) {
	m := fg.cfg.Metrics
	if m == nil {
		return
	}
	if err != nil {
		m.RecordProviderRequest(ctx, name, fg.cfg.Kind, "error")
		m.RecordProviderError(ctx, name, fg.cfg.Kind)
		return
	}
	m.RecordProviderRequest(ctx, name, fg.cfg.Kind, "ok")
}

// Execute tries fn against each entry in order until one succeeds.
// Circuit-breaker-open entries are skipped. If every entry fails the returned
// error wraps [ErrAllFailed] together with every per-entry failure, each
// prefixed by the entry's name, so the caller sees the full diagnostic trail.
func (fg *FallbackGroup[T]) Execute(ctx context.Context, fn func(T) error) error {
	var errs []error
	for i := range fg.entries {
		entry := &fg.entries[i]
		err := entry.breaker.Execute(func() error {
			return fn(entry.value)
		})
		if !errors.Is(err, ErrCircuitOpen) {
			fg.record(ctx, entry.name, err)
		}
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", entry.name, err))
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider (circuit open)", "provider", entry.name)
		} else {
			slog.Warn("provider failed, trying next",
				"provider", entry.name, "error", err)
		}
	}
	return errors.Join(append([]error{ErrAllFailed}, errs...)...)
}

// ExecuteWithResult tries fn against each entry in the group until one succeeds,
// returning both the result value and error. This is a package-level function
// because Go does not support method-level type parameters. On total failure
// the error carries every entry's failure, same as [FallbackGroup.Execute].
func ExecuteWithResult[T any, R any](ctx context.Context, fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		errs []error
		zero R
	)
	for i := range fg.entries {
		entry := &fg.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if !errors.Is(err, ErrCircuitOpen) {
			fg.record(ctx, entry.name, err)
		}
		if err == nil {
			return result, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", entry.name, err))
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider (circuit open)", "provider", entry.name)
		} else {
			slog.Warn("provider failed, trying next",
				"provider", entry.name, "error", err)
		}
	}
	return zero, errors.Join(append([]error{ErrAllFailed}, errs...)...)
}
