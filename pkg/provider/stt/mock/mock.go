// Package mock provides a test double for the stt.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/robpineda/voiceonstudio/pkg/provider/stt"
	"github.com/robpineda/voiceonstudio/pkg/types"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	Ctx context.Context
	Req stt.Request
}

// Provider is a configurable stt.Provider for tests. It records every call
// and returns the configured response or error.
type Provider struct {
	mu sync.Mutex

	// Transcript is returned from Transcribe when TranscribeErr is nil.
	Transcript *types.Transcript

	// TranscribeErr, when non-nil, is returned from Transcribe.
	TranscribeErr error

	// TranscribeCalls records all invocations in order.
	TranscribeCalls []TranscribeCall
}

var _ stt.Provider = (*Provider)(nil)

func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*types.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Req: req})
	if p.TranscribeErr != nil {
		return nil, p.TranscribeErr
	}
	if p.Transcript != nil {
		return p.Transcript, nil
	}
	return &types.Transcript{}, nil
}

// CallCount returns the number of Transcribe invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears recorded calls and configured responses.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Transcript = nil
	p.TranscribeErr = nil
	p.TranscribeCalls = nil
}
