// Package gcpauth resolves Google Cloud access tokens for the Speech API.
//
// Two strategies are supported: the GCE metadata server (available when the
// process runs on Google infrastructure) and the locally installed gcloud CLI
// (the common developer setup). A Resolver chains them with per-strategy
// circuit breakers so that a dead metadata endpoint stops being probed on
// every request.
package gcpauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/robpineda/voiceonstudio/internal/resilience"
)

// ErrNoCredentials is returned when every configured strategy failed. The
// wrapped error carries each strategy's own failure.
var ErrNoCredentials = errors.New("no usable Google Cloud credentials")

const defaultMetadataURL = "http://metadata.google.internal/computeMetadata/v1/instance/service-accounts/default/token"

// Source is a single token acquisition strategy.
type Source interface {
	Token(ctx context.Context) (string, error)
}

// MetadataSource fetches access tokens from the GCE metadata server.
type MetadataSource struct {
	url    string
	client *http.Client
}

// NewMetadataSource creates a metadata-server source. The client timeout is
// deliberately short; off-GCE the endpoint does not resolve and the failure
// should be cheap.
func NewMetadataSource() *MetadataSource {
	return &MetadataSource{
		url:    defaultMetadataURL,
		client: &http.Client{Timeout: 2 * time.Second},
	}
}

// NewMetadataSourceWithURL creates a metadata source against a custom URL.
// Intended for tests.
func NewMetadataSourceWithURL(url string) *MetadataSource {
	s := NewMetadataSource()
	s.url = url
	return s
}

func (s *MetadataSource) Token(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", fmt.Errorf("gcpauth: creating metadata request: %w", err)
	}
	req.Header.Set("Metadata-Flavor", "Google")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gcpauth: querying metadata server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("gcpauth: reading metadata response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gcpauth: metadata server returned HTTP %d", resp.StatusCode)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("gcpauth: decoding metadata response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", errors.New("gcpauth: metadata response has no access_token")
	}
	return parsed.AccessToken, nil
}

// GcloudSource shells out to the gcloud CLI for an access token.
type GcloudSource struct {
	// Path is the gcloud binary to invoke. Defaults to "gcloud".
	Path string
}

func (s *GcloudSource) Token(ctx context.Context) (string, error) {
	path := s.Path
	if path == "" {
		path = "gcloud"
	}
	out, err := exec.CommandContext(ctx, path, "auth", "print-access-token").Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("gcpauth: gcloud: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("gcpauth: running gcloud: %w", err)
	}
	token := strings.TrimSpace(string(out))
	if token == "" {
		return "", errors.New("gcpauth: gcloud printed an empty token")
	}
	return token, nil
}

// Resolver tries each registered Source in order until one yields a token.
// Per-source circuit breakers keep a persistently failing strategy from being
// retried on every call. Resolver satisfies the Speech client's token source
// interface.
type Resolver struct {
	group *resilience.FallbackGroup[Source]
}

// NewResolver creates a Resolver with the default strategy order: metadata
// server first, then the gcloud CLI.
func NewResolver() *Resolver {
	return NewResolverWithSources(
		NamedSource{"metadata", NewMetadataSource()},
		NamedSource{"gcloud", &GcloudSource{}},
	)
}

type NamedSource struct {
	Name   string
	Source Source
}

// NewResolverWithSources creates a Resolver over an explicit strategy chain.
func NewResolverWithSources(sources ...NamedSource) *Resolver {
	cfg := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  3,
			ResetTimeout: time.Minute,
		},
	}
	if len(sources) == 0 {
		return &Resolver{}
	}
	group := resilience.NewFallbackGroup(sources[0].Source, sources[0].Name, cfg)
	for _, s := range sources[1:] {
		group.AddFallback(s.Name, s.Source)
	}
	return &Resolver{group: group}
}

// Token returns the first token any strategy produces. When all strategies
// fail, the error wraps [ErrNoCredentials] plus every strategy's failure so
// logs show the whole picture (e.g. both "metadata server unreachable" and
// "gcloud not installed").
func (r *Resolver) Token(ctx context.Context) (string, error) {
	if r.group == nil {
		return "", ErrNoCredentials
	}
	token, err := resilience.ExecuteWithResult(ctx, r.group, func(s Source) (string, error) {
		return s.Token(ctx)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoCredentials, err)
	}
	return token, nil
}
