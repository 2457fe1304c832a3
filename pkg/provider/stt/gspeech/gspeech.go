// Package gspeech implements the stt.Provider interface using the Google
// Cloud Speech-to-Text v1 REST API (speech:recognize, synchronous
// recognition).
package gspeech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/robpineda/voiceonstudio/pkg/provider/stt"
	"github.com/robpineda/voiceonstudio/pkg/types"
)

const defaultEndpoint = "https://speech.googleapis.com/v1/speech:recognize"

// TokenSource supplies OAuth2 bearer tokens for the Speech API. A fresh token
// is requested per call; caching is the source's concern.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Provider implements stt.Provider backed by Google Cloud Speech-to-Text.
type Provider struct {
	endpoint string
	language string
	tokens   TokenSource
	client   *http.Client
}

var _ stt.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithEndpoint overrides the recognize endpoint URL. Useful for tests and
// regional endpoints.
func WithEndpoint(url string) Option {
	return func(p *Provider) {
		p.endpoint = url
	}
}

// WithLanguage sets the default recognition language (BCP-47 tag).
// Defaults to "en-US".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the HTTP client timeout. Defaults to 60 seconds; long
// takes can hold the synchronous recognize call open for a while.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.client.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.client = c
	}
}

// New creates a Google Speech-to-Text provider. tokens must not be nil.
func New(tokens TokenSource, opts ...Option) (*Provider, error) {
	if tokens == nil {
		return nil, fmt.Errorf("gspeech: token source is required")
	}
	p := &Provider{
		endpoint: defaultEndpoint,
		language: "en-US",
		tokens:   tokens,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type recognizeRequest struct {
	Config recognitionConfig `json:"config"`
	Audio  recognitionAudio  `json:"audio"`
}

type recognitionConfig struct {
	LanguageCode               string `json:"languageCode"`
	EnableWordTimeOffsets      bool   `json:"enableWordTimeOffsets"`
	EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
}

type recognitionAudio struct {
	Content string `json:"content"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				StartTime string `json:"startTime"`
				EndTime   string `json:"endTime"`
				Word      string `json:"word"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"results"`
}

// Transcribe implements stt.Provider. The audio payload is base64-encoded
// inline; the v1 synchronous API caps inline content at roughly one minute of
// audio, which covers a voice-acting take.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*types.Transcript, error) {
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("gspeech: audio is empty")
	}

	token, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("gspeech: obtaining access token: %w", err)
	}

	language := req.Language
	if language == "" {
		language = p.language
	}

	body, err := json.Marshal(recognizeRequest{
		Config: recognitionConfig{
			LanguageCode:               language,
			EnableWordTimeOffsets:      true,
			EnableAutomaticPunctuation: true,
		},
		Audio: recognitionAudio{
			Content: base64.StdEncoding.EncodeToString(req.Audio),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gspeech: encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gspeech: creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gspeech: sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("gspeech: reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gspeech: HTTP %d: %s", resp.StatusCode, excerpt(respBody))
	}

	var parsed recognizeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("gspeech: decoding response: %w", err)
	}

	return flatten(&parsed), nil
}

// flatten merges the first alternative of every result group into a single
// transcript. The API splits long audio into multiple results; concatenating
// them in order reconstructs the full take.
func flatten(resp *recognizeResponse) *types.Transcript {
	var (
		parts []string
		words []types.TimedWord
	)
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		alt := result.Alternatives[0]
		if alt.Transcript != "" {
			parts = append(parts, strings.TrimSpace(alt.Transcript))
		}
		for _, w := range alt.Words {
			words = append(words, types.TimedWord{
				Text:  w.Word,
				Start: parseOffset(w.StartTime),
				End:   parseOffset(w.EndTime),
			})
		}
	}
	return &types.Transcript{
		Text:  strings.Join(parts, " "),
		Words: words,
	}
}

// parseOffset converts the API's duration string ("12.340s") into a
// time.Duration. Malformed or absent offsets degrade to zero rather than
// failing the whole transcript.
func parseOffset(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

func excerpt(body []byte) string {
	const max = 512
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
