package gspeech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/robpineda/voiceonstudio/pkg/provider/stt"
)

type staticTokens struct {
	token string
	err   error
	calls int
}

func (s *staticTokens) Token(ctx context.Context) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}

func TestNew_RequiresTokenSource(t *testing.T) {
	t.Parallel()

	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil token source")
	}
}

func TestTranscribe_Success(t *testing.T) {
	t.Parallel()

	audio := []byte("fake-audio-bytes")
	var gotBody map[string]any
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		fmt.Fprint(w, `{
			"results": [
				{"alternatives": [{"transcript": "Hello world.", "confidence": 0.97, "words": [
					{"startTime": "0s", "endTime": "0.400s", "word": "Hello"},
					{"startTime": "0.420s", "endTime": "0.810s", "word": "world."}
				]}]},
				{"alternatives": [{"transcript": "Second part.", "words": [
					{"startTime": "1.200s", "endTime": "1.700s", "word": "Second"},
					{"startTime": "1.750s", "endTime": "2.300s", "word": "part."}
				]}]}
			]
		}`)
	}))
	defer srv.Close()

	tokens := &staticTokens{token: "test-token"}
	p, err := New(tokens, WithEndpoint(srv.URL), WithLanguage("en-US"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	transcript, err := p.Transcribe(context.Background(), stt.Request{Audio: audio})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer test-token")
	}

	config := gotBody["config"].(map[string]any)
	if config["languageCode"] != "en-US" {
		t.Errorf("languageCode = %v, want en-US", config["languageCode"])
	}
	if config["enableWordTimeOffsets"] != true {
		t.Error("enableWordTimeOffsets not set")
	}
	audioBody := gotBody["audio"].(map[string]any)
	if audioBody["content"] != base64.StdEncoding.EncodeToString(audio) {
		t.Error("audio content is not the base64 of the request audio")
	}

	if transcript.Text != "Hello world. Second part." {
		t.Errorf("Text = %q", transcript.Text)
	}
	if len(transcript.Words) != 4 {
		t.Fatalf("len(Words) = %d, want 4", len(transcript.Words))
	}
	if transcript.Words[0].Text != "Hello" || transcript.Words[0].End != 400*time.Millisecond {
		t.Errorf("Words[0] = %+v", transcript.Words[0])
	}
	if transcript.Words[3].Start != 1750*time.Millisecond {
		t.Errorf("Words[3].Start = %v", transcript.Words[3].Start)
	}
}

func TestTranscribe_EmptyResultsIsNotAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	p, err := New(&staticTokens{token: "t"}, WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	transcript, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte("silence")})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if transcript.Text != "" || len(transcript.Words) != 0 {
		t.Errorf("expected empty transcript, got %+v", transcript)
	}
}

func TestTranscribe_MalformedOffsetsDegradeToZero(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": [{"alternatives": [{"transcript": "hi", "words": [
			{"startTime": "bogus", "endTime": "", "word": "hi"}
		]}]}]}`)
	}))
	defer srv.Close()

	p, err := New(&staticTokens{token: "t"}, WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	transcript, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte("a")})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if transcript.Words[0].Start != 0 || transcript.Words[0].End != 0 {
		t.Errorf("expected zero offsets, got %+v", transcript.Words[0])
	}
}

func TestTranscribe_HTTPErrorIncludesStatusAndBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error": {"message": "permission denied"}}`)
	}))
	defer srv.Close()

	p, err := New(&staticTokens{token: "t"}, WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.Transcribe(context.Background(), stt.Request{Audio: []byte("a")})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"403", "permission denied"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestTranscribe_TokenFailureSkipsNetwork(t *testing.T) {
	t.Parallel()

	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	p, err := New(&staticTokens{err: fmt.Errorf("no credentials")}, WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte("a")}); err == nil {
		t.Fatal("expected error")
	}
	if requests != 0 {
		t.Errorf("expected no HTTP requests, got %d", requests)
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	t.Parallel()

	tokens := &staticTokens{token: "t"}
	p, err := New(tokens)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := p.Transcribe(context.Background(), stt.Request{}); err == nil {
		t.Fatal("expected error for empty audio")
	}
	if tokens.calls != 0 {
		t.Errorf("token source consulted %d times before validation", tokens.calls)
	}
}

func TestTranscribe_LanguageOverride(t *testing.T) {
	t.Parallel()

	var gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body recognizeRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotLang = body.Config.LanguageCode
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	p, err := New(&staticTokens{token: "t"}, WithEndpoint(srv.URL), WithLanguage("en-US"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte("a"), Language: "ja-JP"}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if gotLang != "ja-JP" {
		t.Errorf("languageCode = %q, want ja-JP", gotLang)
	}
}
