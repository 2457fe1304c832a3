// Package server exposes the take-analysis pipeline over HTTP.
//
// The API is consumed by the browser UI and speaks JSON throughout:
//
//   - POST /api/analyze  — run the full pipeline on an uploaded take
//   - POST /api/finalize — order approved segments for cutting
//   - POST /api/export   — crop and combine (reserved, returns 501)
//
// Every response carries a request_id (a UUID) so a browser-side failure can
// be correlated with server logs.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/robpineda/voiceonstudio/internal/analysis"
	"github.com/robpineda/voiceonstudio/internal/observe"
	"github.com/robpineda/voiceonstudio/internal/scriptmatch"
	"github.com/robpineda/voiceonstudio/pkg/types"
)

// maxBodyBytes caps request bodies. The synchronous transcription API takes
// roughly a minute of inline audio, so generous but bounded.
const maxBodyBytes = 32 << 20

// Server handles the analysis HTTP API. Safe for concurrent use.
type Server struct {
	mu       sync.RWMutex
	analyzer *analysis.Analyzer
	scorer   *scriptmatch.Scorer
}

// New creates a Server. analyzer is required; scorer may be nil to disable
// script accuracy reporting.
func New(analyzer *analysis.Analyzer, scorer *scriptmatch.Scorer) (*Server, error) {
	if analyzer == nil {
		return nil, errors.New("server: analyzer is required")
	}
	return &Server{analyzer: analyzer, scorer: scorer}, nil
}

// UpdatePipeline swaps the analyzer and scorer used for subsequent requests.
// In-flight requests keep the pipeline they started with. Used for config
// hot-reload; a nil analyzer is ignored so a bad reload cannot take the
// server down.
func (s *Server) UpdatePipeline(analyzer *analysis.Analyzer, scorer *scriptmatch.Scorer) {
	if analyzer == nil {
		return
	}
	s.mu.Lock()
	s.analyzer = analyzer
	s.scorer = scorer
	s.mu.Unlock()
}

func (s *Server) pipeline() (*analysis.Analyzer, *scriptmatch.Scorer) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analyzer, s.scorer
}

// Register adds the API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/finalize", s.handleFinalize)
	mux.HandleFunc("POST /api/export", s.handleExport)
}

// analyzeRequest is the wire shape of an analysis request. Audio is
// base64-encoded by encoding/json's []byte convention.
type analyzeRequest struct {
	Audio    []byte `json:"audio"`
	Script   string `json:"script,omitempty"`
	Language string `json:"language,omitempty"`
}

type analyzeResponse struct {
	RequestID  string              `json:"request_id"`
	Segments   []types.Segment     `json:"segments"`
	Transcript string              `json:"transcript,omitempty"`
	Script     *scriptmatch.Report `json:"script_accuracy,omitempty"`
}

type errorResponse struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
	Stage     string `json:"stage,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-ID", requestID)
	log := observe.Logger(r.Context()).With(slog.String("request_id", requestID))

	var req analyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		log.Warn("rejecting malformed analyze request", "error", err)
		writeError(w, http.StatusBadRequest, requestID, "", "malformed request body: "+err.Error())
		return
	}

	analyzer, scorer := s.pipeline()
	result, err := analyzer.Analyze(r.Context(), analysis.Request{
		Audio:    req.Audio,
		Script:   req.Script,
		Language: req.Language,
	})
	if err != nil {
		stage := ""
		var stageErr *analysis.StageError
		if errors.As(err, &stageErr) {
			stage = stageErr.Stage
		}
		log.Error("analysis failed", "stage", stage, "error", err)
		writeError(w, statusFor(err), requestID, stage, err.Error())
		return
	}

	resp := analyzeResponse{
		RequestID:  requestID,
		Segments:   result.Segments,
		Transcript: result.Transcript,
	}
	if scorer != nil && req.Script != "" && result.Transcript != "" {
		resp.Script = scorer.Score(result.Transcript, req.Script)
	}
	log.Info("analysis succeeded", "segments", len(result.Segments))
	writeJSON(w, http.StatusOK, resp)
}

type finalizeRequest struct {
	Segments []types.Segment `json:"segments"`
}

type finalizeResponse struct {
	RequestID string          `json:"request_id"`
	Segments  []types.Segment `json:"segments"`
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-ID", requestID)

	var req finalizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, requestID, "", "malformed request body: "+err.Error())
		return
	}

	ordered, err := analysis.Finalize(req.Segments)
	if err != nil {
		stage := ""
		var stageErr *analysis.StageError
		if errors.As(err, &stageErr) {
			stage = stageErr.Stage
		}
		writeError(w, statusFor(err), requestID, stage, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, finalizeResponse{RequestID: requestID, Segments: ordered})
}

type exportRequest struct {
	Audio    []byte          `json:"audio"`
	Segments []types.Segment `json:"segments"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-ID", requestID)

	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, requestID, "", "malformed request body: "+err.Error())
		return
	}

	if _, err := analysis.CropAndCombine(r.Context(), req.Audio, req.Segments); err != nil {
		writeError(w, statusFor(err), requestID, "", err.Error())
		return
	}
}

// statusFor maps the analysis error taxonomy onto HTTP statuses. Caller
// faults are 4xx; upstream service faults surface as 502 so the UI can say
// "try again" rather than blaming the user.
func statusFor(err error) int {
	switch {
	case errors.Is(err, analysis.ErrInvalidInput), errors.Is(err, analysis.ErrNoSegments):
		return http.StatusBadRequest
	case errors.Is(err, analysis.ErrAuth),
		errors.Is(err, analysis.ErrTranscription),
		errors.Is(err, analysis.ErrModelService),
		errors.Is(err, analysis.ErrModelOutput):
		return http.StatusBadGateway
	case errors.Is(err, analysis.ErrNotImplemented):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeError(w http.ResponseWriter, status int, requestID, stage, msg string) {
	writeJSON(w, status, errorResponse{RequestID: requestID, Error: msg, Stage: stage})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}
