package analysis

import "errors"

// Pipeline stage names used in [StageError] tags.
const (
	StageInput         = "input"
	StageAuth          = "auth"
	StageTranscription = "transcription"
	StageExtraction    = "extraction"
	StageFinalize      = "finalize"
)

// Sentinel errors classifying pipeline failures. Callers branch on these with
// [errors.Is] instead of matching message text.
var (
	// ErrInvalidInput marks a malformed caller request (e.g. empty audio).
	// Not retryable; the caller must fix the request.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAuth marks exhaustion of every credential resolution strategy.
	ErrAuth = errors.New("authentication failed")

	// ErrTranscription marks a transcription service transport failure or an
	// uninterpretable transcription response.
	ErrTranscription = errors.New("transcription failed")

	// ErrModelService marks a language-model service transport or HTTP
	// failure.
	ErrModelService = errors.New("model service failed")

	// ErrModelOutput marks a model response whose content is missing,
	// unparseable, or schema-invalid.
	ErrModelOutput = errors.New("model output invalid")

	// ErrNoSegments is returned by Finalize when called with zero segments.
	ErrNoSegments = errors.New("no segments to finalize")

	// ErrNotImplemented is returned by contract points reserved for future
	// work.
	ErrNotImplemented = errors.New("not implemented")
)

// StageError tags a pipeline failure with the stage at which it occurred.
// Because every stage is one-shot, the right user-facing remedy for any
// StageError is to retry the whole request.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}
