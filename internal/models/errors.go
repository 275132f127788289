package models

import (
	"errors"
	"fmt"
)

// Stage identifies where in the orchestration state machine a query is,
// or where it terminally failed
type Stage string

const (
	StageReceived       Stage = "received"
	StageClassified     Stage = "classified"
	StageToolsDispatch  Stage = "tools_dispatched"
	StageToolsCompleted Stage = "tools_completed"
	StagePromptAssembly Stage = "prompt_assembled"
	StageGenerating     Stage = "generating"
	StageSynthesized    Stage = "synthesized"
	StageDone           Stage = "done"
	StageCancelled      Stage = "cancelled"
)

// ToolErrorKind categorizes tool client failures
type ToolErrorKind string

const (
	ToolErrTimeout      ToolErrorKind = "timeout"
	ToolErrUnavailable  ToolErrorKind = "unavailable"
	ToolErrAccessDenied ToolErrorKind = "access_denied"
	ToolErrMalformed    ToolErrorKind = "malformed"
)

// ToolError is a distinguishable tool client failure. It is never an empty
// result: the orchestrator uses the kind to decide whether a partial answer
// is still acceptable.
type ToolError struct {
	Tool  ToolKind
	Kind  ToolErrorKind
	Cause error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed (%s): %v", e.Tool, e.Kind, e.Cause)
}

func (e *ToolError) Unwrap() error { return e.Cause }

// ProviderErrorKind categorizes generation provider failures
type ProviderErrorKind string

const (
	ProviderErrTimeout       ProviderErrorKind = "timeout"
	ProviderErrTransport     ProviderErrorKind = "transport"
	ProviderErrInvalidOutput ProviderErrorKind = "invalid_output"
)

// ProviderError is one provider attempt failure, recorded on the attempt trail
type ProviderError struct {
	ProviderID string
	Kind       ProviderErrorKind
	Cause      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed (%s): %v", e.ProviderID, e.Kind, e.Cause)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// Failure is the single terminal error value the orchestrator returns.
// Cause is always safe to display: it never carries credentials, internal
// endpoints, or stack traces.
type Failure struct {
	Stage    Stage     `json:"stage"`
	Cause    string    `json:"cause"`
	Attempts []Attempt `json:"attempts,omitempty"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("query failed at %s: %s", f.Stage, f.Cause)
}

// NewFailure builds a Failure for a stage with a display-safe cause
func NewFailure(stage Stage, cause string) *Failure {
	return &Failure{Stage: stage, Cause: cause}
}

// AsFailure extracts a *Failure from an error chain, if present
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// ErrAllProvidersFailed is wrapped by the gateway when the whole chain is exhausted
var ErrAllProvidersFailed = errors.New("all providers failed")
