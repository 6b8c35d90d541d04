package bridge

import (
	"errors"
	"fmt"

	"github.com/openai/openai-go"
)

// Validation errors are surfaced before any remote call is attempted.
var (
	ErrEmptyPrompt   = errors.New("prompt must not be empty")
	ErrNoTextContent = errors.New("no text response found in assistant reply")
)

// PathError reports a caller-supplied path that resolves outside the
// working directory.
type PathError struct {
	Path string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("path %q resolves outside the working directory", e.Path)
}

// ImageTypeError reports a local image path with an unsupported extension.
type ImageTypeError struct {
	Path string
}

func (e *ImageTypeError) Error() string {
	return fmt.Sprintf("unsupported image extension for %q (allowed: png, jpg, jpeg, gif, webp)", e.Path)
}

// RunFailureError reports a run that ended in a terminal failure state.
// Code and Message carry the run's last_error payload when present.
type RunFailureError struct {
	Status  openai.RunStatus
	Code    string
	Message string
}

func (e *RunFailureError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("run ended with status %s: %s (%s)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("run ended with status %s", e.Status)
}

// TimeoutError reports a poll budget exhausted without a terminal state.
type TimeoutError struct {
	LastStatus openai.RunStatus
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("run polling timed out, last observed status: %s", e.LastStatus)
}
