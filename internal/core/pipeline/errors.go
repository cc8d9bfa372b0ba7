package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies job failures.
type Kind string

const (
	KindBusy         Kind = "Busy"
	KindInvalidInput Kind = "InvalidInput"
	KindAcquisition  Kind = "AcquisitionError"
	KindFormat       Kind = "FormatError"
	KindRecognition  Kind = "RecognitionError"
	KindIO           Kind = "IOError"
)

// Retryable reports whether submitting the same job again may succeed.
func (k Kind) Retryable() bool {
	switch k {
	case KindBusy, KindAcquisition, KindIO:
		return true
	}
	return false
}

// Stage names used in error messages and logs.
const (
	StageStart       = "start"
	StageAcquisition = "acquisition"
	StageSegment     = "segmentation"
	StageEngine      = "engine"
	StageRecognition = "recognition"
	StageCleanup     = "cleanup"
)

// Error is a job failure tagged with its kind and the stage it came from.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil && e.Stage == "":
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Stage)
	case e.Stage == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Stage, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the kind sentinels, so errors.Is(err, ErrBusy) works for any
// Busy error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Err != nil || t.Stage != "" {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrBusy         = &Error{Kind: KindBusy}
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
	ErrAcquisition  = &Error{Kind: KindAcquisition}
	ErrFormat       = &Error{Kind: KindFormat}
	ErrRecognition  = &Error{Kind: KindRecognition}
	ErrIO           = &Error{Kind: KindIO}
)

// KindOf returns the kind of a pipeline error, or "" for other errors.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func newError(kind Kind, stage string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}
