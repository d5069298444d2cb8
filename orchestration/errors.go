package orchestration

import (
	"errors"
	"fmt"
)

// Configuration errors, returned at construction.
var (
	ErrStructuredOutputUnsupported = errors.New("model does not support structured output")
	ErrResponseFormatConflict      = errors.New("settings already carry a response format")
	ErrMissingDescription          = errors.New("all members must have a description")
	ErrInvalidTask                 = errors.New("task must be a non-empty chat message")
	ErrInvalidLimit                = errors.New("invalid limit")
	ErrNoMembers                   = errors.New("at least one member is required")
	ErrDuplicateMember             = errors.New("duplicate member name")
)

// Protocol and state errors, returned at the point of violation.
var (
	ErrNoTaskLedger          = errors.New("no task ledger to update; plan has not run")
	ErrUnknownSpeaker        = errors.New("unknown speaker")
	ErrNotStarted            = errors.New("orchestration has not started")
	ErrAlreadyStarted        = errors.New("orchestration already started")
	ErrInvalidProgressLedger = errors.New("invalid progress ledger")
	ErrPanic                 = errors.New("panic in actor handler")
)

// UnknownSpeakerError names the participant the progress ledger selected.
type UnknownSpeakerError struct {
	Name string
}

func (e *UnknownSpeakerError) Error() string {
	return fmt.Sprintf("unknown speaker: %s", e.Name)
}

func (e *UnknownSpeakerError) Unwrap() error { return ErrUnknownSpeaker }
