package domain

import (
	"errors"
	"fmt"
)

// Stage kinds. A failed run wraps exactly one of them.
var (
	ErrConfig    = errors.New("configuration error")
	ErrPackaging = errors.New("packaging error")
	ErrAuth      = errors.New("authentication error")
	ErrUpload    = errors.New("upload error")
	ErrList      = errors.New("list error")
	ErrDelete    = errors.New("delete error")
)

// Collaborator kinds returned by RemoteStore and Packager implementations.
var (
	ErrNotFound     = errors.New("not found")
	ErrTransient    = errors.New("transient failure")
	ErrPathNotFound = errors.New("path not found")
)

// StageError ties a failure to the target and stage it happened in.
type StageError struct {
	Target string
	Stage  Stage
	Kind   error
	Err    error
}

func NewStageError(target string, stage Stage, kind, err error) *StageError {
	return &StageError{Target: target, Stage: stage, Kind: kind, Err: err}
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s: %v", e.Target, e.Stage, e.Kind)
	}
	return fmt.Sprintf("[%s] %s: %v: %v", e.Target, e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
