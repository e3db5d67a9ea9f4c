// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package publish

import (
	"errors"
	"fmt"
)

// Stage names a step of the publish pipeline.
type Stage string

const (
	StageValidate          Stage = "validate"
	StageRender            Stage = "render"
	StageCreatePlaceholder Stage = "create_placeholder"
	StageSettle            Stage = "settle"
	StageBuildBody         Stage = "build_body"
	StagePatch             Stage = "patch"
	StageDone              Stage = "done"
)

// Failure kinds. Every *Error matches exactly one of these with errors.Is.
var (
	ErrInvalidRequest = errors.New("invalid publish request")
	ErrRenderFailure  = errors.New("render failure")
	ErrStoreFailure   = errors.New("store failure")
	ErrPatchFailure   = errors.New("patch failure")
)

// Error reports the stage a publish stopped at. PageID is set once a
// placeholder exists, so callers can locate the text-only page left behind.
type Error struct {
	Stage  Stage
	PageID string
	Err    error
}

func (e *Error) Error() string {
	if e.PageID != "" {
		return fmt.Sprintf("%s at %s (placeholder page %s): %v", e.Kind(), e.Stage, e.PageID, e.Err)
	}
	return fmt.Sprintf("%s at %s: %v", e.Kind(), e.Stage, e.Err)
}

// Unwrap exposes both the failure kind and the underlying cause.
func (e *Error) Unwrap() []error {
	return []error{e.Kind(), e.Err}
}

// Kind maps the stage to its failure sentinel. Anything after the placeholder
// exists is a patch failure because the page is left without its image.
func (e *Error) Kind() error {
	switch e.Stage {
	case StageValidate:
		return ErrInvalidRequest
	case StageRender:
		return ErrRenderFailure
	case StageCreatePlaceholder:
		return ErrStoreFailure
	default:
		return ErrPatchFailure
	}
}

func fail(stage Stage, pageID string, err error) *Error {
	return &Error{Stage: stage, PageID: pageID, Err: err}
}
