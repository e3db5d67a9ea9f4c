// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package publish

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gebl/onenote-diagram-server/internal/graph"
)

// DiagramRequest is one publishDiagram call.
type DiagramRequest struct {
	Title       string
	Markup      string
	ContainerID string
	Description string // optional; plain text, Markdown or HTML
}

// Page identifies a created page.
type Page struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Validate rejects requests that cannot enter the pipeline. ContainerID is
// normalized in place.
func (r *DiagramRequest) Validate() error {
	var errs []error
	if strings.TrimSpace(r.Title) == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if strings.TrimSpace(r.Markup) == "" {
		errs = append(errs, errors.New("markup is required"))
	}
	if strings.TrimSpace(r.ContainerID) == "" {
		errs = append(errs, errors.New("container ID is required"))
	} else {
		id, err := graph.SanitizeOneNoteID(r.ContainerID, "container ID")
		if err != nil {
			errs = append(errs, err)
		} else {
			r.ContainerID = id
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, errors.Join(errs...))
	}
	return nil
}
