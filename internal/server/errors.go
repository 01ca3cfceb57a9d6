// Package server provides the HTTP API for starting and following course generation runs.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/course-builder/internal/llm"
	"github.com/jonathan/course-builder/internal/pipeline"
	"github.com/jonathan/course-builder/internal/stage"
	"github.com/jonathan/course-builder/internal/store"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNotFound indicates a missing resource
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrConflict indicates the resource is in the wrong state for the request
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation *ErrValidation
		notFound   *ErrNotFound
		conflict   *ErrConflict
		genFailed  *stage.GenerationFailed
		genErr     *llm.GenerationError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound),
		errors.Is(err, pipeline.ErrRunNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrShuttingDown):
		return http.StatusServiceUnavailable
	case errors.Is(err, stage.ErrMissingInput):
		return http.StatusBadRequest
	case errors.As(err, &genFailed), errors.As(err, &genErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
