// Package errors provides RFC 7807 Problem Details for the dispatch HTTP API.
package errors

import (
	"fmt"
	"net/http"
)

// ProblemDetail represents an RFC 7807 Problem Details response.
// See: https://www.rfc-editor.org/rfc/rfc7807
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// Extensions carries problem-specific members such as the order snapshot of an already served order.
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (p ProblemDetail) Error() string {
	if p.Detail != "" {
		return fmt.Sprintf("%s: %s", p.Title, p.Detail)
	}
	return p.Title
}

// WithDetail returns a copy with the given detail message.
func (p ProblemDetail) WithDetail(detail string) ProblemDetail {
	p.Detail = detail
	return p
}

// WithExtension returns a copy with an additional extension property.
func (p ProblemDetail) WithExtension(key string, value any) ProblemDetail {
	extensions := make(map[string]any, len(p.Extensions)+1)
	for k, v := range p.Extensions {
		extensions[k] = v
	}
	extensions[key] = value
	p.Extensions = extensions
	return p
}

// Problem types as URI references.
const (
	TypeValidation    = "/problems/validation-error"
	TypeNotFound      = "/problems/not-found"
	TypeAlreadyServed = "/problems/already-served"
	TypeOrderClosed   = "/problems/order-closed"
	TypeStoreMismatch = "/problems/store-mismatch"
	TypeTerminalBusy  = "/problems/terminal-busy"
	TypeConflict      = "/problems/conflict"
	TypeUnavailable   = "/problems/backend-unavailable"
	TypeInternal      = "/problems/internal-error"
)

var (
	ErrValidation = ProblemDetail{
		Type:   TypeValidation,
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
	}

	ErrNotFound = ProblemDetail{
		Type:   TypeNotFound,
		Title:  "Resource Not Found",
		Status: http.StatusNotFound,
	}

	// ErrAlreadyServed is distinct from not found so terminals can show a different message.
	ErrAlreadyServed = ProblemDetail{
		Type:   TypeAlreadyServed,
		Title:  "Order Already Served",
		Status: http.StatusConflict,
	}

	ErrOrderClosed = ProblemDetail{
		Type:   TypeOrderClosed,
		Title:  "Order Closed",
		Status: http.StatusConflict,
	}

	ErrStoreMismatch = ProblemDetail{
		Type:   TypeStoreMismatch,
		Title:  "Order Belongs To Another Store",
		Status: http.StatusForbidden,
	}

	ErrTerminalBusy = ProblemDetail{
		Type:   TypeTerminalBusy,
		Title:  "Terminal Busy",
		Status: http.StatusConflict,
	}

	ErrConflict = ProblemDetail{
		Type:   TypeConflict,
		Title:  "Conflict",
		Status: http.StatusConflict,
	}

	// ErrUnavailable reports lock contention that outlasted every retry.
	ErrUnavailable = ProblemDetail{
		Type:   TypeUnavailable,
		Title:  "Backend Temporarily Unavailable",
		Status: http.StatusServiceUnavailable,
	}

	ErrInternal = ProblemDetail{
		Type:   TypeInternal,
		Title:  "Internal Server Error",
		Status: http.StatusInternalServerError,
	}
)

// NewNotFoundProblem creates a not found error for a specific resource.
func NewNotFoundProblem(resourceType string, identifier any) ProblemDetail {
	return ErrNotFound.
		WithDetail(fmt.Sprintf("%s '%v' not found", resourceType, identifier)).
		WithExtension("resourceType", resourceType).
		WithExtension("identifier", identifier)
}
