package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for the lifecycle surface.
var (
	// ErrNotFound means the requested alert or configuration does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotRecipient means the acting user is not the alert's recipient.
	ErrNotRecipient = errors.New("actor is not the alert recipient")
)

// ValidationError reports configuration fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, f := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e.Fields[f]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// TransientError wraps a datastore failure the caller may retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient store error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}
