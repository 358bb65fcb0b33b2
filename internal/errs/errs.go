// Package errs defines typed errors with categories for user-facing reporting.
// Callers branch on Kind to tell an unreadable upload apart from a failing
// statement or a chat turn that arrived before any database was loaded.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// IO indicates a file could not be read or decoded.
	IO Kind = "io"
	// Normalization indicates the dialect pass failed.
	Normalization Kind = "normalization"
	// Query indicates a statement failed against the engine.
	Query Kind = "query"
	// NoDatabase indicates a question was asked before anything was loaded.
	NoDatabase Kind = "no_database"
	// UnsupportedFile indicates an upload with an unknown extension.
	UnsupportedFile Kind = "unsupported_file"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// Kinded is implemented by errors that know their own category.
type Kinded interface {
	ErrKind() Kind
}

// KindOf returns the category of the first error in the chain that has one.
// The empty Kind means the error is uncategorized.
func KindOf(err error) Kind {
	for err != nil {
		switch v := err.(type) {
		case *E:
			return v.Kind
		case Kinded:
			return v.ErrKind()
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
