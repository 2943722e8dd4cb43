// Package errors wraps the standard errors package with an error category
// taxonomy. Categories drive retry behavior at worker boundaries: validation
// errors are rejected, device and transport errors are retried with backoff,
// classifier absence degrades detection, persistence errors are retried on
// the caller's next natural schedule.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Category classifies an error for retry/handling decisions.
type Category string

const (
	// CategoryValidation marks malformed input. Never retried.
	CategoryValidation Category = "validation"
	// CategoryDevice marks a capture source that cannot be opened or read.
	// Retried indefinitely with backoff, never fatal.
	CategoryDevice Category = "device"
	// CategoryClassifier marks a missing or unloadable model. Detection
	// degrades to UNKNOWN instead of failing.
	CategoryClassifier Category = "classifier"
	// CategoryTransport marks a failed notification send. Logged as a failed
	// attempt and retried after the fail-retry backoff.
	CategoryTransport Category = "transport"
	// CategoryPersistence marks an unavailable event log. Propagated to the
	// caller, which retries on its next tick.
	CategoryPersistence Category = "persistence"
	// CategoryGeneric is the default for uncategorized errors.
	CategoryGeneric Category = "generic"
)

// EnhancedError carries a category and optional context alongside the
// underlying error.
type EnhancedError struct {
	Err      error
	Cat      Category
	ContextM map[string]any
}

func (e *EnhancedError) Error() string {
	if e.Err == nil {
		return string(e.Cat)
	}
	return e.Err.Error()
}

func (e *EnhancedError) Unwrap() error { return e.Err }

// GetCategory returns the error's category.
func (e *EnhancedError) GetCategory() Category { return e.Cat }

// GetContext returns a context value previously attached with Context.
func (e *EnhancedError) GetContext(key string) (any, bool) {
	v, ok := e.ContextM[key]
	return v, ok
}

// Builder assembles an EnhancedError fluently.
type Builder struct {
	err *EnhancedError
}

// New starts building an enhanced error around err. If err is already an
// EnhancedError its category and context are preserved unless overridden.
func New(err error) *Builder {
	var ee *EnhancedError
	if stderrors.As(err, &ee) {
		clone := &EnhancedError{Err: err, Cat: ee.Cat}
		if len(ee.ContextM) > 0 {
			clone.ContextM = make(map[string]any, len(ee.ContextM))
			for k, v := range ee.ContextM {
				clone.ContextM[k] = v
			}
		}
		return &Builder{err: clone}
	}
	return &Builder{err: &EnhancedError{Err: err, Cat: CategoryGeneric}}
}

// Newf starts building an enhanced error from a format string.
func Newf(format string, args ...any) *Builder {
	return New(fmt.Errorf(format, args...))
}

// Category sets the error category.
func (b *Builder) Category(cat Category) *Builder {
	b.err.Cat = cat
	return b
}

// Context attaches a key/value pair for diagnostics.
func (b *Builder) Context(key string, value any) *Builder {
	if b.err.ContextM == nil {
		b.err.ContextM = make(map[string]any)
	}
	b.err.ContextM[key] = value
	return b
}

// Build returns the assembled error.
func (b *Builder) Build() error { return b.err }

// IsCategory reports whether err (or anything it wraps) carries the given
// category.
func IsCategory(err error, cat Category) bool {
	var ee *EnhancedError
	if stderrors.As(err, &ee) {
		return ee.Cat == cat
	}
	return false
}

// CategoryOf returns the category of err, or CategoryGeneric when none is set.
func CategoryOf(err error) Category {
	var ee *EnhancedError
	if stderrors.As(err, &ee) {
		return ee.Cat
	}
	return CategoryGeneric
}

// Std library pass-throughs so callers need a single errors import.

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Join returns an error wrapping the given errors.
func Join(errs ...error) error { return stderrors.Join(errs...) }

// NewStd returns a plain sentinel error, like the standard errors.New.
func NewStd(text string) error { return stderrors.New(text) }

// ValidationError is shorthand for a validation-category error built from a
// message.
func ValidationError(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return New(stderrors.New(strings.TrimSpace(msg))).Category(CategoryValidation).Build()
}
