// Package errors builds errors that carry a component, a category and
// structured context, and feeds them to telemetry when reporting is
// active. It also re-exports the standard library helpers so callers
// need only one errors import.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

// ErrorCategory groups errors for telemetry and for IsCategory checks.
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryAlertStore    ErrorCategory = "alert-store"
	CategoryScheduling    ErrorCategory = "scheduling"
	CategoryDelivery      ErrorCategory = "delivery"
	CategoryAuthorization ErrorCategory = "authorization"
	CategoryDatabase      ErrorCategory = "database"
	CategoryNetwork       ErrorCategory = "network"
	CategoryState         ErrorCategory = "state"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryGeneric       ErrorCategory = "generic"
	CategorySystem        ErrorCategory = "system-resource"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryBroadcast     ErrorCategory = "broadcast"
)

// ComponentUnknown is reported when no component could be determined.
const ComponentUnknown = "unknown"

// EnhancedError is an error annotated with origin and context. It
// satisfies the event bus ErrorEvent contract so built errors can ride
// the bus into telemetry unchanged.
type EnhancedError struct {
	Err       error
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time

	component string
	detected  bool
	reported  bool
	mu        sync.RWMutex
}

func (e *EnhancedError) Error() string { return e.Err.Error() }

func (e *EnhancedError) Unwrap() error { return e.Err }

// Is matches two EnhancedErrors by category; other targets defer to
// the wrapped chain.
func (e *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return e.Category == other.Category
	}
	return Is(e.Err, target)
}

// GetComponent returns the originating component, resolving it from
// the recorded state or, for bare struct literals, from the registry
// on first call.
func (e *EnhancedError) GetComponent() string {
	e.mu.RLock()
	if e.detected || e.component != "" {
		component := e.component
		e.mu.RUnlock()
		return component
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.detected && e.component == "" {
		e.component = detectComponent()
		if e.component == "" {
			e.component = ComponentUnknown
		}
		e.detected = true
	}
	return e.component
}

// GetCategory returns the category as a string.
func (e *EnhancedError) GetCategory() string { return string(e.Category) }

// GetTimestamp returns when the error was built.
func (e *EnhancedError) GetTimestamp() time.Time { return e.Timestamp }

// GetError returns the wrapped error.
func (e *EnhancedError) GetError() error { return e.Err }

// GetMessage returns the wrapped error's message.
func (e *EnhancedError) GetMessage() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// GetContext returns a copy of the context map so consumers cannot
// mutate the error.
func (e *EnhancedError) GetContext() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.Context == nil {
		return nil
	}
	out := make(map[string]any, len(e.Context))
	maps.Copy(out, e.Context)
	return out
}

// MarkReported records that telemetry has handled this error.
func (e *EnhancedError) MarkReported() {
	e.mu.Lock()
	e.reported = true
	e.mu.Unlock()
}

// IsReported reports whether telemetry has handled this error.
func (e *EnhancedError) IsReported() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reported
}

// ErrorBuilder assembles an EnhancedError.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New starts a builder around an existing error.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf starts a builder around a fresh formatted error.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component names the originating component. Detected from the call
// stack when left empty and reporting is active.
func (b *ErrorBuilder) Component(component string) *ErrorBuilder {
	b.component = component
	return b
}

// Category sets the error category. Detected from the message when
// left empty and reporting is active.
func (b *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	b.category = category
	return b
}

// Context attaches one key of structured context.
func (b *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if b.context == nil {
		b.context = make(map[string]any)
	}
	b.context[key] = value
	return b
}

// Build finalizes the error. Component and category detection plus
// the telemetry hand-off only run while reporting is active, so the
// common no-reporting path stays cheap.
func (b *ErrorBuilder) Build() *EnhancedError {
	active := hasActiveReporting.Load()

	component := b.component
	category := b.category
	if active {
		if component == "" {
			component = detectComponent()
		}
		if category == "" {
			category = detectCategory(b.err, component)
		}
	}
	if component == "" {
		component = ComponentUnknown
	}
	if category == "" {
		category = CategoryGeneric
	}

	e := &EnhancedError{
		Err:       b.err,
		Category:  category,
		Context:   b.context,
		Timestamp: time.Now(),
		component: component,
		detected:  true,
	}
	if active {
		reportToTelemetry(e)
	}
	return e
}

// NewStd forwards to the standard library errors.New.
func NewStd(text string) error { return stderrors.New(text) }

// Is forwards to the standard library errors.Is.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As forwards to the standard library errors.As.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Unwrap forwards to the standard library errors.Unwrap.
func Unwrap(err error) error { return stderrors.Unwrap(err) }

// Join forwards to the standard library errors.Join.
func Join(errs ...error) error { return stderrors.Join(errs...) }

// IsCategory reports whether err wraps an EnhancedError of the given
// category.
func IsCategory(err error, category ErrorCategory) bool {
	var e *EnhancedError
	return As(err, &e) && e.Category == category
}

// IsNotFound reports whether err wraps a not-found EnhancedError.
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}
