package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the category of a translation error.
type ErrorKind string

const (
	// ErrorKindMalformedLine indicates a CCDL grammar violation.
	ErrorKindMalformedLine ErrorKind = "malformed_line"

	// ErrorKindUnknownIntervention indicates an intervention name absent
	// from the registry.
	ErrorKindUnknownIntervention ErrorKind = "unknown_intervention"

	// ErrorKindUnknownTrigger indicates an empty or unresolvable trigger
	// signal or delay distribution keyword.
	ErrorKindUnknownTrigger ErrorKind = "unknown_trigger_or_distribution"

	// ErrorKindTargetingRange indicates out-of-bounds coverage, ages, or
	// probabilities.
	ErrorKindTargetingRange ErrorKind = "targeting_range"

	// ErrorKindUnsupportedConstruct indicates a campaign shape outside the
	// supported subset.
	ErrorKindUnsupportedConstruct ErrorKind = "unsupported_construct"
)

// TranslationError is the canonical error for both translation directions.
// Line is the 1-based CCDL line number, Event the 0-based coordinator index;
// either is -1 when it does not apply. Fragment carries the offending raw
// input.
type TranslationError struct {
	Kind     ErrorKind
	Message  string
	Line     int
	Event    int
	Fragment string
}

// Error implements the error interface.
func (e *TranslationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Message)
	if e.Line >= 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	if e.Event >= 0 {
		fmt.Fprintf(&b, " (event %d)", e.Event)
	}
	if e.Fragment != "" {
		fmt.Fprintf(&b, ": %q", e.Fragment)
	}
	return b.String()
}

// NewTranslationError creates an error of the given kind with no location
// attached.
func NewTranslationError(kind ErrorKind, message string) *TranslationError {
	return &TranslationError{Kind: kind, Message: message, Line: -1, Event: -1}
}

// WithLine attaches a 1-based CCDL line number.
func (e *TranslationError) WithLine(line int) *TranslationError {
	e.Line = line
	return e
}

// WithEvent attaches a 0-based coordinator index.
func (e *TranslationError) WithEvent(index int) *TranslationError {
	e.Event = index
	return e
}

// WithFragment attaches the offending raw input.
func (e *TranslationError) WithFragment(fragment string) *TranslationError {
	e.Fragment = fragment
	return e
}

// IsKind reports whether err is a TranslationError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var terr *TranslationError
	return errors.As(err, &terr) && terr.Kind == kind
}

// ErrMalformedLine creates a grammar-violation error.
func ErrMalformedLine(message string) *TranslationError {
	return NewTranslationError(ErrorKindMalformedLine, message)
}

// ErrUnknownIntervention creates an error for a name missing from the
// registry.
func ErrUnknownIntervention(name string) *TranslationError {
	return NewTranslationError(ErrorKindUnknownIntervention,
		fmt.Sprintf("intervention %q is not in the registry", name)).WithFragment(name)
}

// ErrUnknownTrigger creates an error for an unresolvable trigger signal.
func ErrUnknownTrigger(message string) *TranslationError {
	return NewTranslationError(ErrorKindUnknownTrigger, message)
}

// ErrUnknownDistribution creates an error for an unknown delay distribution
// keyword.
func ErrUnknownDistribution(keyword string) *TranslationError {
	return NewTranslationError(ErrorKindUnknownTrigger,
		fmt.Sprintf("unknown delay distribution %q", keyword)).WithFragment(keyword)
}

// ErrTargetingRange creates an out-of-bounds error.
func ErrTargetingRange(message string) *TranslationError {
	return NewTranslationError(ErrorKindTargetingRange, message)
}

// ErrUnsupportedConstruct creates an error for a campaign shape outside the
// supported subset.
func ErrUnsupportedConstruct(message string) *TranslationError {
	return NewTranslationError(ErrorKindUnsupportedConstruct, message)
}

// Diagnostics accumulates every error and warning found during a run so a
// single pass can report all of them, not just the first.
type Diagnostics struct {
	Errors   []*TranslationError
	Warnings []*TranslationError
}

// AddError records a fatal finding.
func (d *Diagnostics) AddError(err *TranslationError) {
	d.Errors = append(d.Errors, err)
}

// AddWarning records a non-fatal finding.
func (d *Diagnostics) AddWarning(err *TranslationError) {
	d.Warnings = append(d.Warnings, err)
}

// HasErrors reports whether any fatal finding was recorded.
func (d *Diagnostics) HasErrors() bool {
	return len(d.Errors) > 0
}

// Err returns an error summarizing every fatal finding, or nil if none were
// recorded.
func (d *Diagnostics) Err() error {
	if len(d.Errors) == 0 {
		return nil
	}
	msgs := make([]string, len(d.Errors))
	for i, e := range d.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%d error(s):\n%s", len(d.Errors), strings.Join(msgs, "\n"))
}
