package model

import (
	"errors"
	"fmt"
)

// ErrUnknownValue is returned when an enum field holds a value outside its
// closed set.
var ErrUnknownValue = errors.New("unknown value")

// WarningKind classifies non-fatal problems found while analyzing a snapshot.
type WarningKind int

// Warning kinds.
const (
	// MissingReference marks a dependency or resource id that does not
	// resolve. The affected edge or requirement is skipped.
	MissingReference WarningKind = iota
	// InvalidDateRange marks an entity with unset or inverted dates. It is
	// excluded from date-based calculations.
	InvalidDateRange
	// ClampedValue marks a negative quantity that was treated as zero.
	ClampedValue
)

// String returns a short name for the kind.
func (k WarningKind) String() string {
	switch k {
	case MissingReference:
		return "missing-reference"
	case InvalidDateRange:
		return "invalid-date-range"
	case ClampedValue:
		return "clamped-value"
	}
	return fmt.Sprintf("WarningKind(%d)", int(k))
}

// Warning is a soft error returned alongside a partial result.
type Warning struct {
	Kind    WarningKind
	Subject string // id of the task, project or resource being processed
	Ref     string // the unresolved or offending value, if any
	Message string
}

// String formats the warning as "kind: subject (ref): message".
func (w Warning) String() string {
	if w.Ref != "" {
		return fmt.Sprintf("%s: %s (%s): %s", w.Kind, w.Subject, w.Ref, w.Message)
	}
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Subject, w.Message)
}

// Warnings accumulates soft errors. The zero value is ready to use.
type Warnings struct {
	list []Warning
}

// Add records a warning.
func (ws *Warnings) Add(kind WarningKind, subject, ref, format string, args ...any) {
	ws.list = append(ws.list, Warning{
		Kind:    kind,
		Subject: subject,
		Ref:     ref,
		Message: fmt.Sprintf(format, args...),
	})
}

// Merge appends all warnings from other.
func (ws *Warnings) Merge(other []Warning) {
	ws.list = append(ws.list, other...)
}

// List returns the accumulated warnings in insertion order.
func (ws *Warnings) List() []Warning {
	return ws.list
}
