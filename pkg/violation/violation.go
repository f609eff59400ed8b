// Package violation defines the fatal error taxonomy of a collection pass.
//
// Every inconsistency the engine detects ends the pass. Callers tell the
// classes apart with errors.Is against the sentinels below, or errors.As
// into *Violation for the subject and detail.
package violation

import (
	"errors"
	"fmt"
)

// Kind classifies a violation.
type Kind int

const (
	// Residual means a Diff still held bits after every expected
	// contribution was subtracted.
	Residual Kind = iota
	// Shape means observed data did not have the form a classifier or
	// apply operation requires.
	Shape
	// Consistency means two observations or insertions of the same thing
	// disagree.
	Consistency
	// Exhausted means a sample key was never recorded, or was already
	// consumed.
	Exhausted
	// Missing means a dependency item was read before it was inserted.
	Missing
)

var kindNames = [...]string{
	Residual:    "residual bits",
	Shape:       "shape mismatch",
	Consistency: "consistency violation",
	Exhausted:   "store exhaustion",
	Missing:     "missing dependency",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Sentinels for errors.Is.
var (
	ErrResidual    = &Violation{Kind: Residual}
	ErrShape       = &Violation{Kind: Shape}
	ErrConsistency = &Violation{Kind: Consistency}
	ErrExhausted   = &Violation{Kind: Exhausted}
	ErrMissing     = &Violation{Kind: Missing}
)

// Violation is a fatal engine error.
type Violation struct {
	Kind    Kind
	Subject string // what was being processed, e.g. a sample key or item name
	Detail  string
}

func (v *Violation) Error() string {
	switch {
	case v.Subject == "" && v.Detail == "":
		return v.Kind.String()
	case v.Subject == "":
		return fmt.Sprintf("%s: %s", v.Kind, v.Detail)
	case v.Detail == "":
		return fmt.Sprintf("%s: %s", v.Kind, v.Subject)
	}
	return fmt.Sprintf("%s: %s: %s", v.Kind, v.Subject, v.Detail)
}

// Is reports whether target is a Violation of the same kind.
func (v *Violation) Is(target error) bool {
	t, ok := target.(*Violation)
	return ok && t.Kind == v.Kind
}

// New builds a violation with a formatted detail.
func New(kind Kind, subject, format string, args ...any) *Violation {
	return &Violation{Kind: kind, Subject: subject, Detail: fmt.Sprintf(format, args...)}
}

// Newf builds a subject-less violation.
func Newf(kind Kind, format string, args ...any) *Violation {
	return &Violation{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first Violation in err's chain.
func KindOf(err error) (Kind, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v.Kind, true
	}
	return 0, false
}

// Attach sets the subject of the Violation in err's chain when it has none.
// Lower layers report what went wrong; the caller knows what it was doing.
func Attach(err error, subject string) error {
	var v *Violation
	if errors.As(err, &v) && v.Subject == "" {
		v.Subject = subject
	}
	return err
}
