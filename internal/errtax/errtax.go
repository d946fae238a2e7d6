// Package errtax classifies errors the scheduler sees into the taxonomy
// spec'd for the orchestrator: validation, transient-external,
// permanent-external, domain, and internal-invariant. Classification drives
// retry-vs-fail-vs-skip decisions without string matching on error text.
package errtax

import "errors"

// Class is one of the five error categories the scheduler reasons about.
type Class int

const (
	// ClassUnknown is the default for an error with no attached class;
	// the scheduler treats it like a domain error (surfaced, not retried).
	ClassUnknown Class = iota
	ClassValidation
	ClassTransient
	ClassPermanent
	ClassDomain
	ClassInternal
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	case ClassDomain:
		return "domain"
	case ClassInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// classified wraps an error with its taxonomy class.
type classified struct {
	class Class
	err   error
}

func (c *classified) Error() string { return c.err.Error() }
func (c *classified) Unwrap() error { return c.err }

// Wrap attaches class to err. Wrapping nil returns nil.
func Wrap(class Class, err error) error {
	if err == nil {
		return nil
	}
	return &classified{class: class, err: err}
}

// Transient marks err as retryable by the scheduler's backoff loop.
func Transient(err error) error { return Wrap(ClassTransient, err) }

// Permanent marks err as not retryable.
func Permanent(err error) error { return Wrap(ClassPermanent, err) }

// Domain marks err as a user-surfacing stage failure.
func Domain(err error) error { return Wrap(ClassDomain, err) }

// Internal marks err as a bug (missing handler, dependency, or plan).
func Internal(err error) error { return Wrap(ClassInternal, err) }

// Validation marks err as a submission-time rejection.
func Validation(err error) error { return Wrap(ClassValidation, err) }

// ClassOf extracts the class attached to err via Wrap, walking the Unwrap
// chain. An error with no attached class reports ClassUnknown.
func ClassOf(err error) Class {
	var c *classified
	if errors.As(err, &c) {
		return c.class
	}
	return ClassUnknown
}

// Retryable reports whether the scheduler should retry a handler that
// returned err, per spec.md §7: only transient errors are retried; an
// unclassified error is treated as domain (not retried), matching handlers
// that haven't been taught to classify their own failures yet.
func Retryable(err error) bool {
	return ClassOf(err) == ClassTransient
}
