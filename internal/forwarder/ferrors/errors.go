// Package ferrors defines the forwarder's error taxonomy.
//
// Every failure the core can produce is one of a fixed set of Kinds.
// Callers compare against a Kind with errors.Is(err, ferrors.KindX) the
// same way the teacher compares against its ErrUserCommand* sentinels.
package ferrors

import (
	"errors"
	"fmt"
)

// Kind identifies one of the recoverable failure categories from the
// forwarder's error taxonomy. A Kind itself is a sentinel error, so
// errors.Is(err, KindDuplicateName) works directly against a wrapped
// *Error.
type Kind string

const (
	KindDuplicateName       Kind = "duplicate_name"
	KindNoCoveringMaster    Kind = "no_covering_master"
	KindBandwidthExceedsMax Kind = "bandwidth_exceeds_max"
	KindProtocolFailure     Kind = "protocol_failure"
	KindAnonymousChannel    Kind = "anonymous_channel"
	KindMissingFrequency    Kind = "missing_frequency"
	KindMissingBandwidth    Kind = "missing_bandwidth"
	KindFormatError         Kind = "format_error"
	KindAccessError         Kind = "access_error"
)

func (k Kind) Error() string {
	return string(k)
}

// Error is a taxonomy-tagged diagnostic. It wraps an optional
// underlying cause and always satisfies errors.Is against its Kind.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the Kind this error carries, so
// errors.Is(err, ferrors.KindDuplicateName) works without callers
// needing to know about *Error at all.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && e.Kind == k
}

// Is is the package-level convenience form of errors.Is(err, k),
// matching the way the teacher's errors.Is(err, ErrUserCommandX) reads
// at call sites, generalized from single sentinels to a taxonomy.
func Is(err error, k Kind) bool {
	return errors.Is(err, k)
}
