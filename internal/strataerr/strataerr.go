// Package strataerr defines the request-level error kinds surfaced to the
// HTTP collaborator. Row-level issues (parse failures, DQ violations,
// filtered rows) are never represented here — they are counted and
// sampled by internal/planner instead.
package strataerr

import "fmt"

// Kind classifies a request-level failure.
type Kind string

const (
	InvalidRequest         Kind = "InvalidRequest"
	MappingSchemaMismatch  Kind = "MappingSchemaMismatch"
	UnknownTargetType      Kind = "UnknownTargetType"
	UnsupportedCast        Kind = "UnsupportedCast"
	UnsupportedFunction    Kind = "UnsupportedFunction"
	MissingArgument        Kind = "MissingArgument"
	IoError                Kind = "IoError"
	ExternalToolError      Kind = "ExternalToolError"
	NotImplemented         Kind = "NotImplemented"
)

// Error is a typed, wrapped request-level failure.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf builds an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error carrying an underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Wrapf builds an Error carrying an underlying cause, with a formatted
// message.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// As reports whether the first *Error in err's Unwrap chain (err itself
// included) has the given kind. A *Error wrapped inside another *Error is
// not inspected.
func As(err error, kind Kind) bool {
	var se *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			se = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return se != nil && se.Kind == kind
}
