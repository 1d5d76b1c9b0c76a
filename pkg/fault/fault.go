// Package fault classifies the failures of an analysis run.
//
// Every backend wraps the error it receives from its SDK into an *Error
// carrying one of a small set of kinds. Callers test the kind with errors.Is
// against the sentinel values (ErrAuth, ErrNotFound, ...) and map it to a
// process exit status with ExitCode.
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of a failure
type Kind int

const (
	Unknown Kind = iota
	Usage
	Auth
	Permission
	NotFound
	Service
	Decode
)

func (k Kind) String() string {
	switch k {
	case Usage:
		return "UsageError"
	case Auth:
		return "AuthError"
	case Permission:
		return "PermissionError"
	case NotFound:
		return "NotFoundError"
	case Service:
		return "ServiceError"
	case Decode:
		return "DecodeError"
	default:
		return "Error"
	}
}

// Sentinels for errors.Is
var (
	ErrUsage      = &Error{Kind: Usage}
	ErrAuth       = &Error{Kind: Auth}
	ErrPermission = &Error{Kind: Permission}
	ErrNotFound   = &Error{Kind: NotFound}
	ErrService    = &Error{Kind: Service}
	ErrDecode     = &Error{Kind: Decode}
)

// Error is a classified failure. Code holds the upstream error code when the
// service returned one.
type Error struct {
	Kind Kind
	Op   string
	Code string
	Err  error
}

// New wraps err with a kind and the operation that failed
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Code == "" && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// CodeOf returns the upstream error code of err, if any
func CodeOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// ExitCode maps err to a process exit status
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case Usage:
		return 2
	case Auth:
		return 3
	case Permission:
		return 4
	case NotFound:
		return 5
	case Service:
		return 6
	case Decode:
		return 7
	default:
		return 1
	}
}

// Hint returns an operator hint for err, or an empty string
func Hint(err error) string {
	if CodeOf(err) == "InvalidS3ObjectException" {
		return "the vision service could not read the object; check that it is a supported image format and that the service can access the bucket"
	}
	switch KindOf(err) {
	case Auth:
		return "credentials were not found or were rejected; configure them with `aws configure --profile <name>`, AWS_PROFILE, or GOOGLE_APPLICATION_CREDENTIALS"
	case Permission:
		return "the credentials lack permission for this call; check the read permission on the bucket and access to the vision service"
	case NotFound:
		return "check the bucket name and object key"
	case Decode:
		return "the object is not an image in a supported format (jpg, png, gif, bmp, tiff, webp)"
	}
	return ""
}

// FromHTTPStatus classifies a failed HTTP exchange by its status code
func FromHTTPStatus(op string, status int, err error) error {
	kind := Service
	switch status {
	case http.StatusUnauthorized:
		kind = Auth
	case http.StatusForbidden:
		kind = Permission
	case http.StatusNotFound:
		kind = NotFound
	}
	return &Error{Kind: kind, Op: op, Code: http.StatusText(status), Err: err}
}
