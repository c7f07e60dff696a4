package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/lmaocloud/cloudbrowser/pkg/protocol"
)

// Kind classifies a failed API operation.
type Kind int

const (
	// KindNetwork covers transport failures and timeouts.
	KindNetwork Kind = iota + 1
	// KindHTTP is a non-2xx response.
	KindHTTP
	// KindApplication is a 2xx response whose envelope code is not 200.
	KindApplication
	// KindValidation is rejected on the client before any request is made.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindApplication:
		return "application"
	case KindValidation:
		return "validation"
	}
	return "unknown"
}

// ErrUnauthorized matches any error caused by a 401 status or code.
var ErrUnauthorized = errors.New("unauthorized")

// Error is returned by every API operation that fails.
type Error struct {
	Op      string
	Kind    Kind
	Status  int    // HTTP status, 408 for timeouts, 0 for validation errors
	Code    int    // envelope code, or the status when the body carried none
	Message string // server message or a generic fallback
	Err     error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrUnauthorized) true for 401 failures.
func (e *Error) Is(target error) bool {
	if target == ErrUnauthorized {
		return e.Status == http.StatusUnauthorized || e.Code == protocol.CodeUnauthorized
	}
	return false
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return 0
}

// HasCode reports whether err is an application error with the given code.
func HasCode(err error, code int) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// Validation returns a client-side validation error.
func Validation(op, msg string) error {
	return &Error{Op: op, Kind: KindValidation, Message: msg}
}

func networkError(op string, err error, timeout bool) *Error {
	if timeout {
		return &Error{Op: op, Kind: KindNetwork, Status: http.StatusRequestTimeout, Code: http.StatusRequestTimeout, Message: "request timed out", Err: err}
	}
	return &Error{Op: op, Kind: KindNetwork, Message: "request failed", Err: err}
}

func httpError(op string, status int, env *protocol.Envelope) *Error {
	e := &Error{Op: op, Kind: KindHTTP, Status: status, Code: status, Message: http.StatusText(status)}
	if env != nil {
		if env.Code != 0 && env.Code != protocol.CodeOK {
			e.Code = env.Code
		}
		if msg := env.Text(); msg != "" {
			e.Message = msg
		}
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("server returned %d", status)
	}
	return e
}

func applicationError(op string, status int, env *protocol.Envelope) *Error {
	msg := env.Text()
	if msg == "" {
		msg = "request failed"
	}
	return &Error{Op: op, Kind: KindApplication, Status: status, Code: env.Code, Message: msg}
}
