package api

import (
	"fmt"
	"net/http"
)

// Kind is the closed set of failure classes a request can end in. Every
// fallible boundary constructs one of these explicitly; nothing else ever
// reaches the wire.
type Kind int

const (
	// KindValidation is a malformed request body. The inference function
	// is never invoked for these.
	KindValidation Kind = iota
	// KindNotReady means the model pair has not finished initializing.
	KindNotReady
	// KindInference is a failure inside the runtime's generation pass.
	KindInference
	// KindInternal is any other uncaught failure during handling.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotReady:
		return "not_ready"
	case KindInference:
		return "inference"
	default:
		return "internal"
	}
}

// Error carries a failure class, the message returned to the caller, and
// the underlying cause (logged, never serialized).
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Status maps the failure class onto its HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindNotReady:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func newNotReadyError() *Error {
	return &Error{Kind: KindNotReady, Message: "model is not ready"}
}

func newInferenceError(err error) *Error {
	return &Error{Kind: KindInference, Message: "inference failed", Err: err}
}

func newInternalError(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}
