package gateway

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failures the gateway reports.
type Kind int

const (
	// KindValidation is raised before any network call.
	KindValidation Kind = iota + 1
	// KindAuthentication covers rejected credentials and failed requests.
	KindAuthentication
	// KindAuthorization means the credentials were good but the role is not accepted by the surface.
	KindAuthorization
	// KindSessionExpired follows a failed refresh. The session is already cleared.
	KindSessionExpired
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindSessionExpired:
		return "session expired"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is every error the gateway returns to callers.
type Error struct {
	Kind    Kind
	Message string            // safe to show to the user
	Fields  map[string]string // per-field messages, validation only
	Err     error             // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a gateway error, or zero for anything else.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return 0
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ErrSubmissionInFlight is wrapped in a validation error when a login or
// registration is attempted while another is still running.
var ErrSubmissionInFlight = errors.New("a sign-in request is already in progress")

const (
	msgInvalidCredentials = "Invalid email or password"
	msgRegistrationFailed = "Registration failed, please try again"
	msgSessionExpired     = "Your session has expired, please sign in again"
	msgInFlight           = "Please wait for the current request to finish"
)

func validationError(fields map[string]string, message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

func authenticationError(message string, cause error) *Error {
	return &Error{Kind: KindAuthentication, Message: message, Err: cause}
}

func sessionExpiredError(cause error) *Error {
	return &Error{Kind: KindSessionExpired, Message: msgSessionExpired, Err: cause}
}
