package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for the failure classes the storefront distinguishes.
// Every error produced at the API boundary wraps exactly one of these, so
// consumers can match with errors.Is instead of inspecting ad hoc fields.
var (
	ErrValidation          = errors.New("validation failed")
	ErrUnauthenticated     = errors.New("not signed in")
	ErrConnectivity        = errors.New("cannot reach server")
	ErrServer              = errors.New("server error")
	ErrGateway             = errors.New("payment gateway error")
	ErrConfirmationPending = errors.New("payment confirmation pending")
)

// AppError represents a structured storefront error. Status carries the HTTP
// status of the remote response when one was received, zero otherwise.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Validation creates a local validation error. No network call was made.
func Validation(message string) *AppError {
	return &AppError{
		Code:    "VALIDATION",
		Message: message,
		Err:     ErrValidation,
	}
}

// Unauthenticated creates an authentication error (missing or rejected credential).
func Unauthenticated(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHENTICATED",
		Message: message,
		Status:  401,
		Err:     ErrUnauthenticated,
	}
}

// Connectivity creates an error for a request that got no response at all.
func Connectivity(err error) *AppError {
	return &AppError{
		Code:    "CONNECTIVITY",
		Message: "cannot reach server",
		Err:     fmt.Errorf("%w: %w", ErrConnectivity, err),
	}
}

// Server creates an error for a non-2xx response. The message is the one
// extracted from the response body when present.
func Server(status int, message string) *AppError {
	if message == "" {
		message = fmt.Sprintf("server error %d", status)
	}
	return &AppError{
		Code:    "SERVER_ERROR",
		Message: message,
		Status:  status,
		Err:     ErrServer,
	}
}

// Gateway creates an error carrying the payment widget's failure message verbatim.
func Gateway(message string) *AppError {
	return &AppError{
		Code:    "GATEWAY_ERROR",
		Message: message,
		Err:     ErrGateway,
	}
}

// ConfirmationPending creates the post-charge confirmation failure: the charge
// succeeded but the server did not confirm the order. The caller must direct
// the user to order history instead of resubmitting payment.
func ConfirmationPending(orderID string) *AppError {
	return &AppError{
		Code:    "CONFIRMATION_PENDING",
		Message: fmt.Sprintf("payment went through but order %s could not be confirmed; check your order history before paying again", orderID),
		Err:     ErrConfirmationPending,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// IsUnauthenticated reports whether err is an authentication failure.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// IsConnectivity reports whether err means no response was received.
func IsConnectivity(err error) bool {
	return errors.Is(err, ErrConnectivity)
}

// IsConfirmationPending reports whether err is the post-charge confirmation failure.
func IsConfirmationPending(err error) bool {
	return errors.Is(err, ErrConfirmationPending)
}

// UserMessage returns the message suitable for display. Falls back to a
// generic message for errors that did not come through the API boundary.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "something went wrong"
}
