package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for the authentication and approval flows.
var (
	ErrDuplicateIdentity    = New("DUPLICATE_IDENTITY", http.StatusConflict, "identity number already registered")
	ErrUnsupportedDevice    = New("UNSUPPORTED_DEVICE", http.StatusBadRequest, "device does not support platform authenticators")
	ErrUserCancelled        = New("USER_CANCELLED", http.StatusBadRequest, "authenticator prompt cancelled or denied")
	ErrBiometricNotEnrolled = New("BIOMETRIC_NOT_ENROLLED", http.StatusConflict, "account has no registered biometric key")
	ErrIdentityNotFound     = New("IDENTITY_NOT_FOUND", http.StatusNotFound, "identity not found")
	ErrVerificationFailed   = New("VERIFICATION_FAILED", http.StatusUnauthorized, "assertion verification failed")
	ErrChallengeExpired     = New("CHALLENGE_EXPIRED", http.StatusUnauthorized, "challenge expired or already used")
	ErrPersistence          = New("PERSISTENCE_ERROR", http.StatusInternalServerError, "failed to persist record")
	ErrProfileMissing       = New("PROFILE_MISSING", http.StatusUnauthorized, "profile record no longer exists")
	ErrPendingApproval      = New("PENDING_APPROVAL", http.StatusForbidden, "account is awaiting admin verification")
	ErrInvalidCredentials   = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrNotFound             = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden            = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized         = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict             = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation           = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal             = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Is reports whether err carries the same code as target.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code == target.Code
	}
	return false
}
