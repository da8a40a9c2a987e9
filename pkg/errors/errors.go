package errors

import (
	"errors"
	"fmt"
)

// AppError represents an application-level error with a stable code
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeUnsupportedChain     = "unsupported_chain"
	ErrCodePairingFailure       = "pairing_failure"
	ErrCodeNamespaceNegotiation = "namespace_negotiation_failure"
	ErrCodeSigningFailure       = "signing_failure"
	ErrCodeStaleCorrelation     = "stale_correlation"
	ErrCodeNotifierUnavailable  = "notifier_unavailable"
	ErrCodeRequestExpired       = "request_expired"
	ErrCodeBadRequest           = "bad_request"
	ErrCodeInternalError        = "internal_error"
)

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewWithDetail creates a new AppError with additional detail
func NewWithDetail(code, message, detail string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Detail:  detail,
	}
}

// UnsupportedChain creates an unsupported chain error
func UnsupportedChain(detail string) *AppError {
	return &AppError{
		Code:    ErrCodeUnsupportedChain,
		Message: "Chain is not supported",
		Detail:  detail,
	}
}

// PairingFailure creates a pairing failure error
func PairingFailure(detail string) *AppError {
	return &AppError{
		Code:    ErrCodePairingFailure,
		Message: "WalletConnect pairing failed",
		Detail:  detail,
	}
}

// NamespaceNegotiation creates a namespace negotiation failure error
func NamespaceNegotiation(detail string) *AppError {
	return &AppError{
		Code:    ErrCodeNamespaceNegotiation,
		Message: "No overlap between requested and supported chains",
		Detail:  detail,
	}
}

// SigningFailure creates a signing failure error
func SigningFailure(detail string) *AppError {
	return &AppError{
		Code:    ErrCodeSigningFailure,
		Message: "Signing operation failed",
		Detail:  detail,
	}
}

// NotifierUnavailable creates a notifier unavailable error
func NotifierUnavailable(detail string) *AppError {
	return &AppError{
		Code:    ErrCodeNotifierUnavailable,
		Message: "Chat transport unavailable",
		Detail:  detail,
	}
}

// RequestExpired creates a request expired error
func RequestExpired(detail string) *AppError {
	return &AppError{
		Code:    ErrCodeRequestExpired,
		Message: "Request expired before a decision was made",
		Detail:  detail,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err is an AppError carrying the given code
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
