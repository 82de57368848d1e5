package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
	ErrorTypeUnavailable  ErrorType = "UNAVAILABLE"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeWebsiteNotFound     ErrorCode = "WEBSITE_NOT_FOUND"
	ErrCodeBankAccountNotFound ErrorCode = "BANK_ACCOUNT_NOT_FOUND"
	ErrCodePaymentNotFound     ErrorCode = "PAYMENT_NOT_FOUND"
	ErrCodeSmsNotFound         ErrorCode = "SMS_NOT_FOUND"
	ErrCodeOrderNotFound       ErrorCode = "ORDER_NOT_FOUND"
	ErrCodeUnmatchedNotFound   ErrorCode = "UNMATCHED_PAYMENT_NOT_FOUND"

	ErrCodeGatewayNotReady        ErrorCode = "GATEWAY_NOT_READY"
	ErrCodeSignatureInvalid       ErrorCode = "SIGNATURE_INVALID"
	ErrCodeTimestampSkew          ErrorCode = "TIMESTAMP_OUT_OF_RANGE"
	ErrCodeAllocationExhausted    ErrorCode = "ALLOCATION_EXHAUSTED"
	ErrCodeDuplicateMatch         ErrorCode = "DUPLICATE_MATCH"
	ErrCodeOrderNotPending        ErrorCode = "ORDER_NOT_PENDING"
	ErrCodeOrderNumberTaken       ErrorCode = "ORDER_NUMBER_TAKEN"
	ErrCodePaymentAlreadyResolved ErrorCode = "PAYMENT_ALREADY_RESOLVED"
	ErrCodeSiteNotReady           ErrorCode = "SITE_NOT_READY"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match sentinel errors against clones produced by
// WithCause and WithDetails.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewUnavailableError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnavailable,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

var (
	ErrWebsiteNotFound     = NewNotFoundError("Website not found", ErrCodeWebsiteNotFound)
	ErrBankAccountNotFound = NewNotFoundError("Bank account not found", ErrCodeBankAccountNotFound)
	ErrPaymentNotFound     = NewNotFoundError("Payment event not found", ErrCodePaymentNotFound)
	ErrSmsNotFound         = NewNotFoundError("SMS message not found", ErrCodeSmsNotFound)
	ErrOrderNotFound       = NewNotFoundError("Order not found", ErrCodeOrderNotFound)
	ErrUnmatchedNotFound   = NewNotFoundError("Unmatched payment not found", ErrCodeUnmatchedNotFound)

	// ErrGatewayNotReady is surfaced to the caller when dispatch is attempted
	// with no enabled receiving bank account.
	ErrGatewayNotReady = NewUnavailableError("No enabled receiving bank account; add one before dispatching payments", ErrCodeGatewayNotReady)

	ErrSignatureInvalid = NewUnauthorizedError("Webhook signature verification failed", ErrCodeSignatureInvalid)
	ErrTimestampSkew    = NewUnauthorizedError("Webhook timestamp outside the allowed window", ErrCodeTimestampSkew)
	ErrSiteNotReady     = NewUnavailableError("Order store is not accepting payments", ErrCodeSiteNotReady)
	ErrOrderNotPending  = NewConflictError("Order is not in pending status", ErrCodeOrderNotPending)
	ErrOrderNumberTaken = NewConflictError("Order number already exists", ErrCodeOrderNumberTaken)

	// ErrDuplicateMatch means more than one live order holds the same amount,
	// which the allocator should have made impossible. The payment is never
	// assigned to either order; an operator has to resolve it.
	ErrDuplicateMatch = NewConflictError("Multiple pending orders share this amount", ErrCodeDuplicateMatch)

	// ErrAllocationExhausted means the suffix space was exhausted even
	// after rebasing; practically unreachable outside synthetic load.
	ErrAllocationExhausted = NewConflictError("Could not allocate a unique amount for this order", ErrCodeAllocationExhausted)
)

func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
