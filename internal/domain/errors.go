package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Validation errors (rejected locally, never reach the gateway)
	ErrorCodeValidationCPF    ErrorCode = "VALIDATION_CPF"
	ErrorCodeValidationEmail  ErrorCode = "VALIDATION_EMAIL"
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Transport errors (GATEWAY_*)
	ErrorCodeNetwork      ErrorCode = "GATEWAY_NETWORK"
	ErrorCodeTimeout      ErrorCode = "GATEWAY_TIMEOUT"
	ErrorCodeUnauthorized ErrorCode = "GATEWAY_UNAUTHORIZED"
	ErrorCodeAPI          ErrorCode = "GATEWAY_API_ERROR"

	// Merchant errors (MERCHANT_*)
	ErrorCodeMerchantNotFound ErrorCode = "MERCHANT_NOT_FOUND"

	// User errors (USER_*)
	ErrorCodeUserCreateFailed ErrorCode = "USER_CREATE_FAILED"

	// Coupon errors (COUPON_*)
	ErrorCodeCouponFetchFailed      ErrorCode = "COUPON_FETCH_FAILED"
	ErrorCodeCouponActivationDenied ErrorCode = "COUPON_ACTIVATION_DENIED"
	ErrorCodeCouponActivationFailed ErrorCode = "COUPON_ACTIVATION_FAILED"

	// Payment errors (PAYMENT_*)
	ErrorCodePaymentCreateFailed ErrorCode = "PAYMENT_CREATE_FAILED"
	ErrorCodePaymentStatusFailed ErrorCode = "PAYMENT_STATUS_FAILED"

	// Internal errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsValidationError checks if an error was rejected locally before any
// network call
func IsValidationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeValidationCPF ||
		code == ErrorCodeValidationEmail ||
		code == ErrorCodeValidationFailed
}

// IsRetryable reports whether a gateway call that produced this error may be
// attempted again. Validation failures and unknown merchants never are.
func IsRetryable(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeNetwork, ErrorCodeTimeout, ErrorCodeAPI:
		return true
	default:
		return false
	}
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	return GetErrorCode(err) == ErrorCodeMerchantNotFound
}

// Common domain errors
var (
	ErrInvalidCPF   = NewDomainError(ErrorCodeValidationCPF, "invalid CPF")
	ErrInvalidEmail = NewDomainError(ErrorCodeValidationEmail, "invalid email address")

	ErrMerchantNotFound = NewDomainError(ErrorCodeMerchantNotFound, "merchant not found")

	ErrActivationDenied = NewDomainError(ErrorCodeCouponActivationDenied, "a coupon from this program was already activated today")
	ErrActivationFailed = NewDomainError(ErrorCodeCouponActivationFailed, "coupon activation failed")

	ErrPaymentCreateFailed = NewDomainError(ErrorCodePaymentCreateFailed, "payment creation failed")
)
