package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_WrapAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(ErrorCodeNetwork, "gateway request failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrorCodeNetwork, GetErrorCode(err))
	assert.Contains(t, err.Error(), "GATEWAY_NETWORK")
	assert.Contains(t, err.Error(), "connection refused")

	// codes survive additional wrapping
	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, ErrorCodeNetwork, GetErrorCode(wrapped))
	assert.True(t, IsDomainError(wrapped, ErrorCodeNetwork))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewDomainError(ErrorCodeNetwork, "x")))
	assert.True(t, IsRetryable(NewDomainError(ErrorCodeTimeout, "x")))
	assert.True(t, IsRetryable(NewDomainError(ErrorCodeAPI, "x")))

	// validation failures are terminal
	assert.False(t, IsRetryable(ErrInvalidCPF))
	assert.False(t, IsRetryable(ErrInvalidEmail))
	assert.False(t, IsRetryable(ErrMerchantNotFound))
	assert.False(t, IsRetryable(NewDomainError(ErrorCodeUnauthorized, "x")))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(ErrInvalidCPF))
	assert.True(t, IsValidationError(ErrInvalidEmail))
	assert.False(t, IsValidationError(ErrMerchantNotFound))
	assert.False(t, IsValidationError(nil))
}

func TestWithDetail(t *testing.T) {
	err := NewDomainError(ErrorCodeCouponActivationFailed, "coupon activation failed").
		WithDetail("message", "already active")
	assert.Equal(t, "already active", err.Details["message"])
}
