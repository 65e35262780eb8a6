package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPurchaseFailedError(t *testing.T) {
	err := NewPurchaseFailed("درگاه فعال نیست", -2)

	assert.Equal(t, "درگاه فعال نیست", err.Error())
	assert.Equal(t, -2, err.Code)
	assert.ErrorIs(t, err, ErrPurchaseFailed)
	assert.NotErrorIs(t, err, ErrInvalidPayment)

	wrapped := fmt.Errorf("checkout: %w", err)
	var target *PurchaseFailedError
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, -2, target.Code)
}

func TestInvalidPaymentError(t *testing.T) {
	err := NewInvalidPayment("تراکنش تایید نشد", 400)

	assert.Equal(t, "تراکنش تایید نشد", err.Error())
	assert.ErrorIs(t, err, ErrInvalidPayment)
	assert.NotErrorIs(t, err, ErrPurchaseFailed)
}

func TestTransportErrorsKeepCause(t *testing.T) {
	cause := errors.New("connection refused")

	purchaseErr := PurchaseTransportError("poolam", cause)
	assert.ErrorIs(t, purchaseErr, ErrPurchaseFailed)
	assert.ErrorIs(t, purchaseErr, cause)
	assert.Contains(t, purchaseErr.Error(), "connection refused")

	verifyErr := VerifyTransportError("poolam", cause)
	assert.ErrorIs(t, verifyErr, ErrInvalidPayment)
	assert.ErrorIs(t, verifyErr, cause)
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Driver: "poolam", Key: "merchantId", Reason: "is missing"}
	assert.Equal(t, "poolam: field 'merchantId' is missing", err.Error())
}

func TestStatusTable(t *testing.T) {
	table := NewStatusTable("unknown", map[int]string{
		1:  "ok",
		-1: "invalid",
	})

	assert.Equal(t, "ok", table.Message(1))
	assert.Equal(t, "invalid", table.Message(-1))
	assert.Equal(t, "unknown", table.Message(42))
	assert.True(t, table.Has(-1))
	assert.False(t, table.Has(42))
	assert.Equal(t, "unknown", table.Unknown())

	byName := NewStatusTable("fallback", map[string]string{"FAILED": "failed"})
	assert.Equal(t, "failed", byName.Message("FAILED"))
	assert.Equal(t, "fallback", byName.Message("EXPIRED"))
}

func TestMessageOr(t *testing.T) {
	assert.Equal(t, "gateway said no", MessageOr("gateway said no", "fallback"))
	assert.Equal(t, "fallback", MessageOr("", "fallback"))
}
