package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrPurchaseFailed matches every *PurchaseFailedError through errors.Is
	ErrPurchaseFailed = errors.New("purchase failed")

	// ErrInvalidPayment matches every *InvalidPaymentError through errors.Is
	ErrInvalidPayment = errors.New("invalid payment")

	ErrTransactionIDMissing    = errors.New("invoice has no transaction id, purchase first")
	ErrTransactionIDAlreadySet = errors.New("invoice transaction id is already set")
	ErrTransactionIDEmpty      = errors.New("transaction id cannot be empty")
	ErrMissingCallbackParam    = errors.New("missing callback parameter")
	ErrDriverNotRegistered     = errors.New("not registered")
)

// PurchaseFailedError is returned when the gateway rejects or cannot process
// a purchase. Code is the gateway status when one was supplied.
type PurchaseFailedError struct {
	Message string
	Code    int
	Err     error
}

func (e *PurchaseFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *PurchaseFailedError) Unwrap() error {
	return e.Err
}

func (e *PurchaseFailedError) Is(target error) bool {
	return target == ErrPurchaseFailed
}

// InvalidPaymentError is returned when verification shows the payment did not
// complete. Code is the gateway status, 0 when none was supplied.
type InvalidPaymentError struct {
	Message string
	Code    int
	Err     error
}

func (e *InvalidPaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *InvalidPaymentError) Unwrap() error {
	return e.Err
}

func (e *InvalidPaymentError) Is(target error) bool {
	return target == ErrInvalidPayment
}

// NewPurchaseFailed creates a purchase failure
func NewPurchaseFailed(message string, code int) *PurchaseFailedError {
	return &PurchaseFailedError{Message: message, Code: code}
}

// NewInvalidPayment creates a verification failure
func NewInvalidPayment(message string, code int) *InvalidPaymentError {
	return &InvalidPaymentError{Message: message, Code: code}
}

// PurchaseTransportError wraps a transport failure during purchase
func PurchaseTransportError(driver string, err error) *PurchaseFailedError {
	return &PurchaseFailedError{Message: driver + ": purchase request failed", Err: err}
}

// VerifyTransportError wraps a transport failure during verification
func VerifyTransportError(driver string, err error) *InvalidPaymentError {
	return &InvalidPaymentError{Message: driver + ": verification request failed", Err: err}
}

// ConfigError reports invalid driver settings
type ConfigError struct {
	Driver string
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: field '%s' %s", e.Driver, e.Key, e.Reason)
}

// StatusTable maps gateway status codes to human readable messages and falls
// back to a fixed unknown-error message.
type StatusTable[K comparable] struct {
	messages map[K]string
	unknown  string
}

// NewStatusTable creates a lookup table
func NewStatusTable[K comparable](unknown string, messages map[K]string) StatusTable[K] {
	return StatusTable[K]{messages: messages, unknown: unknown}
}

// Message returns the message for code or the unknown-error fallback
func (t StatusTable[K]) Message(code K) string {
	if msg, ok := t.messages[code]; ok {
		return msg
	}
	return t.unknown
}

// Has reports whether code is mapped
func (t StatusTable[K]) Has(code K) bool {
	_, ok := t.messages[code]
	return ok
}

// Unknown returns the fallback message
func (t StatusTable[K]) Unknown() string {
	return t.unknown
}

// MessageOr returns msg unless it is empty
func MessageOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}
