package provider

import (
	"context"
	"net/http"
)

// ConfigField represents a configuration key understood by a gateway driver
type ConfigField struct {
	Key         string `json:"key"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // "string", "number", "url", "duration", "currency"
	Description string `json:"description"`
	Example     string `json:"example"`
	Default     string `json:"default,omitempty"`
	Pattern     string `json:"pattern,omitempty"`   // regex pattern for validation
	MinLength   int    `json:"minLength,omitempty"` // minimum length for string fields
	MaxLength   int    `json:"maxLength,omitempty"` // maximum length for string fields
}

// CallbackParams gives a driver read access to the parameters a gateway sent
// back with the user's browser. url.Values satisfies it.
type CallbackParams interface {
	Get(key string) string
}

// Driver defines the contract every payment gateway integration implements.
//
// A driver is built for exactly one invoice and is discarded after Verify.
// Purchase registers the pending payment and stores the gateway's transaction
// id on the invoice, Pay derives the browser redirection without touching the
// network, and Verify confirms the final status after the gateway redirects
// the user back.
type Driver interface {
	// Name returns the driver tag written into receipts
	Name() string

	// Purchase registers a pending payment and returns the transaction id
	Purchase(ctx context.Context) (string, error)

	// Pay returns the instruction that sends the user to the gateway
	Pay() (*RedirectionForm, error)

	// Verify confirms the payment with the gateway and returns a receipt
	Verify(ctx context.Context, params CallbackParams) (*Receipt, error)
}

// DriverFactory builds a driver for one invoice. Settings are validated
// eagerly, so a misconfigured driver fails here instead of inside Purchase.
type DriverFactory func(invoice *Invoice, settings map[string]string) (Driver, error)

// RedirectionForm describes how the user agent reaches the gateway's hosted
// payment page.
type RedirectionForm struct {
	URL    string            `json:"url"`
	Method string            `json:"method"`
	Fields map[string]string `json:"fields"`
}

// NewRedirectionForm creates a redirection instruction. GET forms never carry
// fields; a nil field map is replaced with an empty one.
func NewRedirectionForm(url, method string, fields map[string]string) *RedirectionForm {
	if method != http.MethodPost {
		method = http.MethodGet
	}

	form := &RedirectionForm{
		URL:    url,
		Method: method,
		Fields: make(map[string]string, len(fields)),
	}
	if method == http.MethodPost {
		for k, v := range fields {
			form.Fields[k] = v
		}
	}

	return form
}

// RedirectGet is a shortcut for the common GET redirection
func RedirectGet(url string) *RedirectionForm {
	return NewRedirectionForm(url, http.MethodGet, nil)
}
