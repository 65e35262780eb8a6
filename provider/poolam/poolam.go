package poolam

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mstgnz/multipay/provider"
)

const (
	driverName = "poolam"

	// API URLs
	defaultPurchaseURL     = "https://poolam.ir/invoice/request"
	defaultPaymentURL      = "https://poolam.ir/invoice/pay/"
	defaultVerificationURL = "https://poolam.ir/invoice/check/"

	statusOK = 1

	unknownError = "خطای ناشناخته ای رخ داده است."
)

// Poolam implements provider.Driver for the Poolam gateway. The merchant id is
// sent as the api_key form field on every request.
type Poolam struct {
	invoice    *provider.Invoice
	settings   provider.Settings
	httpClient *provider.ProviderHTTPClient
}

type purchaseResponse struct {
	Status           provider.FlexInt    `json:"status"`
	InvoiceKey       provider.FlexString `json:"invoice_key"`
	ErrorDescription string              `json:"errorDescription"`
}

type verifyResponse struct {
	Status           provider.FlexInt    `json:"status"`
	BankCode         provider.FlexString `json:"bank_code"`
	Amount           provider.FlexString `json:"amount"`
	ErrorDescription string              `json:"errorDescription"`
}

// RequiredConfig returns the settings understood by Poolam
func RequiredConfig() []provider.ConfigField {
	return []provider.ConfigField{
		{
			Key:         "merchantId",
			Required:    true,
			Type:        "string",
			Description: "Poolam API key",
			Example:     "a1b2c3d4e5f6",
		},
		{
			Key:         "callbackUrl",
			Required:    true,
			Type:        "url",
			Description: "URL the gateway redirects the user back to",
			Example:     "https://shop.example/payments/poolam/callback",
		},
		{Key: "apiPurchaseUrl", Type: "url", Description: "Invoice request endpoint", Default: defaultPurchaseURL},
		{Key: "apiPaymentUrl", Type: "url", Description: "Hosted payment page prefix", Default: defaultPaymentURL},
		{Key: "apiVerificationUrl", Type: "url", Description: "Invoice check endpoint prefix", Default: defaultVerificationURL},
		{Key: "currency", Type: "currency", Description: "Unit of invoice amounts (T or R)", Default: string(provider.Rial)},
		{Key: "timeout", Type: "duration", Description: "HTTP timeout", Default: "30s"},
	}
}

// New creates a Poolam driver for one invoice
func New(invoice *provider.Invoice, config map[string]string) (provider.Driver, error) {
	fields := RequiredConfig()
	if err := provider.ValidateConfigFields(driverName, config, fields); err != nil {
		return nil, err
	}
	settings := provider.ApplyDefaults(config, fields)

	return &Poolam{
		invoice:  invoice,
		settings: settings,
		httpClient: provider.NewProviderHTTPClient(
			provider.CreateHTTPClientConfig("", settings.Duration("timeout", 0)),
		),
	}, nil
}

// Name returns the driver tag
func (p *Poolam) Name() string {
	return driverName
}

// Purchase requests a new invoice key
func (p *Poolam) Purchase(ctx context.Context) (string, error) {
	amount := provider.ToRial(p.invoice.Amount(), provider.ResolveCurrency(p.invoice, p.settings.Get("currency")))

	resp, err := p.httpClient.SendForm(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: p.settings.Get("apiPurchaseUrl"),
		FormData: map[string]string{
			"api_key":    p.settings.Get("merchantId"),
			"amount":     strconv.FormatInt(amount, 10),
			"return_url": p.settings.Get("callbackUrl"),
		},
	})
	if err != nil {
		return "", provider.PurchaseTransportError(driverName, err)
	}

	var body purchaseResponse
	if err := p.httpClient.ParseJSONResponse(resp, &body); err != nil {
		return "", provider.PurchaseTransportError(driverName, fmt.Errorf("failed to parse response: %w", err))
	}

	if body.Status.Int() != statusOK || body.InvoiceKey == "" {
		return "", provider.NewPurchaseFailed(provider.MessageOr(body.ErrorDescription, unknownError), body.Status.Int())
	}

	if err := p.invoice.SetTransactionID(body.InvoiceKey.String()); err != nil {
		return "", err
	}

	return p.invoice.TransactionID(), nil
}

// Pay redirects the user to the hosted payment page
func (p *Poolam) Pay() (*provider.RedirectionForm, error) {
	if !p.invoice.HasTransactionID() {
		return nil, provider.ErrTransactionIDMissing
	}
	return provider.RedirectGet(p.settings.Get("apiPaymentUrl") + p.invoice.TransactionID()), nil
}

// Verify checks the invoice after the user returned from the gateway
func (p *Poolam) Verify(ctx context.Context, params provider.CallbackParams) (*provider.Receipt, error) {
	invoiceKey := p.invoice.TransactionID()
	if invoiceKey == "" {
		invoiceKey = params.Get("invoice_key")
	}
	if invoiceKey == "" {
		return nil, &provider.InvalidPaymentError{
			Message: "poolam: invoice_key is missing",
			Err:     provider.ErrMissingCallbackParam,
		}
	}

	resp, err := p.httpClient.SendForm(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: p.settings.Get("apiVerificationUrl") + invoiceKey,
		FormData: map[string]string{
			"api_key": p.settings.Get("merchantId"),
		},
	})
	if err != nil {
		return nil, provider.VerifyTransportError(driverName, err)
	}

	var body verifyResponse
	if err := p.httpClient.ParseJSONResponse(resp, &body); err != nil {
		return nil, provider.VerifyTransportError(driverName, fmt.Errorf("failed to parse response: %w", err))
	}

	if body.Status.Int() != statusOK {
		return nil, provider.NewInvalidPayment(provider.MessageOr(body.ErrorDescription, unknownError), body.Status.Int())
	}

	// the invoice key identifies the payment when the gateway omits bank_code
	receipt := provider.NewReceipt(driverName, cmp.Or(body.BankCode.String(), invoiceKey))
	if body.Amount != "" {
		receipt.SetDetail("amount", body.Amount.String())
	}
	return receipt, nil
}
