package jibit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mstgnz/multipay/infra/logger"
	"github.com/mstgnz/multipay/provider"
)

const (
	driverName = "jibit"

	defaultBaseURL  = "https://napi.jibit.ir/ppg/v3"
	defaultTokenTTL = 23 * time.Hour

	currencyRial = "IRR"

	statusSuccessful = "SUCCESSFUL"
)

// ErrPaymentURLMissing is returned by Pay when no switching url was captured
var ErrPaymentURLMissing = errors.New("jibit: payment url is only known to the driver that ran purchase")

var verifyStatus = provider.NewStatusTable("Payment encountered an issue.", map[string]string{
	"FAILED":           "Payment failed.",
	"ALREADY_VERIFIED": "Payment has already been verified.",
	"NOT_VERIFIABLE":   "Payment cannot be verified.",
	"REVERSED":         "Payment has been reversed.",
	"EXPIRED":          "Payment has expired.",
})

var purchaseStatus = provider.NewStatusTable("Purchase request was rejected by Jibit.", map[string]string{
	"security.auth_required":             "Access token is missing or invalid.",
	"web.call_back_url.not_valid":        "Callback url is not valid.",
	"purchase.callback_is_invalid":       "Callback url is not valid.",
	"purchase.amount_is_invalid":         "Amount is not valid.",
	"purchase.amount_is_too_low":         "Amount is below the gateway minimum.",
	"purchase.amount_is_too_high":        "Amount is above the gateway maximum.",
	"purchase.currency_is_invalid":       "Currency is not supported.",
	"purchase.client_reference_is_taken": "Client reference number is already used.",
	"merchant.not_active":                "Merchant is not active.",
})

// Jibit implements provider.Driver for the Jibit PPG. The hosted page url is
// returned by purchase, so Pay only works on the instance that purchased.
type Jibit struct {
	invoice    *provider.Invoice
	settings   provider.Settings
	client     *Client
	paymentURL string
}

// RequiredConfig returns the settings understood by Jibit
func RequiredConfig() []provider.ConfigField {
	return []provider.ConfigField{
		{
			Key:         "apiKey",
			Required:    true,
			Type:        "string",
			Description: "Jibit API key",
			Example:     "jb_api_key",
		},
		{
			Key:         "apiSecret",
			Required:    true,
			Type:        "string",
			Description: "Jibit API secret",
			Example:     "jb_api_secret",
		},
		{
			Key:         "callbackUrl",
			Required:    true,
			Type:        "url",
			Description: "URL the gateway redirects the user back to",
			Example:     "https://shop.example/payments/jibit/callback",
		},
		{Key: "apiBaseUrl", Type: "url", Description: "PPG API base url", Default: defaultBaseURL},
		{Key: "currency", Type: "currency", Description: "Unit of invoice amounts (T or R)", Default: string(provider.Rial)},
		{Key: "description", Type: "string", Description: "Fallback payment description"},
		{Key: "tokenTTL", Type: "duration", Description: "How long an access token is reused", Default: defaultTokenTTL.String()},
		{Key: "timeout", Type: "duration", Description: "HTTP timeout", Default: "30s"},
	}
}

// New creates a Jibit driver for one invoice
func New(invoice *provider.Invoice, config map[string]string) (provider.Driver, error) {
	fields := RequiredConfig()
	if err := provider.ValidateConfigFields(driverName, config, fields); err != nil {
		return nil, err
	}
	settings := provider.ApplyDefaults(config, fields)

	client := NewClient(
		settings.Get("apiKey"),
		settings.Get("apiSecret"),
		settings.Get("apiBaseUrl"),
		currentTokenStore(),
		settings.Duration("tokenTTL", defaultTokenTTL),
		settings.Duration("timeout", 0),
	)

	return &Jibit{
		invoice:  invoice,
		settings: settings,
		client:   client,
	}, nil
}

// Name returns the driver tag
func (j *Jibit) Name() string {
	return driverName
}

// Purchase registers the purchase and captures the psp switching url
func (j *Jibit) Purchase(ctx context.Context) (string, error) {
	amount := provider.ToRial(j.invoice.Amount(), provider.ResolveCurrency(j.invoice, j.settings.Get("currency")))

	description := j.invoice.Detail("description")
	if description == "" {
		description = j.settings.Get("description")
	}

	result, err := j.client.PaymentRequest(ctx, purchaseRequest{
		Amount:                amount,
		Currency:              currencyRial,
		CallbackURL:           j.settings.Get("callbackUrl"),
		ClientReferenceNumber: j.invoice.UUID(),
		UserIdentifier:        j.invoice.Detail("mobile"),
		Description:           description,
	})
	if err != nil {
		if errors.Is(err, provider.ErrPurchaseFailed) {
			return "", err
		}
		return "", provider.PurchaseTransportError(driverName, err)
	}

	if len(result.Errors) > 0 {
		return "", provider.NewPurchaseFailed(result.Errors.messages(purchaseStatus), 0)
	}
	if result.PurchaseID == "" {
		return "", provider.NewPurchaseFailed("jibit: purchase id missing from response", 0)
	}

	j.paymentURL = result.PspSwitchingURL

	referenceNumber := result.ClientReferenceNumber
	if referenceNumber == "" {
		referenceNumber = j.invoice.UUID()
	}
	j.invoice.SetDetail("referenceNumber", referenceNumber)

	if err := j.invoice.SetTransactionID(result.PurchaseID.String()); err != nil {
		return "", err
	}

	return j.invoice.TransactionID(), nil
}

// Pay redirects the user to the captured psp switching url
func (j *Jibit) Pay() (*provider.RedirectionForm, error) {
	if !j.invoice.HasTransactionID() {
		return nil, provider.ErrTransactionIDMissing
	}
	if j.paymentURL == "" {
		return nil, ErrPaymentURLMissing
	}
	return provider.RedirectGet(j.paymentURL), nil
}

// Verify settles the purchase and loads the payer card for the receipt
func (j *Jibit) Verify(ctx context.Context, params provider.CallbackParams) (*provider.Receipt, error) {
	purchaseID := j.invoice.TransactionID()
	if purchaseID == "" {
		purchaseID = params.Get("purchaseId")
	}
	if purchaseID == "" {
		return nil, &provider.InvalidPaymentError{
			Message: "jibit: purchaseId is missing",
			Err:     provider.ErrMissingCallbackParam,
		}
	}

	result, err := j.client.PaymentVerify(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, provider.ErrPurchaseFailed) {
			return nil, err
		}
		return nil, provider.VerifyTransportError(driverName, err)
	}

	if result.Status != statusSuccessful {
		message := verifyStatus.Message(result.Status)
		if result.Status == "" && len(result.Errors) > 0 {
			message = fmt.Sprintf("%s\n%s", verifyStatus.Unknown(), result.Errors.codes())
		}
		return nil, provider.NewInvalidPayment(message, 0)
	}

	receipt := provider.NewReceipt(driverName, purchaseID)

	o, err := j.client.GetOrderByID(ctx, purchaseID)
	if err != nil {
		logger.Warn("Failed to load jibit order after verification", logger.LogContext{
			Provider: driverName,
			Fields: map[string]any{
				"purchase_id": purchaseID,
				"error":       err.Error(),
			},
		})
	}

	return receipt.SetDetail("payerCard", o.PayerCardNumber), nil
}
