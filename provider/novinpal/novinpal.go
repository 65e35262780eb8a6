package novinpal

import (
	"cmp"
	"context"
	"fmt"
	"hash/crc32"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mstgnz/multipay/provider"
)

const (
	driverName = "novinpal"

	// API URLs
	defaultPurchaseURL     = "https://api.novinpal.ir/invoice/request"
	defaultPaymentURL      = "https://api.novinpal.ir/invoice/start/"
	defaultVerificationURL = "https://api.novinpal.ir/invoice/verify"

	statusFailed = 0
	statusOK     = 1

	unknownError = "خطای ناشناخته ای رخ داده است."
)

// optionalParameters are sent only when the invoice details or the settings
// carry a non-empty value. New optional fields only need to be listed here.
var optionalParameters = []string{
	"mobile",
	"description",
	"card_number",
}

// callbackStatus translates the code Novinpal appends to the callback URL
var callbackStatus = provider.NewStatusTable(unknownError, map[int]string{
	104: "در انتظار پردخت",
	107: "PSP یافت نشد",
	108: "خطای سرور",
	109: "تراکنش ناموفق بود",
	114: "متد ارسال شده اشتباه است",
	115: "ترمینال تایید نشده است",
	116: "ترمینال غیرفعال است",
	117: "ترمینال رد شده است",
	118: "ترمینال تعلیق شده است",
	119: "ترمینالی تعریف نشده است",
	120: "حساب کاربری پذیرنده به حالت تعلیق درآمده است",
	121: "حساب کاربری پذیرنده تایید نشده است",
	122: "حساب کاربری پذیرنده یافت نشد",
})

// Novinpal implements provider.Driver for the Novinpal gateway
type Novinpal struct {
	invoice    *provider.Invoice
	settings   provider.Settings
	httpClient *provider.ProviderHTTPClient
	now        func() time.Time
}

type purchaseResponse struct {
	Status           provider.FlexInt    `json:"status"`
	RefID            provider.FlexString `json:"refId"`
	ErrorCode        provider.FlexInt    `json:"errorCode"`
	ErrorDescription string              `json:"errorDescription"`
}

type verifyResponse struct {
	Status           provider.FlexInt    `json:"status"`
	RefNumber        provider.FlexString `json:"refNumber"`
	InvoiceNumber    provider.FlexString `json:"invoiceNumber"`
	CardNumber       string              `json:"cardNumber"`
	PaidAt           string              `json:"paidAt"`
	ErrorCode        provider.FlexInt    `json:"errorCode"`
	ErrorDescription string              `json:"errorDescription"`
}

// RequiredConfig returns the settings understood by Novinpal
func RequiredConfig() []provider.ConfigField {
	return []provider.ConfigField{
		{
			Key:         "merchantId",
			Required:    true,
			Type:        "string",
			Description: "Novinpal API key",
			Example:     "0a1b2c3d-4e5f",
		},
		{
			Key:         "callbackUrl",
			Required:    true,
			Type:        "url",
			Description: "URL the gateway redirects the user back to",
			Example:     "https://shop.example/payments/novinpal/callback",
		},
		{Key: "apiPurchaseUrl", Type: "url", Description: "Invoice request endpoint", Default: defaultPurchaseURL},
		{Key: "apiPaymentUrl", Type: "url", Description: "Hosted payment page prefix", Default: defaultPaymentURL},
		{Key: "apiVerificationUrl", Type: "url", Description: "Invoice verify endpoint", Default: defaultVerificationURL},
		{Key: "currency", Type: "currency", Description: "Unit of invoice amounts (T or R)", Default: string(provider.Rial)},
		{Key: "mobile", Type: "string", Description: "Fallback payer mobile"},
		{Key: "description", Type: "string", Description: "Fallback payment description"},
		{Key: "card_number", Type: "string", Description: "Fallback card number restriction", Pattern: `^[0-9]{16}$`},
		{Key: "timeout", Type: "duration", Description: "HTTP timeout", Default: "30s"},
	}
}

// New creates a Novinpal driver for one invoice
func New(invoice *provider.Invoice, config map[string]string) (provider.Driver, error) {
	fields := RequiredConfig()
	if err := provider.ValidateConfigFields(driverName, config, fields); err != nil {
		return nil, err
	}
	settings := provider.ApplyDefaults(config, fields)

	return &Novinpal{
		invoice:  invoice,
		settings: settings,
		httpClient: provider.NewProviderHTTPClient(
			provider.CreateHTTPClientConfig("", settings.Duration("timeout", 0)),
		),
		now: time.Now,
	}, nil
}

// Name returns the driver tag
func (n *Novinpal) Name() string {
	return driverName
}

// Purchase requests a new ref id
func (n *Novinpal) Purchase(ctx context.Context) (string, error) {
	amount := provider.ToRial(n.invoice.Amount(), provider.ResolveCurrency(n.invoice, n.settings.Get("currency")))

	data := map[string]string{
		"api_key":    n.settings.Get("merchantId"),
		"return_url": n.settings.Get("callbackUrl"),
		"amount":     strconv.FormatInt(amount, 10),
		"order_id":   n.orderID(),
	}
	n.addOptionalDetails(data)

	resp, err := n.httpClient.SendForm(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: n.settings.Get("apiPurchaseUrl"),
		FormData: data,
	})
	if err != nil {
		return "", provider.PurchaseTransportError(driverName, err)
	}

	var body purchaseResponse
	if err := n.httpClient.ParseJSONResponse(resp, &body); err != nil {
		return "", provider.PurchaseTransportError(driverName, fmt.Errorf("failed to parse response: %w", err))
	}

	if body.Status.Int() == statusFailed || body.RefID == "" {
		return "", provider.NewPurchaseFailed(provider.MessageOr(body.ErrorDescription, unknownError), body.ErrorCode.Int())
	}

	if err := n.invoice.SetTransactionID(body.RefID.String()); err != nil {
		return "", err
	}

	return n.invoice.TransactionID(), nil
}

// Pay redirects the user to the hosted payment page
func (n *Novinpal) Pay() (*provider.RedirectionForm, error) {
	if !n.invoice.HasTransactionID() {
		return nil, provider.ErrTransactionIDMissing
	}
	return provider.RedirectGet(n.settings.Get("apiPaymentUrl") + n.invoice.TransactionID()), nil
}

// Verify checks the callback flag first and then confirms with the gateway
func (n *Novinpal) Verify(ctx context.Context, params provider.CallbackParams) (*provider.Receipt, error) {
	if params.Get("success") != "1" {
		code, _ := strconv.Atoi(params.Get("code"))
		return nil, provider.NewInvalidPayment(callbackStatus.Message(code), code)
	}

	refID := n.invoice.TransactionID()
	if refID == "" {
		refID = params.Get("refId")
	}
	if refID == "" {
		return nil, &provider.InvalidPaymentError{
			Message: "novinpal: refId is missing",
			Err:     provider.ErrMissingCallbackParam,
		}
	}

	resp, err := n.httpClient.SendForm(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: n.settings.Get("apiVerificationUrl"),
		FormData: map[string]string{
			"api_key": n.settings.Get("merchantId"),
			"ref_id":  refID,
		},
	})
	if err != nil {
		return nil, provider.VerifyTransportError(driverName, err)
	}

	var body verifyResponse
	if err := n.httpClient.ParseJSONResponse(resp, &body); err != nil {
		return nil, provider.VerifyTransportError(driverName, fmt.Errorf("failed to parse response: %w", err))
	}

	if body.Status.Int() != statusOK {
		code := body.ErrorCode.Int()
		return nil, provider.NewInvalidPayment(provider.MessageOr(body.ErrorDescription, callbackStatus.Message(code)), code)
	}

	// the ref id identifies the payment when the gateway omits refNumber
	receipt := provider.NewReceipt(driverName, cmp.Or(body.RefNumber.String(), refID))
	if body.InvoiceNumber != "" {
		receipt.SetDetail("invoiceNumber", body.InvoiceNumber.String())
	}
	if body.CardNumber != "" {
		receipt.SetDetail("cardNumber", body.CardNumber)
	}
	if body.PaidAt != "" {
		receipt.SetDetail("paidAt", body.PaidAt)
	}
	return receipt, nil
}

// orderID prefers a caller supplied order id and otherwise derives one from
// the invoice uuid and the current time
func (n *Novinpal) orderID() string {
	if id := n.invoice.Detail("orderId"); id != "" {
		return id
	}
	if id := n.invoice.Detail("order_id"); id != "" {
		return id
	}
	return strconv.FormatUint(uint64(crc32.ChecksumIEEE([]byte(n.invoice.UUID()))), 10) +
		strconv.FormatInt(n.now().Unix(), 10)
}

// addOptionalDetails copies every optional parameter that has a value,
// looking at invoice details first and settings second
func (n *Novinpal) addOptionalDetails(data map[string]string) {
	for _, name := range optionalParameters {
		if value := n.extractDetail(name); value != "" {
			data[name] = value
		}
	}
}

func (n *Novinpal) extractDetail(name string) string {
	if v := strings.TrimSpace(n.invoice.Detail(name)); v != "" {
		return v
	}
	return strings.TrimSpace(n.settings.Get(name))
}
