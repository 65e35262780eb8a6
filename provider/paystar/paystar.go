package paystar

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mstgnz/multipay/provider"
)

const (
	driverName = "paystar"

	// API URLs
	defaultPurchaseURL     = "https://core.paystar.ir/api/pardakht/create"
	defaultPaymentURL      = "https://core.paystar.ir/api/pardakht/payment?token="
	defaultVerificationURL = "https://core.paystar.ir/api/pardakht/verify"

	statusOK             = 1
	statusInvalidRequest = -1

	callbackMethodPost = 1
)

var statusTable = provider.NewStatusTable("خطای ناشناخته رخ داده است.", map[int]string{
	1:   "موفق",
	-1:  "درخواست نامعتبر (خطا در پارامترهای ورودی)",
	-2:  "درگاه فعال نیست",
	-3:  "توکن تکراری است",
	-4:  "مبلغ بیشتر از سقف مجاز درگاه است",
	-5:  "شناسه ref_num معتبر نیست",
	-6:  "تراکنش قبلا وریفای شده است",
	-7:  "پارامترهای ارسال شده نامعتبر است",
	-8:  "تراکنش را نمیتوان وریفای کرد",
	-9:  "تراکنش وریفای نشد",
	-98: "تراکنش ناموفق",
	-99: "خطای سامانه",
})

// Paystar implements provider.Driver for the Paystar gateway. Every request
// is signed with HMAC-SHA512 and authorized with the gateway id.
type Paystar struct {
	invoice    *provider.Invoice
	settings   provider.Settings
	httpClient *provider.ProviderHTTPClient
}

type purchaseRequest struct {
	Amount         int64  `json:"amount"`
	OrderID        string `json:"order_id"`
	CallbackMethod int    `json:"callback_method"`
	CardNumber     string `json:"card_number,omitempty"`
	Description    string `json:"description,omitempty"`
	Callback       string `json:"callback"`
	Sign           string `json:"sign"`
}

type purchaseResponse struct {
	Status  provider.FlexInt `json:"status"`
	Message string           `json:"message"`
	Data    struct {
		Token   provider.FlexString `json:"token"`
		RefNum  provider.FlexString `json:"ref_num"`
		OrderID provider.FlexString `json:"order_id"`
	} `json:"data"`
}

type verifyRequest struct {
	Amount       int64  `json:"amount"`
	RefNum       string `json:"ref_num"`
	TrackingCode string `json:"tracking_code"`
	Sign         string `json:"sign"`
}

type verifyResponse struct {
	Status  provider.FlexInt `json:"status"`
	Message string           `json:"message"`
	Data    struct {
		RefNum     provider.FlexString `json:"ref_num"`
		Price      provider.FlexString `json:"price"`
		CardNumber string              `json:"card_number"`
	} `json:"data"`
}

// RequiredConfig returns the settings understood by Paystar
func RequiredConfig() []provider.ConfigField {
	return []provider.ConfigField{
		{
			Key:         "gatewayId",
			Required:    true,
			Type:        "string",
			Description: "Paystar gateway id, sent as the bearer token",
			Example:     "abc123xyz",
		},
		{
			Key:         "signKey",
			Required:    true,
			Type:        "string",
			Description: "Secret used to sign requests",
			Example:     "F1E2D3C4B5A6",
		},
		{
			Key:         "callbackUrl",
			Required:    true,
			Type:        "url",
			Description: "URL the gateway redirects the user back to",
			Example:     "https://shop.example/payments/paystar/callback",
		},
		{Key: "apiPurchaseUrl", Type: "url", Description: "Create endpoint", Default: defaultPurchaseURL},
		{Key: "apiPaymentUrl", Type: "url", Description: "Hosted payment page prefix", Default: defaultPaymentURL},
		{Key: "apiVerificationUrl", Type: "url", Description: "Verify endpoint", Default: defaultVerificationURL},
		{Key: "currency", Type: "currency", Description: "Unit of invoice amounts (T or R)", Default: string(provider.Rial)},
		{Key: "description", Type: "string", Description: "Payment description shown by the gateway"},
		{Key: "timeout", Type: "duration", Description: "HTTP timeout", Default: "30s"},
	}
}

// New creates a Paystar driver for one invoice
func New(invoice *provider.Invoice, config map[string]string) (provider.Driver, error) {
	fields := RequiredConfig()
	if err := provider.ValidateConfigFields(driverName, config, fields); err != nil {
		return nil, err
	}
	settings := provider.ApplyDefaults(config, fields)

	return &Paystar{
		invoice:  invoice,
		settings: settings,
		httpClient: provider.NewProviderHTTPClient(
			provider.CreateHTTPClientConfig("", settings.Duration("timeout", 0)),
		),
	}, nil
}

// Name returns the driver tag
func (p *Paystar) Name() string {
	return driverName
}

func (p *Paystar) amount() int64 {
	return provider.ToRial(p.invoice.Amount(), provider.ResolveCurrency(p.invoice, p.settings.Get("currency")))
}

func (p *Paystar) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + p.settings.Get("gatewayId"),
	}
}

// Purchase creates a signed payment and returns the gateway token
func (p *Paystar) Purchase(ctx context.Context) (string, error) {
	amount := p.amount()
	callback := p.settings.Get("callbackUrl")

	orderID := p.invoice.Detail("factorNumber")
	if orderID == "" {
		orderID = p.invoice.UUID()
	}

	req := purchaseRequest{
		Amount:         amount,
		OrderID:        orderID,
		CallbackMethod: callbackMethodPost,
		CardNumber:     p.invoice.Detail("valid_card_number"),
		Description:    p.settings.Get("description"),
		Callback:       callback,
		Sign:           sign(p.settings.Get("signKey"), strconv.FormatInt(amount, 10), orderID, callback),
	}

	resp, err := p.httpClient.SendJSON(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: p.settings.Get("apiPurchaseUrl"),
		Headers:  p.headers(),
		Body:     req,
	})
	if err != nil {
		return "", provider.PurchaseTransportError(driverName, err)
	}

	var body purchaseResponse
	if err := p.httpClient.ParseJSONResponse(resp, &body); err != nil {
		return "", provider.PurchaseTransportError(driverName, fmt.Errorf("failed to parse response: %w", err))
	}

	status := body.Status.Int()
	if status != statusOK {
		return "", provider.NewPurchaseFailed(statusTable.Message(status), status)
	}
	if body.Data.Token == "" {
		return "", provider.NewPurchaseFailed("paystar: payment token missing from response", status)
	}

	if err := p.invoice.SetTransactionID(body.Data.Token.String()); err != nil {
		return "", err
	}

	return p.invoice.TransactionID(), nil
}

// Pay redirects the user to the hosted payment page
func (p *Paystar) Pay() (*provider.RedirectionForm, error) {
	if !p.invoice.HasTransactionID() {
		return nil, provider.ErrTransactionIDMissing
	}
	return provider.RedirectGet(p.settings.Get("apiPaymentUrl") + p.invoice.TransactionID()), nil
}

// Verify confirms the payment using the values Paystar posted back
func (p *Paystar) Verify(ctx context.Context, params provider.CallbackParams) (*provider.Receipt, error) {
	refNum := params.Get("ref_num")
	cardNumber := params.Get("card_number")
	trackingCode := params.Get("tracking_code")

	if trackingCode == "" {
		return nil, provider.NewInvalidPayment(statusTable.Message(statusInvalidRequest), statusInvalidRequest)
	}

	amount := p.amount()
	req := verifyRequest{
		Amount:       amount,
		RefNum:       refNum,
		TrackingCode: trackingCode,
		Sign:         sign(p.settings.Get("signKey"), strconv.FormatInt(amount, 10), refNum, cardNumber, trackingCode),
	}

	resp, err := p.httpClient.SendJSON(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: p.settings.Get("apiVerificationUrl"),
		Headers:  p.headers(),
		Body:     req,
	})
	if err != nil {
		return nil, provider.VerifyTransportError(driverName, err)
	}

	var body verifyResponse
	if err := p.httpClient.ParseJSONResponse(resp, &body); err != nil {
		return nil, provider.VerifyTransportError(driverName, fmt.Errorf("failed to parse response: %w", err))
	}

	status := body.Status.Int()
	if status != statusOK {
		return nil, provider.NewInvalidPayment(statusTable.Message(status), status)
	}

	return provider.NewReceipt(driverName, refNum).
		SetDetail("ref_num", body.Data.RefNum.String()).
		SetDetail("amount", body.Data.Price.String()).
		SetDetail("cardNumber", body.Data.CardNumber), nil
}
