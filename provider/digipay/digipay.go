package digipay

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mstgnz/multipay/provider"
)

const (
	driverName = "digipay"

	// API URLs
	defaultOauthURL        = "https://api.mydigipay.com/digipay/api/oauth/token"
	defaultPurchaseURL     = "https://api.mydigipay.com/digipay/api/businesses/ticket?type=0"
	defaultPaymentURL      = "https://api.mydigipay.com/digipay/api/purchases/ipg/pay/"
	defaultVerificationURL = "https://api.mydigipay.com/digipay/api/purchases/verify/"

	ticketTypeIPG = 0

	userTypeRegistered = 0
	userTypeGuest      = 2

	purchaseError     = "خطا در هنگام درخواست برای پرداخت رخ داده است."
	verificationError = "تراکنش تایید نشد"
)

var oauthStatus = provider.NewStatusTable("خطا در هنگام احراز هویت.", map[int]string{
	http.StatusUnauthorized: "خطا نام کاربری یا رمز عبور شما اشتباه می باشد.",
})

// Digipay implements provider.Driver for the Digipay gateway. The OAuth token
// is requested on first use and kept for the lifetime of the driver.
type Digipay struct {
	invoice    *provider.Invoice
	settings   provider.Settings
	httpClient *provider.ProviderHTTPClient
	oauthToken string
}

type oauthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type purchaseRequest struct {
	Amount      int64   `json:"amount"`
	Phone       *string `json:"phone"`
	ProviderID  string  `json:"providerId"`
	RedirectURL string  `json:"redirectUrl"`
	Type        int     `json:"type"`
	UserType    int     `json:"userType"`
}

type result struct {
	Status  provider.FlexInt `json:"status"`
	Message string           `json:"message"`
}

type purchaseResponse struct {
	Ticket provider.FlexString `json:"ticket"`
	Result result              `json:"result"`
}

type verifyResponse struct {
	TrackingCode provider.FlexString `json:"trackingCode"`
	RRN          provider.FlexString `json:"rrn"`
	Amount       provider.FlexString `json:"amount"`
	MaskedPan    string              `json:"maskedPan"`
	Result       result              `json:"result"`
}

// RequiredConfig returns the settings understood by Digipay
func RequiredConfig() []provider.ConfigField {
	return []provider.ConfigField{
		{
			Key:         "client_id",
			Required:    true,
			Type:        "string",
			Description: "OAuth client id",
			Example:     "digipay-client",
		},
		{
			Key:         "client_secret",
			Required:    true,
			Type:        "string",
			Description: "OAuth client secret",
			Example:     "s3cr3t",
		},
		{
			Key:         "username",
			Required:    true,
			Type:        "string",
			Description: "Merchant username",
			Example:     "merchant",
		},
		{
			Key:         "password",
			Required:    true,
			Type:        "string",
			Description: "Merchant password",
			Example:     "password",
		},
		{
			Key:         "callbackUrl",
			Required:    true,
			Type:        "url",
			Description: "URL the gateway redirects the user back to",
			Example:     "https://shop.example/payments/digipay/callback",
		},
		{Key: "apiOauthUrl", Type: "url", Description: "OAuth token endpoint", Default: defaultOauthURL},
		{Key: "apiPurchaseUrl", Type: "url", Description: "Ticket endpoint", Default: defaultPurchaseURL},
		{Key: "apiPaymentUrl", Type: "url", Description: "Hosted payment page prefix", Default: defaultPaymentURL},
		{Key: "apiVerificationUrl", Type: "url", Description: "Verify endpoint prefix", Default: defaultVerificationURL},
		{Key: "currency", Type: "currency", Description: "Unit of invoice amounts (T or R)", Default: string(provider.Rial)},
		{Key: "timeout", Type: "duration", Description: "HTTP timeout", Default: "30s"},
	}
}

// New creates a Digipay driver for one invoice
func New(invoice *provider.Invoice, config map[string]string) (provider.Driver, error) {
	fields := RequiredConfig()
	if err := provider.ValidateConfigFields(driverName, config, fields); err != nil {
		return nil, err
	}
	settings := provider.ApplyDefaults(config, fields)

	return &Digipay{
		invoice:  invoice,
		settings: settings,
		httpClient: provider.NewProviderHTTPClient(
			provider.CreateHTTPClientConfig("", settings.Duration("timeout", 0)),
		),
	}, nil
}

// Name returns the driver tag
func (d *Digipay) Name() string {
	return driverName
}

// oauth returns the cached token or runs the password grant
func (d *Digipay) oauth(ctx context.Context) (string, error) {
	if d.oauthToken != "" {
		return d.oauthToken, nil
	}

	resp, err := d.httpClient.SendMultipart(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: d.settings.Get("apiOauthUrl"),
		FormData: map[string]string{
			"username":   d.settings.Get("username"),
			"password":   d.settings.Get("password"),
			"grant_type": "password",
		},
		BasicAuth: &provider.BasicAuth{
			Username: d.settings.Get("client_id"),
			Password: d.settings.Get("client_secret"),
		},
	})
	if err != nil {
		return "", provider.PurchaseTransportError(driverName, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", provider.NewPurchaseFailed(oauthStatus.Message(resp.StatusCode), resp.StatusCode)
	}

	var body oauthResponse
	if err := d.httpClient.ParseJSONResponse(resp, &body); err != nil {
		return "", provider.PurchaseTransportError(driverName, fmt.Errorf("failed to parse oauth response: %w", err))
	}
	if body.AccessToken == "" {
		return "", provider.NewPurchaseFailed(oauthStatus.Unknown(), resp.StatusCode)
	}

	d.oauthToken = body.AccessToken
	return d.oauthToken, nil
}

// phone prefers the phone detail over mobile; nil means guest checkout
func (d *Digipay) phone() *string {
	for _, key := range []string{"phone", "mobile"} {
		if v := d.invoice.Detail(key); v != "" {
			return &v
		}
	}
	return nil
}

// Purchase creates a payment ticket
func (d *Digipay) Purchase(ctx context.Context) (string, error) {
	token, err := d.oauth(ctx)
	if err != nil {
		return "", err
	}

	phone := d.phone()
	userType := userTypeRegistered
	if phone == nil {
		userType = userTypeGuest
	}

	resp, err := d.httpClient.SendJSON(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: d.settings.Get("apiPurchaseUrl"),
		Headers:  map[string]string{"Authorization": "Bearer " + token},
		Body: purchaseRequest{
			Amount:      provider.ToRial(d.invoice.Amount(), provider.ResolveCurrency(d.invoice, d.settings.Get("currency"))),
			Phone:       phone,
			ProviderID:  d.invoice.UUID(),
			RedirectURL: d.settings.Get("callbackUrl"),
			Type:        ticketTypeIPG,
			UserType:    userType,
		},
	})
	if err != nil {
		return "", provider.PurchaseTransportError(driverName, err)
	}

	var body purchaseResponse
	// error bodies are not always JSON; the fallback message covers them
	_ = d.httpClient.ParseJSONResponse(resp, &body)

	if resp.StatusCode != http.StatusOK {
		return "", provider.NewPurchaseFailed(provider.MessageOr(body.Result.Message, purchaseError), body.Result.Status.Int())
	}
	if body.Ticket == "" {
		return "", provider.NewPurchaseFailed(purchaseError, body.Result.Status.Int())
	}

	if err := d.invoice.SetTransactionID(body.Ticket.String()); err != nil {
		return "", err
	}

	return d.invoice.TransactionID(), nil
}

// Pay redirects the user to the hosted payment page
func (d *Digipay) Pay() (*provider.RedirectionForm, error) {
	if !d.invoice.HasTransactionID() {
		return nil, provider.ErrTransactionIDMissing
	}
	return provider.RedirectGet(d.settings.Get("apiPaymentUrl") + d.invoice.TransactionID()), nil
}

// Verify confirms the payment identified by the callback tracking code
func (d *Digipay) Verify(ctx context.Context, params provider.CallbackParams) (*provider.Receipt, error) {
	trackingCode := params.Get("trackingCode")
	if trackingCode == "" {
		return nil, &provider.InvalidPaymentError{
			Message: "digipay: trackingCode is missing",
			Err:     provider.ErrMissingCallbackParam,
		}
	}

	token, err := d.oauth(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := d.httpClient.SendJSON(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: d.settings.Get("apiVerificationUrl") + trackingCode,
		Headers:  map[string]string{"Authorization": "Bearer " + token},
		Body:     struct{}{},
	})
	if err != nil {
		return nil, provider.VerifyTransportError(driverName, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, provider.NewInvalidPayment(verificationError, resp.StatusCode)
	}

	var body verifyResponse
	if err := d.httpClient.ParseJSONResponse(resp, &body); err != nil {
		return nil, provider.VerifyTransportError(driverName, fmt.Errorf("failed to parse response: %w", err))
	}

	referenceID := body.TrackingCode.String()
	if referenceID == "" {
		referenceID = trackingCode
	}

	receipt := provider.NewReceipt(driverName, referenceID)
	if body.RRN != "" {
		receipt.SetDetail("rrn", body.RRN.String())
	}
	if body.Amount != "" {
		receipt.SetDetail("amount", body.Amount.String())
	}
	if body.MaskedPan != "" {
		receipt.SetDetail("maskedPan", body.MaskedPan)
	}
	return receipt, nil
}
