package jibit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mstgnz/multipay/infra/logger"
	"github.com/mstgnz/multipay/provider"
)

// API Endpoints
const (
	endpointTokens   = "/tokens"
	endpointPurchase = "/purchases"
	endpointVerify   = "/purchases/%s/verify"
)

var tokenStatus = provider.NewStatusTable("jibit: token request failed", map[int]string{
	http.StatusUnauthorized: "jibit: invalid api key or secret",
	http.StatusForbidden:    "jibit: invalid api key or secret",
})

// apiError is a single entry of the errors array Jibit returns
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrors []apiError

// codes joins the error codes, one per line
func (e apiErrors) codes() string {
	codes := make([]string, 0, len(e))
	for _, err := range e {
		codes = append(codes, err.Code)
	}
	return strings.Join(codes, "\n")
}

// messages maps each error code through table, one per line. Unknown codes
// keep the raw code after the fallback message.
func (e apiErrors) messages(table provider.StatusTable[string]) string {
	lines := make([]string, 0, len(e))
	for _, err := range e {
		if table.Has(err.Code) {
			lines = append(lines, table.Message(err.Code))
			continue
		}
		lines = append(lines, table.Unknown()+" ("+err.Code+")")
	}
	return strings.Join(lines, "\n")
}

type tokenRequest struct {
	APIKey    string `json:"apiKey"`
	SecretKey string `json:"secretKey"`
}

type tokenResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	Errors       apiErrors `json:"errors"`
}

type purchaseRequest struct {
	Amount                int64  `json:"amount"`
	Currency              string `json:"currency"`
	CallbackURL           string `json:"callbackUrl"`
	ClientReferenceNumber string `json:"clientReferenceNumber"`
	UserIdentifier        string `json:"userIdentifier,omitempty"`
	Description           string `json:"description,omitempty"`
}

type purchaseResponse struct {
	PurchaseID            provider.FlexString `json:"purchaseId"`
	ClientReferenceNumber string              `json:"clientReferenceNumber"`
	PspSwitchingURL       string              `json:"pspSwitchingUrl"`
	Errors                apiErrors           `json:"errors"`
}

type verifyResponse struct {
	Status string    `json:"status"`
	Errors apiErrors `json:"errors"`
}

type order struct {
	PurchaseID      provider.FlexString `json:"purchaseId"`
	PayerCardNumber string              `json:"payerCardNumber"`
	PspRRN          string              `json:"pspRrn"`
	State           string              `json:"state"`
}

type orderResponse struct {
	Elements json.RawMessage `json:"elements"`
}

// first returns the first order; elements may be an array or a single object
func (r orderResponse) first() (order, error) {
	var o order
	data := bytes.TrimSpace(r.Elements)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return o, nil
	}
	if data[0] == '[' {
		var list []order
		if err := json.Unmarshal(data, &list); err != nil {
			return o, err
		}
		if len(list) > 0 {
			o = list[0]
		}
		return o, nil
	}
	err := json.Unmarshal(data, &o)
	return o, err
}

// Client talks to the Jibit PPG API and caches its access token
type Client struct {
	apiKey     string
	apiSecret  string
	tokenTTL   time.Duration
	store      TokenStore
	httpClient *provider.ProviderHTTPClient
}

// NewClient creates a Jibit API client
func NewClient(apiKey, apiSecret, baseURL string, store TokenStore, tokenTTL, timeout time.Duration) *Client {
	if store == nil {
		store = NewMemoryTokenStore()
	}
	return &Client{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		tokenTTL:   tokenTTL,
		store:      store,
		httpClient: provider.NewProviderHTTPClient(provider.CreateHTTPClientConfig(baseURL, timeout)),
	}
}

// token returns a cached access token or exchanges the api key for a new
// one. The bool reports whether the token came from the store.
func (c *Client) token(ctx context.Context) (string, bool, error) {
	token, ok, err := c.store.Get(ctx, c.apiKey)
	if err != nil {
		logger.Warn("Failed to read cached jibit token", logger.LogContext{
			Provider: driverName,
			Fields:   map[string]any{"error": err.Error()},
		})
	}
	if ok && token != "" {
		return token, true, nil
	}

	token, err = c.exchange(ctx)
	return token, false, err
}

// exchange trades the api key and secret for a new access token and caches it
func (c *Client) exchange(ctx context.Context) (string, error) {

	resp, err := c.httpClient.SendJSON(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: endpointTokens,
		Body:     tokenRequest{APIKey: c.apiKey, SecretKey: c.apiSecret},
	})
	if err != nil {
		return "", provider.PurchaseTransportError(driverName, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", provider.NewPurchaseFailed(tokenStatus.Message(resp.StatusCode), resp.StatusCode)
	}

	var body tokenResponse
	if err := c.httpClient.ParseJSONResponse(resp, &body); err != nil {
		return "", provider.PurchaseTransportError(driverName, fmt.Errorf("failed to parse token response: %w", err))
	}
	if body.AccessToken == "" {
		return "", provider.NewPurchaseFailed(provider.MessageOr(body.Errors.codes(), tokenStatus.Unknown()), resp.StatusCode)
	}

	if err := c.store.Set(ctx, c.apiKey, body.AccessToken, c.tokenTTL); err != nil {
		logger.Warn("Failed to cache jibit token", logger.LogContext{
			Provider: driverName,
			Fields:   map[string]any{"error": err.Error()},
		})
	}

	return body.AccessToken, nil
}

// authorized sends req with the access token. A cached token that Jibit
// rejects is dropped from the store and the call is repeated once with a
// freshly exchanged token.
func (c *Client) authorized(ctx context.Context, req *provider.HTTPRequest) (*provider.HTTPResponse, error) {
	token, cached, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, req, token)
	if err != nil || !cached || !rejected(resp.StatusCode) {
		return resp, err
	}

	logger.Info("Cached jibit token rejected, exchanging a new one", logger.LogContext{
		Provider: driverName,
		Fields:   map[string]any{"status": resp.StatusCode},
	})
	if err := c.store.Delete(ctx, c.apiKey, token); err != nil {
		logger.Warn("Failed to drop rejected jibit token", logger.LogContext{
			Provider: driverName,
			Fields:   map[string]any{"error": err.Error()},
		})
	}

	token, err = c.exchange(ctx)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, req, token)
}

func (c *Client) send(ctx context.Context, req *provider.HTTPRequest, token string) (*provider.HTTPResponse, error) {
	req.Headers = map[string]string{"Authorization": "Bearer " + token}
	if req.Method == http.MethodGet {
		return c.httpClient.SendRaw(ctx, req)
	}
	return c.httpClient.SendJSON(ctx, req)
}

func rejected(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// PaymentRequest registers a purchase
func (c *Client) PaymentRequest(ctx context.Context, req purchaseRequest) (*purchaseResponse, error) {
	resp, err := c.authorized(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: endpointPurchase,
		Body:     req,
	})
	if err != nil {
		return nil, err
	}

	var body purchaseResponse
	if err := c.httpClient.ParseJSONResponse(resp, &body); err != nil {
		return nil, fmt.Errorf("failed to parse purchase response: %w", err)
	}
	return &body, nil
}

// PaymentVerify asks Jibit to settle the purchase
func (c *Client) PaymentVerify(ctx context.Context, purchaseID string) (*verifyResponse, error) {
	resp, err := c.authorized(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: fmt.Sprintf(endpointVerify, url.PathEscape(purchaseID)),
		Body:     struct{}{},
	})
	if err != nil {
		return nil, err
	}

	var body verifyResponse
	if err := c.httpClient.ParseJSONResponse(resp, &body); err != nil {
		return nil, fmt.Errorf("failed to parse verify response: %w", err)
	}
	return &body, nil
}

// GetOrderByID loads the purchase, used for the payer card number
func (c *Client) GetOrderByID(ctx context.Context, purchaseID string) (order, error) {
	resp, err := c.authorized(ctx, &provider.HTTPRequest{
		Method:      http.MethodGet,
		Endpoint:    endpointPurchase,
		QueryParams: map[string]string{"purchaseId": purchaseID},
	})
	if err != nil {
		return order{}, err
	}

	var body orderResponse
	if err := c.httpClient.ParseJSONResponse(resp, &body); err != nil {
		return order{}, fmt.Errorf("failed to parse order response: %w", err)
	}
	return body.first()
}
