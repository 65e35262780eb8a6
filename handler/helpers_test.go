package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/multipay/infra/config"
	"github.com/mstgnz/multipay/infra/response"
	"github.com/mstgnz/multipay/provider"
	"github.com/stretchr/testify/require"
)

// stubDriver answers with canned results and records what it was given
type stubDriver struct {
	invoice     *provider.Invoice
	purchaseErr error
	verifyErr   error
	lastParams  provider.CallbackParams
}

func (d *stubDriver) Name() string { return "stub" }

func (d *stubDriver) Purchase(ctx context.Context) (string, error) {
	if d.purchaseErr != nil {
		return "", d.purchaseErr
	}
	if err := d.invoice.SetTransactionID("tx-" + d.invoice.UUID()); err != nil {
		return "", err
	}
	return d.invoice.TransactionID(), nil
}

func (d *stubDriver) Pay() (*provider.RedirectionForm, error) {
	return provider.RedirectGet("https://gateway.example/pay/" + d.invoice.TransactionID()), nil
}

func (d *stubDriver) Verify(ctx context.Context, params provider.CallbackParams) (*provider.Receipt, error) {
	d.lastParams = params
	if d.verifyErr != nil {
		return nil, d.verifyErr
	}
	if params.Get("status") != "ok" {
		return nil, provider.NewInvalidPayment("payment cancelled", -1)
	}
	return provider.NewReceipt("stub", "ref-"+d.invoice.TransactionID()).
		SetDetail("amount", fmt.Sprint(d.invoice.Amount())), nil
}

var stubFields = []provider.ConfigField{
	{Key: "merchantId", Required: true, Type: "string"},
	{Key: "callbackUrl", Required: true, Type: "url"},
	{Key: "currency", Type: "currency", Default: "R"},
}

type stubOptions struct {
	purchaseErr error
	verifyErr   error
	factoryErr  error
}

func newStubRegistry(opts stubOptions, last **stubDriver) *provider.ProviderRegistry {
	registry := provider.NewProviderRegistry()
	registry.Register("stub", func(invoice *provider.Invoice, settings map[string]string) (provider.Driver, error) {
		if opts.factoryErr != nil {
			return nil, opts.factoryErr
		}
		d := &stubDriver{invoice: invoice, purchaseErr: opts.purchaseErr, verifyErr: opts.verifyErr}
		if last != nil {
			*last = d
		}
		return d, nil
	}, stubFields)
	return registry
}

// memorySettings is an in-memory SettingsStore
type memorySettings struct {
	configs map[string]map[string]string
}

func newMemorySettings(configs map[string]map[string]string) *memorySettings {
	if configs == nil {
		configs = make(map[string]map[string]string)
	}
	return &memorySettings{configs: configs}
}

func (m *memorySettings) SetConfig(driver string, cfg map[string]string) error {
	if len(cfg) == 0 {
		return errors.New("config cannot be empty")
	}
	m.configs[driver] = maps.Clone(cfg)
	return nil
}

func (m *memorySettings) GetConfig(driver string) (map[string]string, error) {
	cfg, ok := m.configs[driver]
	if !ok {
		return nil, fmt.Errorf("%w for driver: %s", config.ErrConfigNotFound, driver)
	}
	return maps.Clone(cfg), nil
}

func (m *memorySettings) DeleteConfig(driver string) error {
	delete(m.configs, driver)
	return nil
}

func (m *memorySettings) Names() []string {
	names := make([]string, 0, len(m.configs))
	for name := range m.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *memorySettings) GetStats() (map[string]any, error) {
	return map[string]any{"memory_configs": len(m.configs)}, nil
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var resp response.Response
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	}
	return rr, resp
}

func dataMap(t *testing.T, resp response.Response) map[string]any {
	t.Helper()
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "response data should be an object, got %T", resp.Data)
	return data
}

func paymentRouter(h *PaymentHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/drivers", h.ListDrivers)
	r.Post("/v1/payments/{driver}", h.Purchase)
	r.Post("/v1/payments/{driver}/verify", h.Verify)
	return r
}
