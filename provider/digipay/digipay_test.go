package digipay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/mstgnz/multipay/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDigipay struct {
	t           *testing.T
	oauthCalls  atomic.Int32
	oauthStatus int
	purchase    func(w http.ResponseWriter, req map[string]any)
	verify      func(w http.ResponseWriter, trackingCode string)
}

func (f *fakeDigipay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/oauth/token":
		f.oauthCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		assert.True(f.t, ok)
		assert.Equal(f.t, "client", user)
		assert.Equal(f.t, "secret", pass)
		require.NoError(f.t, r.ParseMultipartForm(1<<20))
		assert.Equal(f.t, "merchant", r.FormValue("username"))
		assert.Equal(f.t, "pw", r.FormValue("password"))
		assert.Equal(f.t, "password", r.FormValue("grant_type"))
		if f.oauthStatus != 0 {
			w.WriteHeader(f.oauthStatus)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"oauth-token","token_type":"bearer","expires_in":3600}`))
	case r.URL.Path == "/ticket":
		assert.Equal(f.t, "Bearer oauth-token", r.Header.Get("Authorization"))
		var req map[string]any
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.purchase(w, req)
	case len(r.URL.Path) > len("/verify/"):
		assert.Equal(f.t, "Bearer oauth-token", r.Header.Get("Authorization"))
		f.verify(w, r.URL.Path[len("/verify/"):])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func setup(t *testing.T, fake *fakeDigipay) map[string]string {
	t.Helper()
	fake.t = t
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return map[string]string{
		"client_id":          "client",
		"client_secret":      "secret",
		"username":           "merchant",
		"password":           "pw",
		"callbackUrl":        "https://shop.test/callback",
		"apiOauthUrl":        server.URL + "/oauth/token",
		"apiPurchaseUrl":     server.URL + "/ticket",
		"apiPaymentUrl":      "https://pay.digipay.test/ipg/",
		"apiVerificationUrl": server.URL + "/verify/",
	}
}

func TestPurchase(t *testing.T) {
	tests := []struct {
		name         string
		details      map[string]string
		currency     string
		wantPhone    any
		wantUserType float64
		wantAmount   float64
	}{
		{
			name:         "guest without phone",
			currency:     "T",
			wantPhone:    nil,
			wantUserType: 2,
			wantAmount:   20000,
		},
		{
			name:         "phone detail",
			details:      map[string]string{"phone": "09120000000", "mobile": "09350000000"},
			currency:     "R",
			wantPhone:    "09120000000",
			wantUserType: 0,
			wantAmount:   2000,
		},
		{
			name:         "mobile fallback",
			details:      map[string]string{"mobile": "09350000000"},
			wantPhone:    "09350000000",
			wantUserType: 0,
			wantAmount:   2000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeDigipay{}
			inv := provider.NewInvoice(2000, provider.WithUUID("uuid-7"), provider.WithDetails(tt.details))
			fake.purchase = func(w http.ResponseWriter, req map[string]any) {
				assert.Equal(t, tt.wantAmount, req["amount"])
				assert.Equal(t, tt.wantPhone, req["phone"])
				assert.Equal(t, tt.wantUserType, req["userType"])
				assert.Equal(t, "uuid-7", req["providerId"])
				assert.Equal(t, "https://shop.test/callback", req["redirectUrl"])
				assert.Equal(t, float64(0), req["type"])
				_, _ = w.Write([]byte(`{"ticket":"TICKET-1","result":{"status":0,"message":"success"}}`))
			}
			cfg := setup(t, fake)
			cfg["currency"] = tt.currency

			d, err := New(inv, cfg)
			require.NoError(t, err)

			id, err := d.Purchase(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "TICKET-1", id)

			form, err := d.Pay()
			require.NoError(t, err)
			assert.Equal(t, "https://pay.digipay.test/ipg/TICKET-1", form.URL)
			assert.Equal(t, http.MethodGet, form.Method)
		})
	}
}

func TestOAuth_Failures(t *testing.T) {
	tests := []struct {
		status  int
		wantMsg string
	}{
		{http.StatusUnauthorized, "خطا نام کاربری یا رمز عبور شما اشتباه می باشد."},
		{http.StatusInternalServerError, "خطا در هنگام احراز هویت."},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			fake := &fakeDigipay{oauthStatus: tt.status}
			cfg := setup(t, fake)

			inv := provider.NewInvoice(1000)
			d, err := New(inv, cfg)
			require.NoError(t, err)

			_, err = d.Purchase(context.Background())
			var pf *provider.PurchaseFailedError
			require.ErrorAs(t, err, &pf)
			assert.Equal(t, tt.wantMsg, pf.Message)
			assert.False(t, inv.HasTransactionID())
		})
	}
}

func TestOAuth_TokenRequestedOncePerInstance(t *testing.T) {
	fake := &fakeDigipay{
		purchase: func(w http.ResponseWriter, req map[string]any) {
			_, _ = w.Write([]byte(`{"ticket":"TICKET-1"}`))
		},
		verify: func(w http.ResponseWriter, trackingCode string) {
			_, _ = w.Write([]byte(`{"trackingCode":"` + trackingCode + `"}`))
		},
	}
	cfg := setup(t, fake)

	d, err := New(provider.NewInvoice(1000), cfg)
	require.NoError(t, err)

	_, err = d.Purchase(context.Background())
	require.NoError(t, err)
	_, err = d.Verify(context.Background(), url.Values{"trackingCode": {"TRK-1"}})
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.oauthCalls.Load())

	other, err := New(provider.NewInvoice(1000), cfg)
	require.NoError(t, err)
	_, err = other.Verify(context.Background(), url.Values{"trackingCode": {"TRK-2"}})
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.oauthCalls.Load())
}

func TestPurchase_Failed(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantMsg  string
		wantCode int
	}{
		{"gateway message", `{"result":{"status":9003,"message":"مبلغ نامعتبر است"}}`, "مبلغ نامعتبر است", 9003},
		{"no message", `{}`, purchaseError, 0},
		{"not json", `<html>bad gateway</html>`, purchaseError, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeDigipay{
				purchase: func(w http.ResponseWriter, req map[string]any) {
					w.WriteHeader(http.StatusBadRequest)
					_, _ = w.Write([]byte(tt.body))
				},
			}
			cfg := setup(t, fake)

			d, err := New(provider.NewInvoice(1000), cfg)
			require.NoError(t, err)

			_, err = d.Purchase(context.Background())
			var pf *provider.PurchaseFailedError
			require.ErrorAs(t, err, &pf)
			assert.Equal(t, tt.wantMsg, pf.Message)
			assert.Equal(t, tt.wantCode, pf.Code)
		})
	}
}

func TestVerify(t *testing.T) {
	fake := &fakeDigipay{
		verify: func(w http.ResponseWriter, trackingCode string) {
			if trackingCode == "TRK-OK" {
				_, _ = w.Write([]byte(`{"trackingCode":"TRK-OK","rrn":"123456","amount":20000,"maskedPan":"6037-99**-****-1234","result":{"status":0}}`))
				return
			}
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"result":{"status":9011,"message":"invalid"}}`))
		},
	}
	cfg := setup(t, fake)

	t.Run("success", func(t *testing.T) {
		d, err := New(provider.NewInvoice(1000), cfg)
		require.NoError(t, err)

		receipt, err := d.Verify(context.Background(), url.Values{"trackingCode": {"TRK-OK"}})
		require.NoError(t, err)
		assert.Equal(t, "digipay", receipt.DriverName())
		assert.Equal(t, "TRK-OK", receipt.ReferenceID())
		assert.Equal(t, "123456", receipt.Detail("rrn"))
		assert.Equal(t, "20000", receipt.Detail("amount"))
		assert.Equal(t, "6037-99**-****-1234", receipt.Detail("maskedPan"))
	})

	t.Run("rejected", func(t *testing.T) {
		d, err := New(provider.NewInvoice(1000), cfg)
		require.NoError(t, err)

		receipt, err := d.Verify(context.Background(), url.Values{"trackingCode": {"TRK-BAD"}})
		assert.Nil(t, receipt)
		var ip *provider.InvalidPaymentError
		require.ErrorAs(t, err, &ip)
		assert.Equal(t, verificationError, ip.Message)
		assert.Equal(t, http.StatusBadRequest, ip.Code)
	})

	t.Run("missing tracking code", func(t *testing.T) {
		d, err := New(provider.NewInvoice(1000), cfg)
		require.NoError(t, err)
		before := fake.oauthCalls.Load()

		_, err = d.Verify(context.Background(), url.Values{})
		var ip *provider.InvalidPaymentError
		require.ErrorAs(t, err, &ip)
		assert.Equal(t, 0, ip.Code)
		assert.Equal(t, before, fake.oauthCalls.Load())
	})
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(provider.NewInvoice(1000), map[string]string{"callbackUrl": "https://shop.test/cb"})
	var cfgErr *provider.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "client_id", cfgErr.Key)
}
