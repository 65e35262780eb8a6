package novinpal

import (
	"context"
	"hash/crc32"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/mstgnz/multipay/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings(serverURL string) map[string]string {
	return map[string]string{
		"merchantId":         "test-key",
		"callbackUrl":        "https://shop.test/callback",
		"apiPurchaseUrl":     serverURL + "/invoice/request",
		"apiPaymentUrl":      serverURL + "/invoice/start/",
		"apiVerificationUrl": serverURL + "/invoice/verify",
	}
}

func newDriver(t *testing.T, inv *provider.Invoice, cfg map[string]string) *Novinpal {
	t.Helper()
	d, err := New(inv, cfg)
	require.NoError(t, err)
	return d.(*Novinpal)
}

func TestPurchase_OnlyMobileIsSent(t *testing.T) {
	var received url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		received = r.PostForm
		_, _ = w.Write([]byte(`{"status":1,"refId":"REF-1"}`))
	}))
	defer server.Close()

	inv := provider.NewInvoice(2000, provider.WithDetail("mobile", "09120000000"))
	d := newDriver(t, inv, testSettings(server.URL))

	id, err := d.Purchase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "REF-1", id)

	keys := make([]string, 0, len(received))
	for k := range received {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"amount", "api_key", "mobile", "order_id", "return_url"}, keys)
	assert.Equal(t, "09120000000", received.Get("mobile"))
	assert.Equal(t, "2000", received.Get("amount"))
}

func TestPurchase_OptionalFallbackToSettings(t *testing.T) {
	var received url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		received = r.PostForm
		_, _ = w.Write([]byte(`{"status":1,"refId":"REF-2"}`))
	}))
	defer server.Close()

	cfg := testSettings(server.URL)
	cfg["description"] = "default description"
	cfg["mobile"] = "09350000000"
	cfg["currency"] = "T"

	inv := provider.NewInvoice(2000, provider.WithDetail("mobile", "09120000000"))
	d := newDriver(t, inv, cfg)

	_, err := d.Purchase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "09120000000", received.Get("mobile"))
	assert.Equal(t, "default description", received.Get("description"))
	assert.False(t, received.Has("card_number"))
	assert.Equal(t, "20000", received.Get("amount"))
}

func TestOrderID(t *testing.T) {
	fixed := time.Unix(1700000000, 0)

	t.Run("generated", func(t *testing.T) {
		inv := provider.NewInvoice(1, provider.WithUUID("order-uuid"))
		d := newDriver(t, inv, testSettings("https://novinpal.test"))
		d.now = func() time.Time { return fixed }

		want := strconv.FormatUint(uint64(crc32.ChecksumIEEE([]byte("order-uuid"))), 10) + "1700000000"
		assert.Equal(t, want, d.orderID())
	})

	t.Run("orderId detail", func(t *testing.T) {
		inv := provider.NewInvoice(1, provider.WithDetail("orderId", "A-1"), provider.WithDetail("order_id", "B-2"))
		d := newDriver(t, inv, testSettings("https://novinpal.test"))
		assert.Equal(t, "A-1", d.orderID())
	})

	t.Run("order_id detail", func(t *testing.T) {
		inv := provider.NewInvoice(1, provider.WithDetail("order_id", "B-2"))
		d := newDriver(t, inv, testSettings("https://novinpal.test"))
		assert.Equal(t, "B-2", d.orderID())
	})
}

func TestPurchase_Failed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":0,"errorCode":102,"errorDescription":"api_key نامعتبر است"}`))
	}))
	defer server.Close()

	inv := provider.NewInvoice(1000)
	d := newDriver(t, inv, testSettings(server.URL))

	_, err := d.Purchase(context.Background())
	var pf *provider.PurchaseFailedError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, "api_key نامعتبر است", pf.Message)
	assert.Equal(t, 102, pf.Code)

	_, err = d.Pay()
	assert.ErrorIs(t, err, provider.ErrTransactionIDMissing)
}

func TestPay(t *testing.T) {
	inv := provider.NewInvoice(1000)
	require.NoError(t, inv.SetTransactionID("REF-9"))
	d := newDriver(t, inv, testSettings("https://novinpal.test"))

	form, err := d.Pay()
	require.NoError(t, err)
	assert.Equal(t, "https://novinpal.test/invoice/start/REF-9", form.URL)
	assert.Equal(t, http.MethodGet, form.Method)
}

func TestVerify_CallbackFailure(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	tests := []struct {
		code string
		want string
	}{
		{"109", "تراکنش ناموفق بود"},
		{"104", "در انتظار پردخت"},
		{"122", "حساب کاربری پذیرنده یافت نشد"},
		{"999", unknownError},
		{"", unknownError},
	}

	for _, tt := range tests {
		t.Run("code "+tt.code, func(t *testing.T) {
			d := newDriver(t, provider.NewInvoice(1000), testSettings(server.URL))
			receipt, err := d.Verify(context.Background(), url.Values{"success": {"0"}, "code": {tt.code}})
			assert.Nil(t, receipt)
			var ip *provider.InvalidPaymentError
			require.ErrorAs(t, err, &ip)
			assert.Equal(t, tt.want, ip.Message)
		})
	}

	assert.Zero(t, calls)
}

func TestVerify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/invoice/verify", r.URL.Path)
		assert.Equal(t, "test-key", r.PostForm.Get("api_key"))
		switch r.PostForm.Get("ref_id") {
		case "REF-OK":
			_, _ = w.Write([]byte(`{"status":1,"refNumber":"987654","invoiceNumber":"555","cardNumber":"603799******1234","paidAt":"2024-01-01 10:00:00"}`))
		case "REF-BARE":
			_, _ = w.Write([]byte(`{"status":1}`))
		default:
			_, _ = w.Write([]byte(`{"status":0,"errorCode":201,"errorDescription":"قبلا تایید شده"}`))
		}
	}))
	defer server.Close()

	t.Run("success with stored ref id", func(t *testing.T) {
		inv := provider.NewInvoice(1000)
		require.NoError(t, inv.SetTransactionID("REF-OK"))
		d := newDriver(t, inv, testSettings(server.URL))

		receipt, err := d.Verify(context.Background(), url.Values{"success": {"1"}, "refId": {"REF-OTHER"}})
		require.NoError(t, err)
		assert.Equal(t, "novinpal", receipt.DriverName())
		assert.Equal(t, "987654", receipt.ReferenceID())
		assert.Equal(t, "555", receipt.Detail("invoiceNumber"))
		assert.Equal(t, "603799******1234", receipt.Detail("cardNumber"))
		assert.Equal(t, "2024-01-01 10:00:00", receipt.Detail("paidAt"))
	})

	t.Run("ref id from callback", func(t *testing.T) {
		d := newDriver(t, provider.NewInvoice(1000), testSettings(server.URL))
		receipt, err := d.Verify(context.Background(), url.Values{"success": {"1"}, "refId": {"REF-OK"}})
		require.NoError(t, err)
		assert.Equal(t, "987654", receipt.ReferenceID())
	})

	t.Run("missing refNumber falls back to ref id", func(t *testing.T) {
		d := newDriver(t, provider.NewInvoice(1000), testSettings(server.URL))
		receipt, err := d.Verify(context.Background(), url.Values{"success": {"1"}, "refId": {"REF-BARE"}})
		require.NoError(t, err)
		assert.Equal(t, "REF-BARE", receipt.ReferenceID())
	})

	t.Run("gateway rejects", func(t *testing.T) {
		d := newDriver(t, provider.NewInvoice(1000), testSettings(server.URL))
		_, err := d.Verify(context.Background(), url.Values{"success": {"1"}, "refId": {"REF-BAD"}})
		var ip *provider.InvalidPaymentError
		require.ErrorAs(t, err, &ip)
		assert.Equal(t, "قبلا تایید شده", ip.Message)
		assert.Equal(t, 201, ip.Code)
	})

	t.Run("no ref id", func(t *testing.T) {
		d := newDriver(t, provider.NewInvoice(1000), testSettings(server.URL))
		_, err := d.Verify(context.Background(), url.Values{"success": {"1"}})
		assert.ErrorIs(t, err, provider.ErrMissingCallbackParam)
	})
}
