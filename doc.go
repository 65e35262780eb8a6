// Package multipay provides a unified payment gateway for Iranian payment
// providers. Applications talk to one API; multipay talks to the gateways.
//
// # Overview
//
// Every gateway has its own endpoints, authentication scheme, amount unit
// and status vocabulary. multipay hides those differences behind a single
// purchase, pay and verify flow:
//
//	┌─────────────────┐    ┌─────────────────┐    ┌─────────────────┐
//	│                 │    │                 │    │                 │
//	│    Your Apps    │◄──►│    multipay     │◄──►│    Gateways     │
//	│                 │    │                 │    │                 │
//	└─────────────────┘    └─────────────────┘    └─────────────────┘
//
// # Supported Drivers
//
//   - digipay: OAuth password grant, ticket based purchase
//   - jibit: access token exchange, purchase lookup on verify
//   - novinpal: form encoded request and verify
//   - paystar: HMAC-SHA512 signed requests
//   - poolam: API key in the path, Toman and Rial aware
//
// # Library Usage
//
// The provider package can be used without the HTTP server:
//
//	import (
//	    "github.com/mstgnz/multipay/provider"
//	    _ "github.com/mstgnz/multipay/provider/paystar"
//	)
//
//	invoice := provider.NewInvoice(50000, provider.WithCurrency(provider.Toman))
//	driver, err := provider.New("paystar", invoice, map[string]string{
//	    "gatewayId":   "your-gateway-id",
//	    "signKey":     "your-sign-key",
//	    "callbackUrl": "https://shop.example/callback",
//	})
//	if err != nil {
//	    return err
//	}
//	if _, err := driver.Purchase(ctx); err != nil {
//	    return err
//	}
//	form, _ := driver.Pay()
//
// # HTTP API
//
//	# Registered drivers and the settings they accept
//	GET /v1/drivers
//
//	# Start a payment
//	POST /v1/payments/{driver}
//	{"amount": 50000, "currency": "T", "details": {"mobile": "09120000000"}}
//
//	# Verify after the gateway redirected the user back
//	POST /v1/payments/{driver}/verify
//	{"amount": 50000, "currency": "T", "uuid": "...", "transactionId": "...", "params": {...}}
//
//	# Driver settings, values are never returned
//	GET|POST|PUT|DELETE /v1/config/{driver}
//	GET /v1/config/stats
//
//	# Payment events, when OpenSearch is enabled
//	GET /v1/logs/{driver}?transactionId=&failuresOnly=&operation=&hours=
//	GET /v1/stats/{driver}?hours=
//
//	GET /health
//	GET /metrics
//
// # Configuration
//
// The service reads MULTIPAY_* environment variables and an optional
// config.yaml. Driver settings come from the settings API, from SQLite when
// MULTIPAY_SQLITE_PATH is set, and from environment variables named after the
// driver and key:
//
//	POOLAM_MERCHANT_ID=...
//	POOLAM_CALLBACK_URL=https://shop.example/callback
//	DIGIPAY_CLIENT_ID=...
//
// # Security
//
//   - API keys on /v1 as a bearer token or X-API-Key (MULTIPAY_API_KEYS,
//     comma separated so keys can be rotated)
//   - per client IP rate limiting
//   - IP whitelisting
//   - JSON only request bodies with a size cap
package multipay
