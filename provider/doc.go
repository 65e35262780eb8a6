// Package provider implements a unified payment interface that abstracts
// several Iranian payment gateways behind a single, consistent API.
//
// # Core Concepts
//
//   - Invoice: what is being paid for; carries the amount, an optional
//     currency tag, free-form details and the write-once transaction id
//   - Driver: the contract every gateway integration implements
//     (Purchase, Pay, Verify)
//   - RedirectionForm: how the user agent reaches the hosted payment page
//   - Receipt: proof of a verified payment
//   - ProviderRegistry: maps driver names to factories and their settings
//   - PaymentService: runs purchase and verify with logging and metrics
//
// # Basic Usage
//
// Drivers register themselves when their package is imported:
//
//	import (
//	    "github.com/mstgnz/multipay/provider"
//	    _ "github.com/mstgnz/multipay/provider/poolam"
//	)
//
//	invoice := provider.NewInvoice(10000, provider.WithCurrency(provider.Toman))
//
//	driver, err := provider.New("poolam", invoice, map[string]string{
//	    "merchantId":  "your-api-key",
//	    "callbackUrl": "https://shop.example/callback",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if _, err := driver.Purchase(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	form, _ := driver.Pay()
//	// send the user to form.URL
//
// After the gateway redirects the user back, build a driver for the same
// invoice and pass the callback parameters to Verify:
//
//	receipt, err := driver.Verify(ctx, r.URL.Query())
//	switch {
//	case errors.Is(err, provider.ErrInvalidPayment):
//	    // payment did not complete
//	case err != nil:
//	    // transport or configuration problem
//	default:
//	    fmt.Println(receipt.ReferenceID())
//	}
//
// # Amounts
//
// Amounts are integers. Every gateway here expects Rial; an invoice tagged
// Toman is multiplied by 10 before it is sent. When the invoice carries no
// currency the driver's "currency" setting decides, and Rial is the default.
//
// # Errors
//
// Gateway rejections during purchase are *PurchaseFailedError and during
// verification *InvalidPaymentError. Both carry the gateway's human readable
// message and numeric code and match ErrPurchaseFailed / ErrInvalidPayment
// through errors.Is.
package provider
