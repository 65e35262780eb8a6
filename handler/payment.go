package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/multipay/infra/config"
	"github.com/mstgnz/multipay/infra/response"
	"github.com/mstgnz/multipay/provider"
)

const gatewayTimeout = 45 * time.Second

// PaymentServiceInterface defines the interface for payment operations
type PaymentServiceInterface interface {
	Purchase(ctx context.Context, driverName string, invoice *provider.Invoice) (*provider.PurchaseResult, error)
	Verify(ctx context.Context, driverName string, invoice *provider.Invoice, params provider.CallbackParams) (*provider.Receipt, error)
	Drivers() []string
	RequiredConfig(driverName string) ([]provider.ConfigField, error)
}

// PaymentHandler handles payment related HTTP requests
type PaymentHandler struct {
	paymentService PaymentServiceInterface
	validate       *validator.Validate
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService PaymentServiceInterface, validate *validator.Validate) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		validate:       validate,
	}
}

// InvoiceRequest carries the invoice fields shared by purchase and verify
type InvoiceRequest struct {
	Amount   int64             `json:"amount" validate:"required,gt=0"`
	Currency string            `json:"currency,omitempty"`
	UUID     string            `json:"uuid,omitempty" validate:"omitempty,max=64"`
	Details  map[string]string `json:"details,omitempty"`
}

// PurchaseRequest is the body of POST /v1/payments/{driver}
type PurchaseRequest struct {
	InvoiceRequest
}

// VerifyRequest is the body of POST /v1/payments/{driver}/verify. The caller
// sends back the invoice it purchased along with what the gateway returned.
type VerifyRequest struct {
	InvoiceRequest
	UUID          string            `json:"uuid" validate:"required,max=64"`
	TransactionID string            `json:"transactionId,omitempty"`
	Params        map[string]string `json:"params"`
}

// PurchaseResponse tells the caller where to send the user
type PurchaseResponse struct {
	UUID          string                    `json:"uuid"`
	Driver        string                    `json:"driver"`
	TransactionID string                    `json:"transactionId"`
	Redirect      *provider.RedirectionForm `json:"redirect"`
}

// DriverInfo describes one registered driver
type DriverInfo struct {
	Name   string                 `json:"name"`
	Config []provider.ConfigField `json:"config"`
}

// gatewayErrorData is attached to error responses caused by the gateway
type gatewayErrorData struct {
	Code int `json:"code"`
}

// ListDrivers returns the registered drivers with the settings they accept
func (h *PaymentHandler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	names := h.paymentService.Drivers()
	drivers := make([]DriverInfo, 0, len(names))
	for _, name := range names {
		fields, err := h.paymentService.RequiredConfig(name)
		if err != nil {
			continue
		}
		drivers = append(drivers, DriverInfo{Name: name, Config: fields})
	}

	response.Success(w, http.StatusOK, "Drivers retrieved", drivers)
}

// Purchase registers a payment with the gateway and returns the redirection
func (h *PaymentHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), gatewayTimeout)
	defer cancel()

	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	invoice, err := req.invoice(req.UUID)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	driverName := chi.URLParam(r, "driver")
	result, err := h.paymentService.Purchase(ctx, driverName, invoice)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Payment created", PurchaseResponse{
		UUID:          invoice.UUID(),
		Driver:        result.Driver,
		TransactionID: result.TransactionID,
		Redirect:      result.Form,
	})
}

// Verify confirms a payment after the gateway redirected the user back
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), gatewayTimeout)
	defer cancel()

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	invoice, err := req.invoice(req.UUID)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}
	if req.TransactionID != "" {
		if err := invoice.SetTransactionID(req.TransactionID); err != nil {
			response.Error(w, http.StatusBadRequest, "Validation error", err)
			return
		}
	}

	params := url.Values{}
	for key, value := range req.Params {
		params.Set(key, value)
	}

	driverName := chi.URLParam(r, "driver")
	receipt, err := h.paymentService.Verify(ctx, driverName, invoice, params)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Payment verified", receipt)
}

func (req InvoiceRequest) invoice(uuid string) (*provider.Invoice, error) {
	opts := []provider.InvoiceOption{provider.WithDetails(req.Details)}
	if uuid != "" {
		opts = append(opts, provider.WithUUID(uuid))
	}
	if req.Currency != "" {
		currency, err := provider.ParseCurrency(req.Currency)
		if err != nil {
			return nil, err
		}
		opts = append(opts, provider.WithCurrency(currency))
	}
	return provider.NewInvoice(req.Amount, opts...), nil
}

// writeServiceError maps payment service errors onto HTTP statuses
func writeServiceError(w http.ResponseWriter, err error) {
	var configErr *provider.ConfigError

	switch {
	case errors.Is(err, provider.ErrDriverNotRegistered):
		response.Error(w, http.StatusNotFound, "Unknown payment driver", err)
	case errors.Is(err, config.ErrConfigNotFound):
		response.Error(w, http.StatusServiceUnavailable, "Payment driver is not configured", err)
	case errors.As(err, &configErr):
		response.Error(w, http.StatusInternalServerError, "Payment driver is misconfigured", err)
	case errors.Is(err, context.DeadlineExceeded):
		// transport errors carry the gateway error kind too, the timeout wins
		response.Error(w, http.StatusGatewayTimeout, "Payment gateway timed out", err)
	case errors.Is(err, provider.ErrPurchaseFailed):
		writeGatewayError(w, http.StatusBadGateway, "Purchase failed", err)
	case errors.Is(err, provider.ErrInvalidPayment):
		writeGatewayError(w, http.StatusUnprocessableEntity, "Payment not verified", err)
	default:
		response.Error(w, http.StatusInternalServerError, "Payment operation failed", err)
	}
}

func writeGatewayError(w http.ResponseWriter, status int, message string, err error) {
	response.ErrorWithData(w, status, message, err, gatewayErrorData{Code: provider.CodeOf(err)})
}
