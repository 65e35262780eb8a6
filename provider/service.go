package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mstgnz/multipay/infra/logger"
)

// Operation names used in events and metrics
const (
	OperationPurchase = "purchase"
	OperationVerify   = "verify"
)

// Outcome labels used in events and metrics
const (
	OutcomeSuccess        = "success"
	OutcomePurchaseFailed = "purchase_failed"
	OutcomeInvalidPayment = "invalid_payment"
	OutcomeError          = "error"
)

// SettingsSource supplies the raw settings of a driver
type SettingsSource interface {
	GetConfig(driver string) (map[string]string, error)
}

// PaymentEvent is a single purchase or verify attempt as seen by the service
type PaymentEvent struct {
	Timestamp     time.Time         `json:"timestamp"`
	Driver        string            `json:"driver"`
	Operation     string            `json:"operation"`
	Outcome       string            `json:"outcome"`
	InvoiceUUID   string            `json:"invoice_uuid"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency,omitempty"`
	TransactionID string            `json:"transaction_id,omitempty"`
	ReferenceID   string            `json:"reference_id,omitempty"`
	Code          int               `json:"code,omitempty"`
	Error         string            `json:"error,omitempty"`
	DurationMs    int64             `json:"duration_ms"`
	Details       map[string]string `json:"details,omitempty"`
}

// PaymentLogger receives payment events, e.g. to ship them to a search index
type PaymentLogger interface {
	LogPaymentEvent(ctx context.Context, event PaymentEvent) error
}

// Recorder collects operation metrics
type Recorder interface {
	ObserveOperation(driver, operation, outcome string, duration time.Duration)
}

// PurchaseResult is what the caller needs to send the user to the gateway
type PurchaseResult struct {
	Driver        string           `json:"driver"`
	TransactionID string           `json:"transactionId"`
	Form          *RedirectionForm `json:"redirect"`
}

// PaymentService runs purchase and verify through registered drivers
type PaymentService struct {
	registry *ProviderRegistry
	settings SettingsSource
	events   PaymentLogger
	metrics  Recorder
}

// ServiceOption customizes a PaymentService
type ServiceOption func(*PaymentService)

// WithPaymentLogger sets the event sink
func WithPaymentLogger(l PaymentLogger) ServiceOption {
	return func(s *PaymentService) {
		s.events = l
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(r Recorder) ServiceOption {
	return func(s *PaymentService) {
		s.metrics = r
	}
}

// NewPaymentService creates a new payment service. A nil registry means
// DefaultRegistry.
func NewPaymentService(registry *ProviderRegistry, settings SettingsSource, opts ...ServiceOption) *PaymentService {
	if registry == nil {
		registry = DefaultRegistry
	}
	s := &PaymentService{
		registry: registry,
		settings: settings,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Drivers lists the registered driver names
func (s *PaymentService) Drivers() []string {
	return s.registry.Names()
}

// RequiredConfig returns the settings a driver understands
func (s *PaymentService) RequiredConfig(driverName string) ([]ConfigField, error) {
	return s.registry.RequiredConfig(driverName)
}

// Purchase registers the invoice with the gateway and returns the redirection
func (s *PaymentService) Purchase(ctx context.Context, driverName string, invoice *Invoice) (*PurchaseResult, error) {
	startTime := time.Now()

	result, err := s.purchase(ctx, driverName, invoice)

	event := s.newEvent(OperationPurchase, driverName, invoice, err, startTime)
	s.finish(ctx, event, err)

	return result, err
}

func (s *PaymentService) purchase(ctx context.Context, driverName string, invoice *Invoice) (*PurchaseResult, error) {
	driver, err := s.driver(driverName, invoice)
	if err != nil {
		return nil, err
	}

	transactionID, err := driver.Purchase(ctx)
	if err != nil {
		return nil, err
	}

	form, err := driver.Pay()
	if err != nil {
		return nil, err
	}

	return &PurchaseResult{
		Driver:        driver.Name(),
		TransactionID: transactionID,
		Form:          form,
	}, nil
}

// Verify confirms the payment with the gateway after the user returned
func (s *PaymentService) Verify(ctx context.Context, driverName string, invoice *Invoice, params CallbackParams) (*Receipt, error) {
	startTime := time.Now()

	receipt, err := s.verify(ctx, driverName, invoice, params)

	event := s.newEvent(OperationVerify, driverName, invoice, err, startTime)
	if receipt != nil {
		event.ReferenceID = receipt.ReferenceID()
		event.Details = receipt.Details()
	}
	s.finish(ctx, event, err)

	return receipt, err
}

func (s *PaymentService) verify(ctx context.Context, driverName string, invoice *Invoice, params CallbackParams) (*Receipt, error) {
	driver, err := s.driver(driverName, invoice)
	if err != nil {
		return nil, err
	}
	return driver.Verify(ctx, params)
}

// driver builds a driver instance for one invoice
func (s *PaymentService) driver(driverName string, invoice *Invoice) (Driver, error) {
	if invoice == nil {
		return nil, errors.New("invoice is required")
	}

	factory, err := s.registry.Get(driverName)
	if err != nil {
		return nil, err
	}

	var settings map[string]string
	if s.settings != nil {
		cfg, err := s.settings.GetConfig(driverName)
		if err != nil {
			return nil, fmt.Errorf("failed to load settings for %s: %w", driverName, err)
		}
		settings = cfg
	}

	return factory(invoice, settings)
}

func (s *PaymentService) newEvent(operation, driverName string, invoice *Invoice, err error, startTime time.Time) PaymentEvent {
	event := PaymentEvent{
		Timestamp:  startTime.UTC(),
		Driver:     driverName,
		Operation:  operation,
		Outcome:    OutcomeOf(err),
		DurationMs: time.Since(startTime).Milliseconds(),
	}
	if invoice != nil {
		event.InvoiceUUID = invoice.UUID()
		event.Amount = invoice.Amount()
		event.Currency = string(invoice.Currency())
		event.TransactionID = invoice.TransactionID()
	}
	if err != nil {
		event.Error = err.Error()
		event.Code = CodeOf(err)
	}
	return event
}

func (s *PaymentService) finish(ctx context.Context, event PaymentEvent, err error) {
	logCtx := logger.LogContext{
		Provider: event.Driver,
		Fields: map[string]any{
			"operation":      event.Operation,
			"outcome":        event.Outcome,
			"invoice_uuid":   event.InvoiceUUID,
			"transaction_id": event.TransactionID,
			"duration_ms":    event.DurationMs,
		},
	}

	switch event.Outcome {
	case OutcomeSuccess:
		logger.Info("Payment "+event.Operation+" completed", logCtx)
	case OutcomeError:
		logger.Error("Payment "+event.Operation+" failed", err, logCtx)
	default:
		logCtx.Fields["code"] = event.Code
		logCtx.Fields["error"] = event.Error
		logger.Warn("Payment "+event.Operation+" rejected by gateway", logCtx)
	}

	if s.metrics != nil {
		s.metrics.ObserveOperation(event.Driver, event.Operation, event.Outcome, time.Duration(event.DurationMs)*time.Millisecond)
	}

	if s.events != nil {
		if logErr := s.events.LogPaymentEvent(ctx, event); logErr != nil {
			logger.Warn("Failed to log payment event", logger.LogContext{
				Provider: event.Driver,
				Fields: map[string]any{
					"operation": event.Operation,
					"error":     logErr.Error(),
				},
			})
		}
	}
}

// OutcomeOf classifies an operation error
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrPurchaseFailed):
		return OutcomePurchaseFailed
	case errors.Is(err, ErrInvalidPayment):
		return OutcomeInvalidPayment
	default:
		return OutcomeError
	}
}

// CodeOf extracts the gateway code from a typed error, 0 otherwise
func CodeOf(err error) int {
	var pf *PurchaseFailedError
	if errors.As(err, &pf) {
		return pf.Code
	}
	var ip *InvalidPaymentError
	if errors.As(err, &ip) {
		return ip.Code
	}
	return 0
}
