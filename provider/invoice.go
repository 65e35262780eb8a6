package provider

import (
	"maps"

	"github.com/google/uuid"
)

// Invoice describes what is being paid for. The uuid is fixed at
// construction and the transaction id can be written exactly once.
type Invoice struct {
	uuid          string
	amount        int64
	currency      Currency
	details       map[string]string
	transactionID string
}

// InvoiceOption customizes a new invoice
type InvoiceOption func(*Invoice)

// WithUUID sets a caller-chosen unique identifier
func WithUUID(id string) InvoiceOption {
	return func(i *Invoice) {
		i.uuid = id
	}
}

// WithCurrency sets the unit the amount is expressed in
func WithCurrency(c Currency) InvoiceOption {
	return func(i *Invoice) {
		i.currency = c
	}
}

// WithDetail adds a single detail
func WithDetail(key, value string) InvoiceOption {
	return func(i *Invoice) {
		i.details[key] = value
	}
}

// WithDetails merges the given details
func WithDetails(details map[string]string) InvoiceOption {
	return func(i *Invoice) {
		maps.Copy(i.details, details)
	}
}

// NewInvoice creates an invoice; a random uuid is generated when none is given
func NewInvoice(amount int64, opts ...InvoiceOption) *Invoice {
	inv := &Invoice{
		amount:  amount,
		details: make(map[string]string),
	}
	for _, opt := range opts {
		opt(inv)
	}
	if inv.uuid == "" {
		inv.uuid = uuid.New().String()
	}
	return inv
}

// UUID returns the invoice identifier
func (i *Invoice) UUID() string {
	return i.uuid
}

// Amount returns the amount in the invoice's own currency unit
func (i *Invoice) Amount() int64 {
	return i.amount
}

// Currency returns the currency tag, empty when the driver settings decide
func (i *Invoice) Currency() Currency {
	return i.currency
}

// Detail returns a single detail or an empty string
func (i *Invoice) Detail(key string) string {
	return i.details[key]
}

// Details returns a copy of all details
func (i *Invoice) Details() map[string]string {
	return maps.Clone(i.details)
}

// SetDetail stores a detail, overwriting any previous value
func (i *Invoice) SetDetail(key, value string) {
	i.details[key] = value
}

// TransactionID returns the gateway transaction id, empty before purchase
func (i *Invoice) TransactionID() string {
	return i.transactionID
}

// HasTransactionID reports whether purchase already stored an id
func (i *Invoice) HasTransactionID() bool {
	return i.transactionID != ""
}

// SetTransactionID stores the gateway transaction id. It can only be set once.
func (i *Invoice) SetTransactionID(id string) error {
	if id == "" {
		return ErrTransactionIDEmpty
	}
	if i.transactionID != "" {
		return ErrTransactionIDAlreadySet
	}
	i.transactionID = id
	return nil
}
