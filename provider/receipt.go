package provider

import (
	"encoding/json"
	"maps"
)

// Receipt is the proof of a verified payment
type Receipt struct {
	driverName  string
	referenceID string
	details     map[string]string
}

// NewReceipt creates a receipt for the given driver and gateway reference
func NewReceipt(driverName, referenceID string) *Receipt {
	return &Receipt{
		driverName:  driverName,
		referenceID: referenceID,
		details:     make(map[string]string),
	}
}

// DriverName returns the driver that produced the receipt
func (r *Receipt) DriverName() string {
	return r.driverName
}

// ReferenceID returns the gateway's tracking number
func (r *Receipt) ReferenceID() string {
	return r.referenceID
}

// Detail returns a single detail or an empty string
func (r *Receipt) Detail(key string) string {
	return r.details[key]
}

// Details returns a copy of all details
func (r *Receipt) Details() map[string]string {
	return maps.Clone(r.details)
}

// SetDetail records a detail. Each key keeps its first value.
func (r *Receipt) SetDetail(key, value string) *Receipt {
	if _, exists := r.details[key]; !exists {
		r.details[key] = value
	}
	return r
}

// MarshalJSON exposes the receipt to API responses
func (r *Receipt) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Driver      string            `json:"driver"`
		ReferenceID string            `json:"referenceId"`
		Details     map[string]string `json:"details,omitempty"`
	}{
		Driver:      r.driverName,
		ReferenceID: r.referenceID,
		Details:     r.details,
	})
}
