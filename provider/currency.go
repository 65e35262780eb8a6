package provider

import (
	"fmt"
	"strings"
)

// Currency is the unit an amount is expressed in
type Currency string

const (
	Toman Currency = "T"
	Rial  Currency = "R"
)

// ParseCurrency accepts the short tags as well as the common spellings
func ParseCurrency(s string) (Currency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "T", "TOMAN", "IRT":
		return Toman, nil
	case "R", "RIAL", "IRR":
		return Rial, nil
	default:
		return "", fmt.Errorf("unknown currency %q", s)
	}
}

// ToRial converts an amount into Rial, the unit every gateway here expects
func ToRial(amount int64, c Currency) int64 {
	if c == Toman {
		return amount * 10
	}
	return amount
}

// ResolveCurrency picks the invoice currency, then the driver setting, then Rial
func ResolveCurrency(inv *Invoice, settingsCurrency string) Currency {
	if inv.Currency() != "" {
		return inv.Currency()
	}
	if c, err := ParseCurrency(settingsCurrency); err == nil {
		return c
	}
	return Rial
}
