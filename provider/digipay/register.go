package digipay

import "github.com/mstgnz/multipay/provider"

// Register Digipay driver with the gateway registry
func init() {
	provider.Register(driverName, New, RequiredConfig())
}
