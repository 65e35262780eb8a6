package paystar

import "github.com/mstgnz/multipay/provider"

// Register Paystar driver with the gateway registry
func init() {
	provider.Register(driverName, New, RequiredConfig())
}
