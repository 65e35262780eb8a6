package novinpal

import "github.com/mstgnz/multipay/provider"

// Register Novinpal driver with the gateway registry
func init() {
	provider.Register(driverName, New, RequiredConfig())
}
