package jibit

import "github.com/mstgnz/multipay/provider"

// Register Jibit driver with the gateway registry
func init() {
	provider.Register(driverName, New, RequiredConfig())
}
