package poolam

import "github.com/mstgnz/multipay/provider"

// Register Poolam driver with the gateway registry
func init() {
	provider.Register(driverName, New, RequiredConfig())
}
