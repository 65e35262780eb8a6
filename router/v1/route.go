package v1

import (
	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/multipay/handler"
)

// Handlers groups the v1 endpoint handlers. Logs is nil when payment events
// are not searchable.
type Handlers struct {
	Payment *handler.PaymentHandler
	Config  *handler.ConfigHandler
	Logs    *handler.LogsHandler
}

// Routes registers all API routes
func Routes(r chi.Router, h Handlers) {
	r.Get("/drivers", h.Payment.ListDrivers)

	// Payment routes
	r.Post("/payments/{driver}", h.Payment.Purchase)
	r.Post("/payments/{driver}/verify", h.Payment.Verify)

	// Driver settings
	if h.Config != nil {
		r.Route("/config", func(r chi.Router) {
			r.Get("/stats", h.Config.Stats)
			r.Get("/{driver}", h.Config.GetConfig)
			r.Post("/{driver}", h.Config.SetConfig)
			r.Put("/{driver}", h.Config.SetConfig)
			r.Delete("/{driver}", h.Config.DeleteConfig)
		})
	}

	// Payment event search
	if h.Logs != nil {
		r.Get("/logs/{driver}", h.Logs.ListLogs)
		r.Get("/stats/{driver}", h.Logs.Stats)
	}
}
