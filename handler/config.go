package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/multipay/infra/config"
	"github.com/mstgnz/multipay/infra/response"
	"github.com/mstgnz/multipay/provider"
)

// SettingsStore is the driver settings store the config endpoints manage
type SettingsStore interface {
	SetConfig(driver string, config map[string]string) error
	GetConfig(driver string) (map[string]string, error)
	DeleteConfig(driver string) error
	Names() []string
	GetStats() (map[string]any, error)
}

// ConfigHandler handles driver settings related HTTP requests
type ConfigHandler struct {
	store    SettingsStore
	registry *provider.ProviderRegistry
}

// NewConfigHandler creates a new config handler. A nil registry means the default one.
func NewConfigHandler(store SettingsStore, registry *provider.ProviderRegistry) *ConfigHandler {
	if registry == nil {
		registry = provider.DefaultRegistry
	}
	return &ConfigHandler{
		store:    store,
		registry: registry,
	}
}

// ConfigStatus reports which settings a driver has, never their values
type ConfigStatus struct {
	Driver     string   `json:"driver"`
	Configured bool     `json:"configured"`
	Keys       []string `json:"keys,omitempty"`
	Missing    []string `json:"missing,omitempty"`
}

// SetConfig validates and stores the settings of a driver
func (h *ConfigHandler) SetConfig(w http.ResponseWriter, r *http.Request) {
	driverName := chi.URLParam(r, "driver")

	fields, err := h.registry.RequiredConfig(driverName)
	if err != nil {
		response.Error(w, http.StatusNotFound, "Unknown payment driver", err)
		return
	}

	var settings map[string]string
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := provider.ValidateConfigFields(driverName, settings, fields); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid driver configuration", err)
		return
	}

	if err := h.store.SetConfig(driverName, settings); err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to save driver configuration", err)
		return
	}

	response.Success(w, http.StatusOK, "Driver configured", h.status(driverName, fields))
}

// GetConfig reports the configuration state of a driver
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	driverName := chi.URLParam(r, "driver")

	fields, err := h.registry.RequiredConfig(driverName)
	if err != nil {
		response.Error(w, http.StatusNotFound, "Unknown payment driver", err)
		return
	}

	response.Success(w, http.StatusOK, "Driver configuration retrieved", h.status(driverName, fields))
}

// DeleteConfig removes the settings of a driver
func (h *ConfigHandler) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	driverName := chi.URLParam(r, "driver")

	if err := h.store.DeleteConfig(driverName); err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to delete driver configuration", err)
		return
	}

	response.Success(w, http.StatusOK, "Driver configuration deleted", nil)
}

// Stats returns settings storage statistics
func (h *ConfigHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats()
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to get configuration stats", err)
		return
	}
	stats["configured_drivers"] = h.store.Names()

	response.Success(w, http.StatusOK, "Configuration stats retrieved", stats)
}

func (h *ConfigHandler) status(driverName string, fields []provider.ConfigField) ConfigStatus {
	status := ConfigStatus{Driver: driverName}

	settings, err := h.store.GetConfig(driverName)
	if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return status
	}

	for _, field := range fields {
		if settings[field.Key] != "" {
			status.Keys = append(status.Keys, field.Key)
		} else if field.Required {
			status.Missing = append(status.Missing, field.Key)
		}
	}
	status.Configured = len(settings) > 0 && len(status.Missing) == 0
	return status
}
