package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/mstgnz/multipay/infra/response"
)

// HealthCheck checks one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// DriverLister reports registered and configured drivers
type DriverLister interface {
	Drivers() []string
}

// ConfiguredLister reports drivers that have settings
type ConfiguredLister interface {
	Names() []string
}

// HealthHandler handles health check requests
type HealthHandler struct {
	drivers     DriverLister
	configured  ConfiguredLister
	checks      map[string]HealthCheck
	version     string
	environment string
	startTime   time.Time
}

// HealthStatus represents overall system health
type HealthStatus struct {
	Status      string                    `json:"status"`
	Version     string                    `json:"version"`
	Timestamp   time.Time                 `json:"timestamp"`
	Uptime      string                    `json:"uptime"`
	Environment string                    `json:"environment"`
	Drivers     map[string]*DriverHealth  `json:"drivers"`
	Services    map[string]*ServiceHealth `json:"services,omitempty"`
	System      *SystemHealth             `json:"system"`
}

// DriverHealth reports whether a registered driver can be used
type DriverHealth struct {
	Configured bool `json:"configured"`
}

// ServiceHealth represents the health of a backing service
type ServiceHealth struct {
	Healthy      bool   `json:"healthy"`
	ResponseTime string `json:"response_time"`
	Error        string `json:"error,omitempty"`
}

// SystemHealth represents process resource usage
type SystemHealth struct {
	Alloc      string `json:"alloc"`
	Sys        string `json:"sys"`
	GCRuns     uint32 `json:"gc_runs"`
	GoRoutines int    `json:"goroutines"`
}

// NewHealthHandler creates a new health handler. checks are optional
// dependency checks keyed by service name (redis, opensearch, ...).
func NewHealthHandler(drivers DriverLister, configured ConfiguredLister, version, environment string, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{
		drivers:     drivers,
		configured:  configured,
		checks:      checks,
		version:     version,
		environment: environment,
		startTime:   time.Now(),
	}
}

// CheckHealth reports driver configuration and backing service health.
// A failing service degrades the status, but the payment flow itself has no
// hard dependency, so the endpoint only answers 503 when no driver is usable.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := &HealthStatus{
		Version:     h.version,
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Environment: h.environment,
		Drivers:     h.checkDrivers(),
		Services:    h.checkServices(ctx),
		System:      checkSystem(),
	}
	health.Status = determineOverallStatus(health)

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	response.Write(w, response.Response{
		Code:    statusCode,
		Success: health.Status != "unhealthy",
		Message: fmt.Sprintf("Service is %s", health.Status),
		Data:    health,
	})
}

func (h *HealthHandler) checkDrivers() map[string]*DriverHealth {
	configured := make(map[string]bool)
	if h.configured != nil {
		for _, name := range h.configured.Names() {
			configured[name] = true
		}
	}

	drivers := make(map[string]*DriverHealth)
	for _, name := range h.drivers.Drivers() {
		drivers[name] = &DriverHealth{Configured: configured[name]}
	}
	return drivers
}

func (h *HealthHandler) checkServices(ctx context.Context) map[string]*ServiceHealth {
	if len(h.checks) == 0 {
		return nil
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	services := make(map[string]*ServiceHealth, len(names))
	for _, name := range names {
		start := time.Now()
		err := h.checks[name](ctx)
		service := &ServiceHealth{
			Healthy:      err == nil,
			ResponseTime: time.Since(start).String(),
		}
		if err != nil {
			service.Error = err.Error()
		}
		services[name] = service
	}
	return services
}

func checkSystem() *SystemHealth {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &SystemHealth{
		Alloc:      formatBytes(memStats.Alloc),
		Sys:        formatBytes(memStats.Sys),
		GCRuns:     memStats.NumGC,
		GoRoutines: runtime.NumGoroutine(),
	}
}

func determineOverallStatus(health *HealthStatus) string {
	configured := 0
	for _, driver := range health.Drivers {
		if driver.Configured {
			configured++
		}
	}
	if configured == 0 {
		return "unhealthy"
	}

	for _, service := range health.Services {
		if !service.Healthy {
			return "degraded"
		}
	}

	return "healthy"
}

func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
