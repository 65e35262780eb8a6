package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/multipay/infra/response"
	"github.com/mstgnz/multipay/provider"
)

const (
	defaultLogHours = 24
	maxLogHours     = 24 * 30
)

// EventSearcher defines the interface for querying recorded payment events
type EventSearcher interface {
	SearchEvents(ctx context.Context, driver string, query map[string]any) ([]provider.PaymentEvent, error)
	GetTransactionEvents(ctx context.Context, driver, transactionID string) ([]provider.PaymentEvent, error)
	GetRecentFailures(ctx context.Context, driver string, hours int) ([]provider.PaymentEvent, error)
	GetDriverStats(ctx context.Context, driver string, hours int) (map[string]any, error)
}

// LogsHandler handles payment event related HTTP requests
type LogsHandler struct {
	searcher EventSearcher
}

// NewLogsHandler creates a new logs handler
func NewLogsHandler(searcher EventSearcher) *LogsHandler {
	return &LogsHandler{
		searcher: searcher,
	}
}

// ListLogs lists payment events of a driver. Supported query parameters are
// transactionId, failuresOnly, operation and hours.
func (h *LogsHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	driverName := chi.URLParam(r, "driver")
	query := r.URL.Query()

	hours, err := parseHours(query.Get("hours"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid hours parameter", err)
		return
	}

	var events []provider.PaymentEvent
	switch {
	case query.Get("transactionId") != "":
		events, err = h.searcher.GetTransactionEvents(ctx, driverName, query.Get("transactionId"))
	case query.Get("failuresOnly") == "true":
		events, err = h.searcher.GetRecentFailures(ctx, driverName, hours)
	default:
		must := []map[string]any{
			{"range": map[string]any{"timestamp": map[string]any{"gte": "now-" + strconv.Itoa(hours) + "h"}}},
		}
		if operation := query.Get("operation"); operation != "" {
			must = append(must, map[string]any{"term": map[string]any{"operation": operation}})
		}
		events, err = h.searcher.SearchEvents(ctx, driverName, map[string]any{"bool": map[string]any{"must": must}})
	}
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to search payment logs", err)
		return
	}

	response.Success(w, http.StatusOK, "Payment logs retrieved", map[string]any{
		"driver": driverName,
		"count":  len(events),
		"events": events,
	})
}

// Stats returns aggregated payment event statistics of a driver
func (h *LogsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	driverName := chi.URLParam(r, "driver")

	hours, err := parseHours(r.URL.Query().Get("hours"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid hours parameter", err)
		return
	}

	stats, err := h.searcher.GetDriverStats(ctx, driverName, hours)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to get payment stats", err)
		return
	}

	response.Success(w, http.StatusOK, "Payment stats retrieved", map[string]any{
		"driver": driverName,
		"hours":  hours,
		"stats":  stats,
	})
}

func parseHours(value string) (int, error) {
	if value == "" {
		return defaultLogHours, nil
	}
	hours, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if hours <= 0 {
		return defaultLogHours, nil
	}
	if hours > maxLogHours {
		return maxLogHours, nil
	}
	return hours, nil
}
