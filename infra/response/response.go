package response

import (
	"encoding/json"
	"net/http"
)

// RequestIDHeader is the response header whose value is copied into every
// envelope, so clients can quote it without reading headers
const RequestIDHeader = "X-Request-ID"

// Response is a standardized API response structure
type Response struct {
	Code      int    `json:"code"`
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Success writes a successful response with data
func Success(w http.ResponseWriter, statusCode int, message string, data any) {
	Write(w, Response{
		Code:    statusCode,
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error writes an error response
func Error(w http.ResponseWriter, statusCode int, message string, err error) {
	ErrorWithData(w, statusCode, message, err, nil)
}

// ErrorWithData writes an error response that also carries data, e.g. the
// status code a payment gateway answered with
func ErrorWithData(w http.ResponseWriter, statusCode int, message string, err error, data any) {
	resp := Response{
		Code:    statusCode,
		Success: false,
		Message: message,
		Data:    data,
	}

	if err != nil {
		resp.Error = err.Error()
	}

	Write(w, resp)
}

// Write sends resp with resp.Code as the HTTP status
func Write(w http.ResponseWriter, resp Response) {
	if resp.RequestID == "" {
		resp.RequestID = w.Header().Get(RequestIDHeader)
	}
	WriteJSON(w, resp.Code, resp)
}

// WriteJSON writes v as the JSON body with the given status
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
