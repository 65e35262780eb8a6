package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mstgnz/multipay/infra/logger"
	"github.com/mstgnz/multipay/provider"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

const redacted = "***REDACTED***"

// Detail keys that never reach the index in clear text
var sensitiveKeys = []string{
	"password", "secret", "token", "apikey", "api_key", "sign", "cvv", "cvc",
}

// Logger ships payment events and system logs to OpenSearch
type Logger struct {
	client *Client
}

// NewLogger creates a new OpenSearch logger
func NewLogger(client *Client) *Logger {
	return &Logger{
		client: client,
	}
}

// LogPaymentEvent indexes one purchase or verify attempt in the driver's index
func (l *Logger) LogPaymentEvent(ctx context.Context, event provider.PaymentEvent) error {
	if !l.client.IsEnabled() {
		return nil
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.Details = SanitizeDetails(event.Details)

	return l.index(ctx, l.client.GetLogIndexName(event.Driver), uuid.New().String(), event)
}

// LogSystemEvent indexes a system log entry
func (l *Logger) LogSystemEvent(ctx context.Context, entry logger.SystemLog) error {
	if !l.client.IsEnabled() {
		return nil
	}
	return l.index(ctx, systemLogsIndex, "", entry)
}

func (l *Logger) index(ctx context.Context, indexName, documentID string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index:      indexName,
		DocumentID: documentID,
		Body:       bytes.NewReader(body),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch error: %s", res.String())
	}

	return nil
}

// SearchEvents searches the payment events of a driver, newest first
func (l *Logger) SearchEvents(ctx context.Context, driver string, query map[string]any) ([]provider.PaymentEvent, error) {
	if !l.client.IsEnabled() {
		return nil, fmt.Errorf("logging is disabled")
	}

	if len(query) == 0 {
		query = map[string]any{"match_all": map[string]any{}}
	}

	searchQuery := map[string]any{
		"query": query,
		"sort": []map[string]any{
			{"timestamp": map[string]string{"order": "desc"}},
		},
		"size": 100,
	}

	queryJSON, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{l.client.GetLogIndexName(driver)},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("opensearch search error: %s", res.String())
	}

	var searchResult struct {
		Hits struct {
			Hits []struct {
				Source provider.PaymentEvent `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&searchResult); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}

	events := make([]provider.PaymentEvent, len(searchResult.Hits.Hits))
	for i, hit := range searchResult.Hits.Hits {
		events[i] = hit.Source
	}

	return events, nil
}

// GetTransactionEvents returns the events recorded for one gateway transaction id
func (l *Logger) GetTransactionEvents(ctx context.Context, driver, transactionID string) ([]provider.PaymentEvent, error) {
	query := map[string]any{
		"term": map[string]any{
			"transaction_id": transactionID,
		},
	}

	return l.SearchEvents(ctx, driver, query)
}

// GetRecentFailures returns events of the last hours that did not succeed
func (l *Logger) GetRecentFailures(ctx context.Context, driver string, hours int) ([]provider.PaymentEvent, error) {
	query := map[string]any{
		"bool": map[string]any{
			"must": []map[string]any{
				{
					"range": map[string]any{
						"timestamp": map[string]any{
							"gte": fmt.Sprintf("now-%dh", hours),
						},
					},
				},
			},
			"must_not": []map[string]any{
				{
					"term": map[string]any{
						"outcome": provider.OutcomeSuccess,
					},
				},
			},
		},
	}

	return l.SearchEvents(ctx, driver, query)
}

// GetDriverStats aggregates the events of the last hours by operation and outcome
func (l *Logger) GetDriverStats(ctx context.Context, driver string, hours int) (map[string]any, error) {
	if !l.client.IsEnabled() {
		return nil, fmt.Errorf("logging is disabled")
	}

	aggQuery := map[string]any{
		"query": map[string]any{
			"range": map[string]any{
				"timestamp": map[string]any{
					"gte": fmt.Sprintf("now-%dh", hours),
				},
			},
		},
		"aggs": map[string]any{
			"operations": map[string]any{
				"terms": map[string]any{"field": "operation", "size": 10},
				"aggs": map[string]any{
					"outcomes": map[string]any{
						"terms": map[string]any{"field": "outcome", "size": 10},
					},
				},
			},
			"avg_duration_ms": map[string]any{
				"avg": map[string]any{"field": "duration_ms"},
			},
			"codes": map[string]any{
				"terms": map[string]any{"field": "code", "size": 20},
			},
		},
		"size": 0,
	}

	queryJSON, err := json.Marshal(aggQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal aggregation query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{l.client.GetLogIndexName(driver)},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return nil, fmt.Errorf("aggregation search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("opensearch aggregation error: %s", res.String())
	}

	var result struct {
		Aggregations map[string]any `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode aggregation results: %w", err)
	}

	return result.Aggregations, nil
}

// SanitizeDetails returns a copy of details with credential-like values redacted
func SanitizeDetails(details map[string]string) map[string]string {
	if len(details) == 0 {
		return details
	}

	out := make(map[string]string, len(details))
	for key, value := range details {
		if isSensitive(key) {
			out[key] = redacted
			continue
		}
		out[key] = value
	}
	return out
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
