package opensearch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mstgnz/multipay/infra/config"
	"github.com/mstgnz/multipay/infra/logger"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

const (
	indexPrefix     = "multipay-"
	systemLogsIndex = indexPrefix + "system-logs"
)

// Client wraps the OpenSearch client
type Client struct {
	client  *opensearch.Client
	enabled bool
}

// NewClient creates a new OpenSearch client
func NewClient(cfg *config.AppConfig) (*Client, error) {
	opensearchConfig := opensearch.Config{
		Addresses: []string{cfg.OpenSearchURL},
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: !cfg.IsProduction(),
			},
		},
		MaxRetries:    3,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			return time.Duration(i) * 100 * time.Millisecond
		},
	}

	if cfg.OpenSearchUser != "" && cfg.OpenSearchPassword != "" {
		opensearchConfig.Username = cfg.OpenSearchUser
		opensearchConfig.Password = cfg.OpenSearchPassword
	}

	client, err := opensearch.NewClient(opensearchConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	return &Client{
		client:  client,
		enabled: cfg.EnableOpenSearch,
	}, nil
}

// GetClient returns the underlying OpenSearch client
func (c *Client) GetClient() *opensearch.Client {
	return c.client
}

// IsEnabled returns whether OpenSearch logging is enabled
func (c *Client) IsEnabled() bool {
	return c.enabled
}

// Ping checks that the cluster answers
func (c *Client) Ping(ctx context.Context) error {
	res, err := opensearchapi.PingRequest{}.Do(ctx, c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch ping failed: %s", res.Status())
	}
	return nil
}

// GetLogIndexName returns the index holding payment events of a driver
func (c *Client) GetLogIndexName(driver string) string {
	return indexPrefix + strings.ToLower(driver) + "-logs"
}

// SetupIndices creates the payment event index of every driver and the
// system log index when they do not exist yet. Failures on one index are
// logged and do not stop the others.
func (c *Client) SetupIndices(ctx context.Context, drivers []string) error {
	if !c.enabled {
		return nil
	}

	indices := []struct {
		name    string
		mapping string
	}{{systemLogsIndex, systemLogMapping}}
	for _, driver := range drivers {
		indices = append(indices, struct {
			name    string
			mapping string
		}{c.GetLogIndexName(driver), paymentEventMapping})
	}

	var created int
	for _, index := range indices {
		exists, err := c.indexExists(ctx, index.name)
		if err != nil {
			logger.Warn("Failed to check OpenSearch index", logger.LogContext{
				Fields: map[string]any{"index": index.name, "error": err.Error()},
			})
			continue
		}
		if exists {
			continue
		}

		if err := c.createIndex(ctx, index.name, index.mapping); err != nil {
			logger.Warn("Failed to create OpenSearch index", logger.LogContext{
				Fields: map[string]any{"index": index.name, "error": err.Error()},
			})
			continue
		}
		created++
	}

	logger.Info("OpenSearch indices ready", logger.LogContext{
		Fields: map[string]any{"indices": len(indices), "created": created},
	})
	return nil
}

func (c *Client) indexExists(ctx context.Context, indexName string) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{
		Index: []string{indexName},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	return res.StatusCode == http.StatusOK, nil
}

func (c *Client) createIndex(ctx context.Context, indexName, mapping string) error {
	req := opensearchapi.IndicesCreateRequest{
		Index: indexName,
		Body:  strings.NewReader(mapping),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index creation error: %s", res.String())
	}

	return nil
}

const paymentEventMapping = `{
	"mappings": {
		"properties": {
			"timestamp": {"type": "date", "format": "strict_date_optional_time||epoch_millis"},
			"driver": {"type": "keyword"},
			"operation": {"type": "keyword"},
			"outcome": {"type": "keyword"},
			"invoice_uuid": {"type": "keyword"},
			"amount": {"type": "long"},
			"currency": {"type": "keyword"},
			"transaction_id": {"type": "keyword"},
			"reference_id": {"type": "keyword"},
			"code": {"type": "integer"},
			"error": {"type": "text"},
			"duration_ms": {"type": "long"},
			"details": {"type": "object", "dynamic": true}
		}
	},
	"settings": {
		"number_of_shards": 1,
		"number_of_replicas": 0
	}
}`

const systemLogMapping = `{
	"mappings": {
		"properties": {
			"timestamp": {"type": "date", "format": "strict_date_optional_time||epoch_millis"},
			"level": {"type": "keyword"},
			"message": {"type": "text"},
			"component": {"type": "keyword"},
			"provider": {"type": "keyword"},
			"request_id": {"type": "keyword"},
			"error": {"type": "text"},
			"service": {"type": "keyword"},
			"version": {"type": "keyword"},
			"environment": {"type": "keyword"}
		}
	},
	"settings": {
		"number_of_shards": 1,
		"number_of_replicas": 0
	}
}`
