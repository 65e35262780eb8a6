package provider

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateConfigFields(t *testing.T) {
	fields := []ConfigField{
		{Key: "merchantId", Required: true, Type: "string", MinLength: 4},
		{Key: "callbackUrl", Required: true, Type: "url"},
		{Key: "currency", Required: false, Type: "currency"},
		{Key: "timeout", Required: false, Type: "duration"},
		{Key: "sandbox", Required: false, Type: "boolean"},
		{Key: "gatewayId", Required: false, Type: "string", Pattern: `^[a-z0-9]+$`, MaxLength: 8},
	}

	valid := map[string]string{
		"merchantId":  "merchant",
		"callbackUrl": "https://shop.test/callback",
	}

	tests := []struct {
		name    string
		config  map[string]string
		wantErr string
	}{
		{name: "minimal valid config", config: valid},
		{
			name:    "missing required key",
			config:  map[string]string{"callbackUrl": "https://shop.test/callback"},
			wantErr: "test: field 'merchantId' is missing",
		},
		{
			name:    "empty required key",
			config:  map[string]string{"merchantId": "  ", "callbackUrl": "https://shop.test/callback"},
			wantErr: "test: field 'merchantId' cannot be empty",
		},
		{
			name:    "relative callback url",
			config:  map[string]string{"merchantId": "merchant", "callbackUrl": "/callback"},
			wantErr: "test: field 'callbackUrl' must be an absolute URL",
		},
		{
			name:    "bad currency",
			config:  merge(valid, map[string]string{"currency": "USD"}),
			wantErr: "test: field 'currency' must be T or R",
		},
		{
			name:    "bad duration",
			config:  merge(valid, map[string]string{"timeout": "soon"}),
			wantErr: "test: field 'timeout' must be a duration like 30s",
		},
		{
			name:    "bad boolean",
			config:  merge(valid, map[string]string{"sandbox": "yes"}),
			wantErr: "test: field 'sandbox' must be 'true' or 'false'",
		},
		{
			name:    "pattern mismatch",
			config:  merge(valid, map[string]string{"gatewayId": "ABC"}),
			wantErr: "test: field 'gatewayId' does not match required pattern",
		},
		{
			name:    "too long",
			config:  merge(valid, map[string]string{"gatewayId": "abcdefghij"}),
			wantErr: "test: field 'gatewayId' is too long",
		},
		{
			name:    "too short",
			config:  map[string]string{"merchantId": "m", "callbackUrl": "https://shop.test/callback"},
			wantErr: "test: field 'merchantId' is too short",
		},
		{
			name:   "optional empty values are skipped",
			config: merge(valid, map[string]string{"currency": "", "timeout": ""}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfigFields("test", tt.config, fields)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
			var cfgErr *ConfigError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	fields := []ConfigField{
		{Key: "apiBaseUrl", Default: "https://napi.jibit.ir/ppg/v3"},
		{Key: "tokenTTL", Default: "23h"},
		{Key: "apiKey"},
	}

	settings := ApplyDefaults(map[string]string{"apiKey": "k", "tokenTTL": "1h"}, fields)

	assert.Equal(t, "https://napi.jibit.ir/ppg/v3", settings.Get("apiBaseUrl"))
	assert.Equal(t, "1h", settings.Get("tokenTTL"))
	assert.Equal(t, "k", settings.Get("apiKey"))
	assert.Equal(t, time.Hour, settings.Duration("tokenTTL", time.Minute))
	assert.Equal(t, time.Minute, settings.Duration("missing", time.Minute))
}

func merge(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
