package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/mstgnz/multipay/infra/logger"
)

// ProviderConfig manages payment driver settings
type ProviderConfig struct {
	configs map[string]map[string]string
	storage *SQLiteStorage // optional persistence
	mu      sync.RWMutex
}

// NewProviderConfig creates a new provider configuration. A nil storage
// keeps everything in memory.
func NewProviderConfig(storage *SQLiteStorage) *ProviderConfig {
	config := &ProviderConfig{
		configs: make(map[string]map[string]string),
		storage: storage,
	}

	if storage != nil {
		if err := config.loadFromSQLite(); err != nil {
			logger.Warn("Failed to load driver settings from SQLite", logger.LogContext{
				Fields: map[string]any{"error": err.Error()},
			})
		}
	}

	return config
}

func (c *ProviderConfig) loadFromSQLite() error {
	configs, err := c.storage.LoadAllConfigs()
	if err != nil {
		return fmt.Errorf("failed to load configs from SQLite: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range configs {
		c.configs[k] = v
	}
	return nil
}

// EnvKey returns the environment variable holding a driver setting,
// e.g. ("poolam", "merchantId") -> POOLAM_MERCHANT_ID
func EnvKey(driver, key string) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(driver))
	b.WriteByte('_')
	for i, r := range key {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// LoadFromEnv reads every listed key of a driver from the environment and
// merges the values found over the current settings. It reports whether
// anything was found.
func (c *ProviderConfig) LoadFromEnv(driver string, keys []string) bool {
	found := make(map[string]string)
	for _, key := range keys {
		if value, ok := os.LookupEnv(EnvKey(driver, key)); ok && value != "" {
			found[key] = value
		}
	}
	if len(found) == 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	merged := make(map[string]string, len(found))
	maps.Copy(merged, c.configs[driver])
	maps.Copy(merged, found)
	c.configs[driver] = merged
	return true
}

// SetConfig replaces the settings of a driver and persists them when storage is available
func (c *ProviderConfig) SetConfig(driver string, config map[string]string) error {
	if driver == "" {
		return fmt.Errorf("driver name cannot be empty")
	}
	if len(config) == 0 {
		return fmt.Errorf("config cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.storage != nil {
		if err := c.storage.SaveConfig(driver, config); err != nil {
			return fmt.Errorf("failed to save config to SQLite: %w", err)
		}
	}

	c.configs[driver] = maps.Clone(config)
	return nil
}

// GetConfig returns a copy of the settings of a driver
func (c *ProviderConfig) GetConfig(driver string) (map[string]string, error) {
	c.mu.RLock()
	config, exists := c.configs[driver]
	c.mu.RUnlock()

	if !exists && c.storage != nil {
		stored, err := c.storage.LoadConfig(driver)
		if err != nil && !errors.Is(err, ErrConfigNotFound) {
			return nil, err
		}
		if err == nil {
			c.mu.Lock()
			c.configs[driver] = stored
			c.mu.Unlock()
			config, exists = stored, true
		}
	}

	if !exists {
		return nil, fmt.Errorf("%w for driver: %s", ErrConfigNotFound, driver)
	}

	return maps.Clone(config), nil
}

// DeleteConfig removes the settings of a driver
func (c *ProviderConfig) DeleteConfig(driver string) error {
	if driver == "" {
		return fmt.Errorf("driver name cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.storage != nil {
		if err := c.storage.DeleteConfig(driver); err != nil && !errors.Is(err, ErrConfigNotFound) {
			return fmt.Errorf("failed to delete config from SQLite: %w", err)
		}
	}

	delete(c.configs, driver)
	return nil
}

// Names returns the drivers that have settings, sorted
func (c *ProviderConfig) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.configs))
	for name := range c.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetStats returns configuration and storage statistics
func (c *ProviderConfig) GetStats() (map[string]any, error) {
	stats := make(map[string]any)

	c.mu.RLock()
	stats["memory_configs"] = len(c.configs)
	c.mu.RUnlock()

	if c.storage != nil {
		sqliteStats, err := c.storage.GetStats()
		if err != nil {
			stats["sqlite_error"] = err.Error()
		} else {
			stats["sqlite"] = sqliteStats
		}
	} else {
		stats["sqlite"] = "not_available"
	}

	return stats, nil
}
