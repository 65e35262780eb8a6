package config

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mstgnz/multipay/infra/logger"
)

// ErrConfigNotFound is returned when no settings are stored for a driver
var ErrConfigNotFound = errors.New("no configuration found")

// SQLiteStorage persists driver settings between restarts
type SQLiteStorage struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// retryOperation executes a database operation with retry logic for SQLITE_BUSY errors
func (s *SQLiteStorage) retryOperation(operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if !strings.Contains(err.Error(), "SQLITE_BUSY") && !strings.Contains(err.Error(), "database is locked") {
			return err
		}

		lastErr = err
		if attempt < maxRetries {
			// 10ms, 20ms, 40ms
			backoff := time.Duration(10*(1<<attempt)) * time.Millisecond
			logger.Debug("SQLite busy, retrying", logger.LogContext{
				Fields: map[string]any{"backoff": backoff.String(), "attempt": attempt + 1},
			})
			time.Sleep(backoff)
		}
	}

	return fmt.Errorf("operation failed after %d retries, last error: %w", maxRetries+1, lastErr)
}

// NewSQLiteStorage opens (or creates) the settings database at dbPath
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_timeout=20000&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	storage := &SQLiteStorage{
		db:   db,
		path: dbPath,
	}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite settings storage initialized", logger.LogContext{
		Fields: map[string]any{"path": dbPath},
	})
	return storage, nil
}

func (s *SQLiteStorage) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS driver_configs (
		driver TEXT PRIMARY KEY,
		config_data TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(query)
	return err
}

// SaveConfig stores the settings of a driver, replacing what was there
func (s *SQLiteStorage) SaveConfig(driver string, config map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return s.retryOperation(func() error {
		query := `
		INSERT INTO driver_configs (driver, config_data, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(driver)
		DO UPDATE SET
			config_data = excluded.config_data,
			updated_at = CURRENT_TIMESTAMP
		`

		if _, err := s.db.Exec(query, driver, string(configJSON)); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		return nil
	}, 3)
}

// LoadConfig returns the stored settings of a driver
func (s *SQLiteStorage) LoadConfig(driver string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var config map[string]string
	err := s.retryOperation(func() error {
		var configJSON string
		err := s.db.QueryRow(`SELECT config_data FROM driver_configs WHERE driver = ?`, driver).Scan(&configJSON)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w for driver: %s", ErrConfigNotFound, driver)
			}
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := json.Unmarshal([]byte(configJSON), &config); err != nil {
			return fmt.Errorf("failed to unmarshal config: %w", err)
		}
		return nil
	}, 3)

	return config, err
}

// LoadAllConfigs returns every stored driver's settings keyed by driver name
func (s *SQLiteStorage) LoadAllConfigs() (map[string]map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var configs map[string]map[string]string
	err := s.retryOperation(func() error {
		rows, err := s.db.Query(`SELECT driver, config_data FROM driver_configs ORDER BY driver`)
		if err != nil {
			return fmt.Errorf("failed to query configs: %w", err)
		}
		defer rows.Close()

		configs = make(map[string]map[string]string)
		for rows.Next() {
			var driver, configJSON string
			if err := rows.Scan(&driver, &configJSON); err != nil {
				return fmt.Errorf("failed to scan row: %w", err)
			}

			var config map[string]string
			if err := json.Unmarshal([]byte(configJSON), &config); err != nil {
				logger.Warn("Skipping unreadable driver config", logger.LogContext{
					Provider: driver,
					Fields:   map[string]any{"error": err.Error()},
				})
				continue
			}
			configs[driver] = config
		}

		return rows.Err()
	}, 3)

	if err != nil {
		return nil, err
	}
	return configs, nil
}

// DeleteConfig removes the stored settings of a driver
func (s *SQLiteStorage) DeleteConfig(driver string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.retryOperation(func() error {
		result, err := s.db.Exec(`DELETE FROM driver_configs WHERE driver = ?`, driver)
		if err != nil {
			return fmt.Errorf("failed to delete config: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("%w for driver: %s", ErrConfigNotFound, driver)
		}
		return nil
	}, 3)
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GetStats returns database statistics
func (s *SQLiteStorage) GetStats() (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[string]any)

	var totalConfigs int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM driver_configs").Scan(&totalConfigs); err != nil {
		return nil, fmt.Errorf("failed to count configs: %w", err)
	}
	stats["total_configs"] = totalConfigs

	if fileInfo, err := os.Stat(s.path); err == nil {
		stats["db_size_bytes"] = fileInfo.Size()
	}
	stats["db_path"] = s.path

	return stats, nil
}
