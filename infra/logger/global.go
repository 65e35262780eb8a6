package logger

import (
	"sync"
)

var (
	globalLogger *SystemLogger
	globalMu     sync.RWMutex
	once         sync.Once
)

// DefaultConfig is the console-only configuration used before initialization
func DefaultConfig() SystemLoggerConfig {
	return SystemLoggerConfig{
		EnableConsole: true,
		MinLevel:      LevelInfo,
		Format:        "json",
		Service:       "multipay",
		Version:       "1.0.0",
		Environment:   "development",
	}
}

// InitGlobalLogger initializes the global system logger. Only the first call
// has an effect.
func InitGlobalLogger(config SystemLoggerConfig, sink Sink) {
	once.Do(func() {
		if config.Service == "" {
			config.Service = "multipay"
		}
		if config.Version == "" {
			config.Version = "1.0.0"
		}
		if config.Environment == "" {
			config.Environment = "development"
		}

		globalMu.Lock()
		globalLogger = NewSystemLogger(sink, config)
		globalMu.Unlock()
	})
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *SystemLogger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		// Fallback to console-only logger if not initialized
		globalLogger = NewSystemLogger(nil, DefaultConfig())
	}
	return globalLogger
}

// Convenience functions for global logging

// Debug logs a debug message using the global logger
func Debug(message string, ctx ...LogContext) {
	GetGlobalLogger().Debug(message, ctx...)
}

// Info logs an info message using the global logger
func Info(message string, ctx ...LogContext) {
	GetGlobalLogger().Info(message, ctx...)
}

// Warn logs a warning message using the global logger
func Warn(message string, ctx ...LogContext) {
	GetGlobalLogger().Warn(message, ctx...)
}

// Error logs an error message using the global logger
func Error(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Error(message, err, ctx...)
}

// Fatal logs a fatal message using the global logger and exits
func Fatal(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Fatal(message, err, ctx...)
}

// WithContext creates a context logger from the global logger
func WithContext(ctx LogContext) *ContextLogger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithProvider creates a context logger with provider
func WithProvider(provider string) *ContextLogger {
	return WithContext(LogContext{Provider: provider})
}

// WithRequest creates a context logger with request ID
func WithRequest(requestID string) *ContextLogger {
	return WithContext(LogContext{RequestID: requestID})
}
