// Package logger provides structured logging for imgfetch.
//
// It wraps the zerolog library behind a small interface with support for:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Pretty console output with colors
// - Optional file output
// - Global logger instance for easy access
//
// Basic usage:
//
//	cfg := &config.LoggingConfig{Level: "info"}
//	err := logger.Initialize(cfg)
//
//	logger.Info("starting search")
//	logger.WithField("query", "sunset").Info("search completed")
//
// Components that need a logger take the Logger interface, so tests can
// pass logger.NewNopLogger() and stay silent.
package logger
