// Package logging provides structured logging for SmartLight Core.
//
// It wraps Go's standard log/slog package so every component logs with
// the same format, level filtering, and default fields (service,
// version).
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 8080)
//	logger.Error("failed to connect", "error", err)
//
// Never log secrets, tokens, passwords, or device credentials.
package logging
