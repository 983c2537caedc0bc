// Package logging provides structured logging for the PDU bridge.
//
// It wraps Go's standard log/slog package so every component logs with a
// consistent shape: JSON for production, text for development, and default
// service/version fields on every record.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("poller started", "device", "pdu-01")
//	logger.Error("snmp get failed", "error", err)
//
// Never log SNMP community strings, serial passwords, or the web password.
package logging
