// Package logging provides structured logging for linepush.
//
// Every entry carries service and version attributes; components add their
// own with With, usually "component" and, for delivery, "destination".
// Output is JSON by default and text when logging.format is "text".
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "destinations", 2)
//	logger.Error("failed to connect", "error", err)
//
// # Security
//
// Never log secrets verbatim. Destination tokens and broker passwords go
// through Redact, which keeps only a short prefix:
//
//	logger.Info("destination configured", "token", logging.Redact(dc.Token))
//
// Components built without a logger use Discard rather than a nil check at
// every call site.
package logging
