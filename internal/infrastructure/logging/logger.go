package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/linepush/internal/infrastructure/config"
)

// serviceName is attached to every log entry.
const serviceName = "linepush"

// Logger is the process-wide structured logger. *Logger satisfies the
// narrow Logger interfaces declared by the sensor, influxdb, scheduler and
// mqtt packages, so those packages never import slog configuration.
type Logger struct {
	*slog.Logger
}

// New builds the logger described by the logging section of config.yaml,
// writing to stdout unless cfg.Output is "stderr".
//
// Parameters:
//   - cfg: Logging configuration
//   - version: Build version, attached to every entry
//
// Returns:
//   - *Logger: Ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	var w io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		w = os.Stderr
	}
	return NewWithWriter(cfg, version, w)
}

// NewWithWriter is New with an explicit destination; cfg.Output is ignored.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}

	return &Logger{Logger: slog.New(h).With(
		slog.String("service", serviceName),
		slog.String("version", version),
	)}
}

// parseLevel accepts the slog level names plus "warning"; anything else is
// info.
func parseLevel(name string) slog.Level {
	if strings.EqualFold(name, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// With returns a child logger carrying extra attributes, typically the
// component and destination:
//
//	log.With("component", "influxdb", "destination", "main")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Discard returns a Logger that drops every entry. Components use it when
// the caller supplies no logger.
func Discard() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1})),
	}
}

// redactKeep is the number of leading characters Redact leaves visible.
const redactKeep = 4

// Redact masks a secret for logging, keeping a short prefix so operators can
// tell credentials apart. Short or empty secrets are masked entirely.
//
//	Redact("")             // ""
//	Redact("abc")          // "***"
//	Redact("s3cr3t-token") // "s3cr..."
func Redact(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= redactKeep*2:
		return "***"
	default:
		return secret[:redactKeep] + "..."
	}
}

// Default is the JSON info-level stdout logger used until config.yaml has
// been read.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json"}, "dev")
}
