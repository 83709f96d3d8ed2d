package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/gray-logic-upnp/internal/infrastructure/config"
)

// ServiceName is the service attribute on every entry.
const ServiceName = "upnpd"

// Logger is the daemon's slog logger. Its Debug, Info, Warn and Error
// methods satisfy the small Logger interfaces the upnp, bridge and
// infrastructure packages declare, so one value is handed out everywhere
// through Component.
type Logger struct {
	*slog.Logger
}

// New builds the logger described by the logging section of config.yaml.
// Output is stdout unless cfg.Output names stderr or discard.
func New(cfg config.LoggingConfig, version string) *Logger {
	var out io.Writer = os.Stdout
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		out = os.Stderr
	case "discard":
		out = io.Discard
	}
	return NewWithWriter(cfg, version, out)
}

// NewWithWriter is New writing to out; cfg.Output is ignored.
func NewWithWriter(cfg config.LoggingConfig, version string, out io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler = slog.NewJSONHandler(out, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(out, opts)
	}

	return &Logger{slog.New(h).With("service", ServiceName, "version", version)}
}

// parseLevel maps debug, info, warn (or warning) and error, in any case.
// Anything else logs at info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// With returns a child logger carrying args on every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

// Component tags entries with the subsystem that wrote them: soap, gena,
// bridge, localsvc and so on.
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Site tags entries with the site from config.yaml, so logs shipped from
// several installations stay apart. An empty site ID leaves l unchanged.
func (l *Logger) Site(site config.SiteConfig) *Logger {
	if site.ID == "" {
		return l
	}
	return l.With("site_id", site.ID)
}

// Default is the startup logger used until config.yaml is read: JSON on
// stdout at info.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json"}, "dev")
}
