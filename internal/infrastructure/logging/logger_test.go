package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-upnp/internal/infrastructure/config"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output %q is not JSON: %v", buf.String(), err)
	}
	return entry
}

func TestNew_Outputs(t *testing.T) {
	for _, output := range []string{"stdout", "stderr", "discard", ""} {
		t.Run(output, func(t *testing.T) {
			if New(config.LoggingConfig{Level: "error", Output: output}, "test") == nil {
				t.Fatal("New() returned nil")
			}
		})
	}
}

func TestNewWithWriter_Format(t *testing.T) {
	tests := []struct {
		format   string
		wantJSON bool
	}{
		{"json", true},
		{"", true},
		{"text", false},
		{"TEXT", false},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			NewWithWriter(config.LoggingConfig{Format: tt.format}, "test", &buf).Info("device ready")

			isJSON := json.Valid(bytes.TrimSpace(buf.Bytes()))
			if isJSON != tt.wantJSON {
				t.Errorf("format %q wrote %q", tt.format, buf.String())
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"trace", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLogger_DefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "test", &buf)
	logger.Site(config.SiteConfig{ID: "site-001"}).Component("soap").Info("action invoked", "action", "SetTarget")

	entry := decodeEntry(t, &buf)
	want := map[string]string{
		"msg":       "action invoked",
		"action":    "SetTarget",
		"service":   ServiceName,
		"version":   "test",
		"site_id":   "site-001",
		"component": "soap",
	}
	for field, value := range want {
		if entry[field] != value {
			t.Errorf("%s = %v, want %q", field, entry[field], value)
		}
	}
}

func TestLogger_SiteEmpty(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Format: "json"}, "test", &buf)

	if logger.Site(config.SiteConfig{}) != logger {
		t.Error("Site() with an empty ID should return the same logger")
	}
	logger.Site(config.SiteConfig{Name: "Flat 3"}).Info("started")
	if _, ok := decodeEntry(t, &buf)["site_id"]; ok {
		t.Error("site_id written for an empty site ID")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "warn", Format: "text"}, "test", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Error("info entry written at warn level")
	}
	if !strings.Contains(output, "shown") || !strings.Contains(output, "service=upnpd") {
		t.Errorf("output = %q", output)
	}
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
}
