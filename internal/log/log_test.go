package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tc := range tests {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewLogger_TextAndJSON(t *testing.T) {
	var text bytes.Buffer
	newLogger(&text, slog.LevelInfo, false).Info("hello", "k", 1)
	if !strings.Contains(text.String(), "msg=hello") {
		t.Errorf("text handler output = %q", text.String())
	}

	var js bytes.Buffer
	newLogger(&js, slog.LevelInfo, true).Info("hello", "k", 1)
	if !strings.Contains(js.String(), `"msg":"hello"`) {
		t.Errorf("json handler output = %q", js.String())
	}
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, slog.LevelWarn, false)
	l.Info("dropped")
	l.Warn("kept")

	if strings.Contains(buf.String(), "dropped") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "kept") {
		t.Error("warn line should be written")
	}
}

func TestComponent(t *testing.T) {
	if Component("dispatch") == nil {
		t.Fatal("Component returned nil")
	}
}

func TestJSONOutput(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"default text", nil, false},
		{"production", map[string]string{"GO_ENV": "production"}, true},
		{"format json", map[string]string{"TARGETLINK_LOG_FORMAT": "JSON"}, true},
		{"format wins", map[string]string{"GO_ENV": "production", "TARGETLINK_LOG_FORMAT": "text"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			getenv := func(k string) string { return tc.env[k] }
			if got := jsonOutput(getenv); got != tc.want {
				t.Errorf("jsonOutput() = %v, want %v", got, tc.want)
			}
		})
	}
}
