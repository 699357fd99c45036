package logging

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewDoesNotPanic(t *testing.T) {
	logger := New("debug")
	if logger == nil {
		t.Fatal("New returned nil")
	}
	logger.Debug("test message", "key", "value")

	if Default() == nil {
		t.Fatal("Default returned nil")
	}
}

func TestWithCarriesAttributes(t *testing.T) {
	logger := NewText("info").With("ticket_id", "SAV-1")
	if logger == nil {
		t.Fatal("With returned nil")
	}
	logger.Info("carries attributes")
}
