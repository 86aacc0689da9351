package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Level = %s, want %s", cfg.Level, LevelInfo)
	}
	if !cfg.Pretty {
		t.Error("Pretty = false, want true for the CLI default")
	}
	if cfg.Output == nil {
		t.Error("Output = nil, want os.Stderr")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"verbose", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValidLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error", "off"} {
		if !ValidLevel(lvl) {
			t.Errorf("ValidLevel(%q) = false, want true", lvl)
		}
	}
	if ValidLevel("loud") {
		t.Error("ValidLevel(\"loud\") = true, want false")
	}
}

func TestSetupJSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("crawl")
	logger.Info().Str("id", "B000TEST").Int("page", 2).Msg("got page")

	out := buf.String()
	for _, want := range []string{`"component":"crawl"`, `"id":"B000TEST"`, `"page":2`, `"message":"got page"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %s", out, want)
		}
	}
}

func TestSetupPrettyOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelDebug, Pretty: true, Output: buf})

	logger := NewLogger("fetcher")
	logger.Debug().Msg("attempt failed")

	out := buf.String()
	if strings.Contains(out, `"message"`) {
		t.Errorf("pretty output should not be JSON, got %q", out)
	}
	if !strings.Contains(out, "attempt failed") {
		t.Errorf("output %q does not contain the message", out)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	logger := NewLogger("test")
	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below warn leaked: %q", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("warn/error messages missing: %q", out)
	}
}
