package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(newLogger(&buf, "prod", "json"), "api")
	logger.Debug().Msg("hidden")
	logger.Info().Str("user", "u1").Msg("hello")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["component"] != "api" || entry["user"] != "u1" || entry["message"] != "hello" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNewLoggerDevConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "dev", "console")
	logger.Debug().Msg("visible")
	out := buf.String()
	if !strings.Contains(out, "visible") {
		t.Fatalf("debug line missing: %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("expected console output, got JSON: %q", out)
	}
}
