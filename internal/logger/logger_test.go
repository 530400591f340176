package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}
	return entry
}

func TestSetup_ReturnsJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelInfo)

	l.Info("test message", slog.String("key", "value"))

	entry := decodeEntry(t, &buf)
	if entry["msg"] != "test message" {
		t.Errorf("msg = %q, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %q, want %q", entry["key"], "value")
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in JSON log output")
	}
}

func TestSetup_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelWarn)

	l.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info log should be dropped at warn level, got %s", buf.String())
	}

	l.Warn("kept")
	entry := decodeEntry(t, &buf)
	if entry["level"] != "WARN" {
		t.Errorf("level = %q, want %q", entry["level"], "WARN")
	}
}

func TestSetup_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelInfo)

	l.Info("login attempt",
		slog.String("email", "user@example.com"),
		slog.String("password", "hunter22"),
		slog.String("session_token", "eyJhbGciOi..."),
	)

	entry := decodeEntry(t, &buf)
	if entry["email"] != "user@example.com" {
		t.Errorf("email = %q, want %q", entry["email"], "user@example.com")
	}
	if entry["password"] != "[REDACTED]" {
		t.Errorf("password = %q, want redacted", entry["password"])
	}
	if entry["session_token"] != "[REDACTED]" {
		t.Errorf("session_token = %q, want redacted", entry["session_token"])
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	SetupDefault(&buf)
	SetLevel(slog.LevelInfo)

	slog.Default().Info("global test", slog.String("test_key", "test_val"))

	entry := decodeEntry(t, &buf)
	if entry["msg"] != "global test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "global test")
	}
	if entry["test_key"] != "test_val" {
		t.Errorf("test_key = %q, want %q", entry["test_key"], "test_val")
	}
}

func TestSetLevel_ChangesGlobalLevel(t *testing.T) {
	var buf bytes.Buffer
	SetupDefault(&buf)
	SetLevel(slog.LevelError)
	defer SetLevel(slog.LevelInfo)

	slog.Default().Warn("dropped")
	if buf.Len() != 0 {
		t.Fatalf("warn log should be dropped at error level, got %s", buf.String())
	}
}
