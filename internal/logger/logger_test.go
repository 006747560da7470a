package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetup_ReturnsJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	if l == nil {
		t.Fatal("expected non-nil logger")
	}

	l.Info("filter decision", slog.String("reason", "top_level"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}

	if entry["msg"] != "filter decision" {
		t.Errorf("msg = %q, want %q", entry["msg"], "filter decision")
	}
	if entry["reason"] != "top_level" {
		t.Errorf("reason = %q, want %q", entry["reason"], "top_level")
	}
}

func TestSetup_IncludesLevelField(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	l.Warn("warning test")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if entry["level"] != "WARN" {
		t.Errorf("level = %q, want %q", entry["level"], "WARN")
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	SetupDefault(&buf)

	slog.Default().Info("global test", slog.String("test_key", "test_val"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v\nraw: %s", err, buf.String())
	}

	if entry["msg"] != "global test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "global test")
	}
}

func TestParseLevel(t *testing.T) {
	if got := parseLevel("debug"); got != slog.LevelDebug {
		t.Errorf("parseLevel(debug) = %v, want %v", got, slog.LevelDebug)
	}
	if got := parseLevel(""); got != slog.LevelInfo {
		t.Errorf("parseLevel(空文字) = %v, want %v", got, slog.LevelInfo)
	}
	if got := parseLevel("unknown"); got != slog.LevelInfo {
		t.Errorf("parseLevel(unknown) = %v, want %v", got, slog.LevelInfo)
	}
}
