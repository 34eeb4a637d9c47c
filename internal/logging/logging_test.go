package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, zapcore.InfoLevel)
	logger.Debug("hidden")
	logger.Info("plan generated", zap.String("user_id", "u1"))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line below debug level, got %d: %s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(lines[0], &entry); err != nil {
		t.Fatalf("Expected JSON output, got %s", lines[0])
	}
	if entry["msg"] != "plan generated" || entry["user_id"] != "u1" {
		t.Errorf("Unexpected entry %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Error("Expected a ts field")
	}
}

func TestNew(t *testing.T) {
	t.Run("InvalidLevel", func(t *testing.T) {
		if _, err := New(Options{Level: "loud"}); err == nil {
			t.Error("Expected an error for an unknown level")
		}
	})

	t.Run("FileSink", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "agent.log")
		logger, err := New(Options{Level: "debug", File: path})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		logger.Debug("written to file")
		logger.Sync()

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Expected the log file to exist: %v", err)
		}
		if !bytes.Contains(data, []byte("written to file")) {
			t.Errorf("Expected the entry in the file, got %s", data)
		}
	})
}
