package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "clutchdesk.log")

	logger, err := New(path, "debug")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Debug("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("expected json entry, got %s", data)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("", "loud"); err == nil {
		t.Fatalf("expected level error")
	}
}
