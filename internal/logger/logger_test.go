package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DEBUG, "DEBUG"},
		{INFO, "INFO"},
		{WARN, "WARN"},
		{ERROR, "ERROR"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("LogLevel.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "filedesk-logger-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	cfg := Config{
		LogDir:     tmpDir,
		Level:      INFO,
		MaxDays:    7,
		ConsoleOut: false,
	}

	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if logger.level != INFO {
		t.Errorf("Expected level INFO, got %v", logger.level)
	}
	if logger.maxDays != 7 {
		t.Errorf("Expected maxDays 7, got %d", logger.maxDays)
	}
}

func TestNewLogger_DefaultMaxDays(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "filedesk-logger-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	logger, err := NewLogger(Config{LogDir: tmpDir, Level: INFO})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if logger.maxDays != 7 {
		t.Errorf("Expected default maxDays 7, got %d", logger.maxDays)
	}
}

func TestNewLogger_CreateLogDir(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "filedesk-logger-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	logDir := filepath.Join(tmpDir, "logs", "subdir")
	logger, err := NewLogger(Config{LogDir: logDir, Level: INFO, MaxDays: 7})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	// Verify directory was created
	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		t.Error("Log directory was not created")
	}
}

func readLogFile(t *testing.T, dir string) string {
	t.Helper()

	today := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(dir, filePrefix+today+".log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	return string(data)
}

func TestLogger_LogLevels(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "filedesk-logger-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	logger, err := NewLogger(Config{LogDir: tmpDir, Level: WARN, MaxDays: 7})
	if err != nil {
		t.Fatal(err)
	}

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")
	logger.Close()

	content := readLogFile(t, tmpDir)
	if strings.Contains(content, "debug message") || strings.Contains(content, "info message") {
		t.Error("Messages below the configured level should not be written")
	}
	if !strings.Contains(content, "warn message") || !strings.Contains(content, "error message") {
		t.Error("Messages at or above the configured level should be written")
	}
}

func TestLogger_Format(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "filedesk-logger-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	logger, err := NewLogger(Config{LogDir: tmpDir, Level: DEBUG, MaxDays: 7})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("user %s logged in from %s", "alice", "127.0.0.1")
	logger.Close()

	content := readLogFile(t, tmpDir)
	if !strings.Contains(content, "[INFO] user alice logged in from 127.0.0.1") {
		t.Errorf("Unexpected log format: %q", content)
	}
}

func TestGetWriter(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "filedesk-logger-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	logger, err := NewLogger(Config{LogDir: tmpDir, Level: DEBUG, MaxDays: 7})
	if err != nil {
		t.Fatal(err)
	}

	w := logger.GetWriter(INFO)
	n, err := w.Write([]byte("from gin\n"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len("from gin\n") {
		t.Errorf("Write should report full length, got %d", n)
	}
	logger.Close()

	content := readLogFile(t, tmpDir)
	if !strings.Contains(content, "from gin") {
		t.Errorf("Writer output should land in the log file: %q", content)
	}
}

func TestPackageLevelFunctions_NilSafe(t *testing.T) {
	// The package-level helpers must not panic before Init
	Debug("no logger yet")
	Info("no logger yet")
	Warn("no logger yet")
	Error("no logger yet")
	if err := Close(); err != nil {
		t.Errorf("Close without init should succeed, got %v", err)
	}
}
