package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/wonny/dqpipe/backend/pkg/config"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	return &Logger{zlog: zerolog.New(buf).With().Timestamp().Logger()}
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log output: %v", err)
	}
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLevel zerolog.Level
	}{
		{"debug level", "debug", zerolog.DebugLevel},
		{"info level", "info", zerolog.InfoLevel},
		{"warn level", "warn", zerolog.WarnLevel},
		{"error level", "error", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter(&config.Config{Env: "test", LogLevel: tt.level, LogFormat: "json"}, &buf)
			if log == nil {
				t.Fatal("Expected logger to be created")
			}

			if zerolog.GlobalLevel() != tt.wantLevel {
				t.Errorf("Expected global level %v, got %v", tt.wantLevel, zerolog.GlobalLevel())
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"invalid", zerolog.InfoLevel}, // Default
		{"", zerolog.InfoLevel},        // Default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	tests := []struct {
		name      string
		logFunc   func()
		wantMsg   string
		wantLevel string
	}{
		{"debug", func() { log.Debug("debug message") }, "debug message", "debug"},
		{"info", func() { log.Info("info message") }, "info message", "info"},
		{"warn", func() { log.Warn("warn message") }, "warn message", "warn"},
		{"error", func() { log.Error("error message") }, "error message", "error"},
		{"infof", func() { log.Infof("customers clean/quarantine: %d/%d", 9, 1) }, "customers clean/quarantine: 9/1", "info"},
		{"errorf", func() { log.Errorf("failed to load: %s", "timeout") }, "failed to load: timeout", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc()

			entry := decode(t, &buf)
			if entry["level"] != tt.wantLevel {
				t.Errorf("Expected level %q, got %q", tt.wantLevel, entry["level"])
			}
			if entry["message"] != tt.wantMsg {
				t.Errorf("Expected message %q, got %q", tt.wantMsg, entry["message"])
			}
		})
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	log.WithPartition("2025-12-10").WithFields(map[string]interface{}{
		"entity":     "orders",
		"quarantine": 3,
	}).Info("validated")

	entry := decode(t, &buf)
	if entry["ingest_date"] != "2025-12-10" {
		t.Errorf("Expected ingest_date 2025-12-10, got %v", entry["ingest_date"])
	}
	if entry["entity"] != "orders" {
		t.Errorf("Expected entity orders, got %v", entry["entity"])
	}
	if entry["quarantine"] != float64(3) {
		t.Errorf("Expected quarantine 3, got %v", entry["quarantine"])
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	log.WithError(errors.New("partition not found")).Error("run failed")

	entry := decode(t, &buf)
	if entry["error"] != "partition not found" {
		t.Errorf("Expected error field, got %v", entry["error"])
	}
}

func TestLogFormats(t *testing.T) {
	for _, format := range []string{"json", "console", "pretty"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter(&config.Config{Env: "test", LogLevel: "info", LogFormat: format}, &buf)
			log.Info("test message")

			if !strings.Contains(buf.String(), "test message") {
				t.Errorf("Expected output to contain 'test message', got: %s", buf.String())
			}
		})
	}
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	log.WithField("k", "v").Error("discarded")
	if log.Zerolog().GetLevel() != zerolog.Disabled {
		t.Errorf("Expected disabled logger, got %v", log.Zerolog().GetLevel())
	}
}

func TestPipelineFields(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	log.WithPartition("2025-12-10").
		WithRun("run-1").
		WithStage("S2").
		WithCounts("events", 98, 2).
		Info("S2 completed")

	entry := decode(t, &buf)
	if entry["ingest_date"] != "2025-12-10" || entry["run_id"] != "run-1" || entry["stage"] != "S2" {
		t.Errorf("Missing pipeline fields: %v", entry)
	}
	if entry["events_clean"] != 98.0 || entry["events_quarantine"] != 2.0 {
		t.Errorf("Expected counts, got %v", entry)
	}
}

func TestWithJob(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	log.WithJob("partition_daily").Warn("retrying")

	entry := decode(t, &buf)
	if entry["job"] != "partition_daily" || entry["level"] != "warn" {
		t.Errorf("Unexpected entry: %v", entry)
	}
}
