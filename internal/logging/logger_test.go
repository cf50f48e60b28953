package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewSilentWithoutLevel(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	l, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("logger without a level should be silent")
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")
	l, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) || !l.Core().Enabled(zapcore.WarnLevel) {
		t.Error("expected warn level from environment")
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	if _, err := New(Options{Level: "info", Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := New(Options{Level: "chatty"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airtouch.log")
	l, err := New(Options{Level: "debug", Format: "json", File: FileOptions{Filename: path, MaxSizeMB: 1}})
	if err != nil {
		t.Fatal(err)
	}
	l.Info("Connected", zap.String("addr", "192.168.1.20:9200"))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"Connected"`) || !strings.Contains(string(data), "192.168.1.20:9200") {
		t.Errorf("unexpected log file content: %s", data)
	}
}

func TestHexBytes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	zap.New(core).Info("frame", HexBytes("data", []byte{0x55, 0x55, 0xb0, 0x80}))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	got := entries[0].ContextMap()["data"]
	if got != "55:55:b0:80" {
		t.Errorf("HexBytes = %v, want 55:55:b0:80", got)
	}

	long := hexBytes(make([]byte, maxHexBytes+10)).String()
	if !strings.HasSuffix(long, "...(522 bytes)") {
		t.Errorf("long input not truncated: %s", long[len(long)-20:])
	}
}

func TestASCII(t *testing.T) {
	if got := ASCII([]byte("Zone\x00\x01A")); got != "Zone..A" {
		t.Errorf("ASCII = %q", got)
	}
}
