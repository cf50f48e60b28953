package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger *zap.Logger

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent.
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "AIRTOUCH_LOG_LEVEL"

// maxHexBytes caps the bytes rendered by HexBytes.
const maxHexBytes = 512

// Options selects the level, format and destinations of a logger.
type Options struct {
	// Level is debug, info, warn or error. Empty defers to AIRTOUCH_LOG_LEVEL.
	Level string
	// Format is "console" (default) or "json".
	Format string
	// File, when its Filename is set, adds a rotated log file.
	File FileOptions
}

// FileOptions configures log file rotation.
type FileOptions struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New builds a logger from opts. It returns a no-op logger when no level is
// configured.
func New(opts Options) (*zap.Logger, error) {
	level := opts.Level
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	if level == "" {
		return zap.NewNop(), nil
	}

	zapLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(opts.Format) {
	case "", "console":
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case "json":
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zapLevel),
	}
	if opts.File.Filename != "" {
		fileConfig := zap.NewProductionEncoderConfig()
		fileConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		rotated := &lumberjack.Logger{
			Filename:   opts.File.Filename,
			MaxSize:    opts.File.MaxSizeMB,
			MaxBackups: opts.File.MaxBackups,
			MaxAge:     opts.File.MaxAgeDays,
			Compress:   opts.File.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileConfig), zapcore.AddSync(rotated), zapLevel))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// Initialize builds the process-wide logger returned by GetLogger.
func Initialize(opts Options) error {
	l, err := New(opts)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = l
	return nil
}

// InitializeFromEnv initializes the process-wide logger from
// AIRTOUCH_LOG_LEVEL alone.
func InitializeFromEnv() error {
	return Initialize(Options{})
}

// GetLogger returns the process-wide logger, or a no-op logger before
// Initialize.
func GetLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// HexBytes returns a field rendering b as colon-separated hex, for example
// "55:55:b0:80". Long inputs are truncated.
func HexBytes(key string, b []byte) zap.Field {
	return zap.Stringer(key, hexBytes(b))
}

type hexBytes []byte

func (h hexBytes) String() string {
	data := []byte(h)
	truncated := len(data) > maxHexBytes
	if truncated {
		data = data[:maxHexBytes]
	}

	var sb strings.Builder
	sb.Grow(len(data) * 3)
	for i, v := range data {
		if i > 0 {
			sb.WriteByte(':')
		}
		fmt.Fprintf(&sb, "%02x", v)
	}
	if truncated {
		fmt.Fprintf(&sb, "...(%d bytes)", len(h))
	}
	return sb.String()
}

// ASCII renders the printable bytes of b and replaces the rest with dots.
func ASCII(b []byte) string {
	out := make([]byte, len(b))
	for i, v := range b {
		if v >= 32 && v <= 126 {
			out[i] = v
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}

// Sync flushes any buffered log entries.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
