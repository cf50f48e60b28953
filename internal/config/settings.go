package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/muurk/airtouch/internal/logging"
	"github.com/muurk/airtouch/internal/protocol"
	"github.com/muurk/airtouch/internal/protocol/legacy"
	"github.com/muurk/airtouch/internal/session"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AIRTOUCH"

// settingsFile is searched for in the working directory and the
// configuration directory when Load gets no path.
const settingsFile = "airtouch"

// GatewaySettings selects the gateway to talk to.
type GatewaySettings struct {
	Host string `mapstructure:"host"`
	// Port defaults to the standard port of the generation when zero.
	Port       int    `mapstructure:"port"`
	Generation string `mapstructure:"generation"`
}

// BackoffSettings shapes the reconnect delays.
type BackoffSettings struct {
	Initial    time.Duration `mapstructure:"initial"`
	Multiplier float64       `mapstructure:"multiplier"`
	Max        time.Duration `mapstructure:"max"`
}

// SessionSettings tunes the session.
type SessionSettings struct {
	DialTimeout          time.Duration   `mapstructure:"dialTimeout"`
	WriteTimeout         time.Duration   `mapstructure:"writeTimeout"`
	CommandTimeout       time.Duration   `mapstructure:"commandTimeout"`
	AbilityRetry         time.Duration   `mapstructure:"abilityRetry"`
	Backoff              BackoffSettings `mapstructure:"backoff"`
	DumpDir              string          `mapstructure:"dumpDir"`
	VerifyLegacyChecksum bool            `mapstructure:"verifyLegacyChecksum"`
}

// LogFileSettings configures the rotated log file.
type LogFileSettings struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingSettings configures the logger.
type LoggingSettings struct {
	Level  string          `mapstructure:"level"`
	Format string          `mapstructure:"format"`
	File   LogFileSettings `mapstructure:"file"`
}

// MetricsSettings configures the Prometheus endpoint. Empty Addr disables it.
type MetricsSettings struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

// FeedSettings configures the WebSocket feed. Empty Addr disables it.
type FeedSettings struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

// Settings is the whole runtime configuration.
type Settings struct {
	Gateway GatewaySettings `mapstructure:"gateway"`
	Session SessionSettings `mapstructure:"session"`
	Logging LoggingSettings `mapstructure:"logging"`
	Metrics MetricsSettings `mapstructure:"metrics"`
	Feed    FeedSettings    `mapstructure:"feed"`
}

// Load reads settings from path, defaults and the environment. With an
// empty path, airtouch.yaml is looked up in the working directory and the
// configuration directory; a missing file is not an error then.
func Load(path string) (*Settings, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.SetConfigName(settingsFile)
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	d := session.DefaultConfig("", 0)

	v.SetDefault("gateway.host", "")
	v.SetDefault("gateway.port", 0)
	v.SetDefault("gateway.generation", string(session.GenerationPlus))

	v.SetDefault("session.dialTimeout", d.DialTimeout)
	v.SetDefault("session.writeTimeout", d.WriteTimeout)
	v.SetDefault("session.commandTimeout", d.CommandTimeout)
	v.SetDefault("session.abilityRetry", d.AbilityRetryInterval)
	v.SetDefault("session.backoff.initial", d.Backoff.Initial)
	v.SetDefault("session.backoff.multiplier", d.Backoff.Multiplier)
	v.SetDefault("session.backoff.max", d.Backoff.Max)
	v.SetDefault("session.dumpDir", "")
	v.SetDefault("session.verifyLegacyChecksum", d.VerifyLegacyChecksum)

	v.SetDefault("logging.level", "")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 50)
	v.SetDefault("logging.file.maxBackups", 5)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("feed.addr", "")
	v.SetDefault("feed.path", "/feed")
}

// Validate checks values that would otherwise fail late.
func (s *Settings) Validate() error {
	switch session.Generation(s.Gateway.Generation) {
	case session.GenerationPlus, session.GenerationLegacy:
	default:
		return fmt.Errorf("gateway.generation: unknown generation %q (want plus or legacy)", s.Gateway.Generation)
	}
	if s.Gateway.Port < 0 || s.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port: %d is out of range", s.Gateway.Port)
	}
	if s.Session.Backoff.Max > 0 && s.Session.Backoff.Initial > s.Session.Backoff.Max {
		return fmt.Errorf("session.backoff: initial %s exceeds max %s", s.Session.Backoff.Initial, s.Session.Backoff.Max)
	}
	return nil
}

// DefaultPort returns the standard gateway port of a generation.
func DefaultPort(generation session.Generation) int {
	if generation == session.GenerationLegacy {
		return legacy.DefaultPort
	}
	return protocol.DefaultPort
}

// SessionConfig converts the settings into a session configuration.
func (s *Settings) SessionConfig() session.Config {
	gen := session.Generation(s.Gateway.Generation)
	port := s.Gateway.Port
	if port == 0 {
		port = DefaultPort(gen)
	}

	cfg := session.DefaultConfig(s.Gateway.Host, port)
	cfg.Generation = gen
	cfg.DialTimeout = s.Session.DialTimeout
	cfg.WriteTimeout = s.Session.WriteTimeout
	cfg.CommandTimeout = s.Session.CommandTimeout
	cfg.AbilityRetryInterval = s.Session.AbilityRetry
	cfg.Backoff = session.BackoffConfig{
		Initial:    s.Session.Backoff.Initial,
		Multiplier: s.Session.Backoff.Multiplier,
		Max:        s.Session.Backoff.Max,
	}
	cfg.DumpDir = s.Session.DumpDir
	cfg.VerifyLegacyChecksum = s.Session.VerifyLegacyChecksum
	return cfg
}

// LoggingOptions converts the logging settings.
func (s *Settings) LoggingOptions() logging.Options {
	return logging.Options{
		Level:  s.Logging.Level,
		Format: s.Logging.Format,
		File: logging.FileOptions{
			Filename:   s.Logging.File.Filename,
			MaxSizeMB:  s.Logging.File.MaxSizeMB,
			MaxBackups: s.Logging.File.MaxBackups,
			MaxAgeDays: s.Logging.File.MaxAgeDays,
			Compress:   s.Logging.File.Compress,
		},
	}
}

// UseGateway points the settings at a saved gateway.
func (s *Settings) UseGateway(g *Gateway) {
	s.Gateway.Host = g.Host
	s.Gateway.Port = g.Port
	if g.Generation != "" {
		s.Gateway.Generation = g.Generation
	}
}
