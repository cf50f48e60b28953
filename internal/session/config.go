package session

import (
	"net"
	"strconv"
	"time"
)

// Generation selects the wire protocol spoken by the gateway.
type Generation string

const (
	// GenerationPlus is the framed protocol of current gateways.
	GenerationPlus Generation = "plus"
	// GenerationLegacy is the fixed-length protocol of older gateways.
	GenerationLegacy Generation = "legacy"
)

// BackoffConfig shapes the delay between connection attempts.
type BackoffConfig struct {
	Initial    time.Duration
	Multiplier float64
	Max        time.Duration
}

// Config holds everything a session needs to reach one gateway.
type Config struct {
	Host       string
	Port       int
	Generation Generation

	DialTimeout  time.Duration
	WriteTimeout time.Duration
	Backoff      BackoffConfig

	// AbilityRetryInterval is how long an ability request waits before it
	// is sent again.
	AbilityRetryInterval time.Duration
	// CommandTimeout bounds the wait for the status that follows a legacy
	// command.
	CommandTimeout time.Duration

	// DumpDir, when set, receives a file for every validated frame.
	DumpDir string
	// VerifyLegacyChecksum rejects legacy responses with a bad checksum.
	VerifyLegacyChecksum bool
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig(host string, port int) Config {
	return Config{
		Host:         host,
		Port:         port,
		Generation:   GenerationPlus,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		Backoff: BackoffConfig{
			Initial:    time.Millisecond,
			Multiplier: 10,
			Max:        10 * time.Second,
		},
		AbilityRetryInterval: 2 * time.Second,
		CommandTimeout:       5 * time.Second,
		VerifyLegacyChecksum: true,
	}
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) withDefaults() Config {
	d := DefaultConfig(c.Host, c.Port)
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.Backoff.Initial <= 0 {
		c.Backoff.Initial = d.Backoff.Initial
	}
	if c.Backoff.Multiplier < 1 {
		c.Backoff.Multiplier = d.Backoff.Multiplier
	}
	if c.Backoff.Max <= 0 {
		c.Backoff.Max = d.Backoff.Max
	}
	if c.AbilityRetryInterval <= 0 {
		c.AbilityRetryInterval = d.AbilityRetryInterval
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = d.CommandTimeout
	}
	if c.Generation == "" {
		c.Generation = d.Generation
	}
	return c
}
