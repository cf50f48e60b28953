package session

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Option configures a Client or LegacyClient.
type Option func(*options)

type options struct {
	log    *zap.Logger
	rec    Recorder
	dumper *FrameDumper
	dialer Dialer
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(o *options) { o.rec = rec }
}

// WithDumper writes every validated frame through d.
func WithDumper(d *FrameDumper) Option {
	return func(o *options) { o.dumper = d }
}

// WithDialer replaces the default net.Dialer.
func WithDialer(d Dialer) Option {
	return func(o *options) { o.dialer = d }
}

func buildOptions(cfg Config, opts []Option) options {
	o := options{log: zap.NewNop(), rec: nopRecorder{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.rec == nil {
		o.rec = nopRecorder{}
	}
	o.log = o.log.With(
		zap.String("session", uuid.NewString()),
		zap.String("gateway", cfg.Addr()),
		zap.String("generation", string(cfg.Generation)),
	)
	return o
}
