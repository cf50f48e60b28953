package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/airtouch/internal/config"
	"github.com/muurk/airtouch/internal/session"
)

// discoveryTimeout bounds the wait for the first AC status after connecting.
const discoveryTimeout = 15 * time.Second

// target is the gateway a command talks to.
type target struct {
	cfg session.Config
	// name is the saved gateway name, empty for an ad-hoc host.
	name string
	reg  *config.Registry
}

// resolveTarget combines the settings, the saved gateways and the command
// line flags into a session configuration. Flags win over saved gateways,
// which win over the settings file.
func resolveTarget(cmd *cobra.Command) (*target, error) {
	t := &target{}

	if gatewayName != "" || (settings.Gateway.Host == "" && hostFlag == "") {
		reg, err := config.LoadRegistry()
		if err != nil {
			return nil, err
		}
		name := gatewayName
		if name == "" {
			name = reg.Default
		}
		g, err := reg.Resolve(name)
		if err != nil {
			if gatewayName == "" {
				return nil, errors.New("no gateway host: use --host, --gateway or 'airtouch gateways add'")
			}
			return nil, err
		}
		settings.UseGateway(g)
		t.name, t.reg = name, reg
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		settings.Gateway.Host = hostFlag
	}
	if flags.Changed("port") {
		settings.Gateway.Port = portFlag
	}
	if flags.Changed("generation") {
		settings.Gateway.Generation = genFlag
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	t.cfg = settings.SessionConfig()
	return t, nil
}

// markConnected stamps the saved gateway, if any, with the connection time.
func (t *target) markConnected() {
	if t.reg == nil {
		return
	}
	t.reg.MarkConnected(t.name, time.Now())
	if err := t.reg.Save(); err != nil {
		log.Warn("Failed to update saved gateway", zap.String("name", t.name), zap.Error(err))
	}
}

// openSession connects to the target, starts the receive loop and waits for
// the first AC status. stop ends the session and reports the receive
// loop's outcome.
func openSession(ctx context.Context, t *target, opts ...session.Option) (s session.Session, stop func(), err error) {
	opts = append([]session.Option{session.WithLogger(log)}, opts...)
	s, err = session.New(t.cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Connect(ctx); err != nil {
		return nil, nil, err
	}

	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(ctx) }()

	stop = func() {
		s.Stop()
		if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("Receive loop ended", zap.Error(err))
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()
	if err := s.WaitForAC(waitCtx); err != nil {
		stop()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("gateway at %s reported no AC within %s", t.cfg.Addr(), discoveryTimeout)
		}
		return nil, nil, err
	}

	t.markConnected()
	return s, stop, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
