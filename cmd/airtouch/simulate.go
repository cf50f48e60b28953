package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/airtouch/internal/config"
	"github.com/muurk/airtouch/internal/session"
	"github.com/muurk/airtouch/internal/simulator"
)

var (
	simListen     string
	simGeneration string
	simDrift      time.Duration
)

func init() {
	simulateCmd.Flags().StringVar(&simListen, "listen", "", "Listen address (default: 127.0.0.1 on the generation's port)")
	simulateCmd.Flags().StringVar(&simGeneration, "protocol", "plus", "Protocol generation to simulate (plus, legacy)")
	simulateCmd.Flags().DurationVar(&simDrift, "drift", 10*time.Second, "Move temperatures towards setpoints this often (plus only, 0 disables)")
	rootCmd.AddCommand(simulateCmd)
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a simulated gateway",
	Long: `Run a gateway simulator with a small made-up installation, for trying
the other commands without real hardware.`,
	Example: `  airtouch simulate &
  airtouch status --host 127.0.0.1

  airtouch simulate --protocol legacy --listen 127.0.0.1:8899 &
  airtouch dashboard --host 127.0.0.1 --generation legacy`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

// simulated is what both simulators offer the command.
type simulated interface {
	Start(addr string) error
	Addr() string
	Close() error
}

func runSimulate(cmd *cobra.Command, args []string) error {
	gen := session.Generation(simGeneration)
	addr := simListen
	if addr == "" {
		addr = fmt.Sprintf("127.0.0.1:%d", config.DefaultPort(gen))
	}

	var (
		gw     simulated
		framed *simulator.Gateway
	)
	switch gen {
	case session.GenerationPlus:
		framed = simulator.NewGateway(simulator.DefaultState(), simulator.WithLogger(log))
		gw = framed
	case session.GenerationLegacy:
		gw = simulator.NewLegacyGateway(simulator.DefaultLegacyState(), simulator.WithLogger(log))
	default:
		return fmt.Errorf("unknown protocol generation %q", simGeneration)
	}

	if err := gw.Start(addr); err != nil {
		return err
	}
	defer gw.Close()

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("Simulating a %s gateway on %s. Press Ctrl+C to stop.\n", gen, gw.Addr())
	log.Info("Simulator started", zap.String("addr", gw.Addr()), zap.String("generation", string(gen)))

	var tick <-chan time.Time
	if framed != nil && simDrift > 0 {
		ticker := time.NewTicker(simDrift)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			framed.Drift(0.1)
		}
	}
}
