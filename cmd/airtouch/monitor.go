package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/airtouch/internal/feed"
	"github.com/muurk/airtouch/internal/metrics"
	"github.com/muurk/airtouch/internal/session"
)

var (
	metricsAddr string
	feedAddr    string
	dumpDir     string
	quiet       bool
)

func init() {
	monitorCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9310")
	monitorCmd.Flags().StringVar(&feedAddr, "feed-addr", "", "Serve the WebSocket unit feed on this address, e.g. :9311")
	monitorCmd.Flags().StringVar(&dumpDir, "dump-dir", "", "Write every received frame to this directory")
	monitorCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print unit changes")
	rootCmd.AddCommand(monitorCmd)
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Follow the gateway and print every change",
	Long: `Connect to the gateway and stay connected, printing each AC and zone
change as it arrives. The connection is re-established automatically when
it drops.

Optionally serves Prometheus metrics and a WebSocket feed of unit changes
for dashboards, and records raw frames for offline analysis with
'airtouch decode'.`,
	Example: `  # Watch the default gateway
  airtouch monitor

  # Export metrics and a live feed
  airtouch monitor --metrics-addr :9310 --feed-addr :9311

  # Capture frames for protocol analysis
  airtouch monitor --dump-dir ./captures --log-level debug`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("metrics-addr") {
		settings.Metrics.Addr = metricsAddr
	}
	if cmd.Flags().Changed("feed-addr") {
		settings.Feed.Addr = feedAddr
	}
	if cmd.Flags().Changed("dump-dir") {
		settings.Session.DumpDir = dumpDir
	}

	t, err := resolveTarget(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	var opts []session.Option
	mux := make(map[string]*http.ServeMux)
	route := func(addr, path string, h http.Handler) {
		if mux[addr] == nil {
			mux[addr] = http.NewServeMux()
		}
		mux[addr].Handle(path, h)
	}

	if settings.Metrics.Addr != "" {
		reg := metrics.NewRegistry()
		opts = append(opts, session.WithRecorder(metrics.NewSessionMetrics(reg)))
		route(settings.Metrics.Addr, settings.Metrics.Path, metrics.Handler(reg))
	}

	var hub *feed.Hub
	if settings.Feed.Addr != "" {
		hub = feed.NewHub(log)
		defer hub.Close()
		route(settings.Feed.Addr, settings.Feed.Path, hub)
	}

	for addr, m := range mux {
		srv := &http.Server{Addr: addr, Handler: m, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			log.Info("HTTP listener started", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("HTTP listener failed", zap.String("addr", addr), zap.Error(err))
				cancel()
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	s, stop, err := openSession(ctx, t, opts...)
	if err != nil {
		return err
	}
	defer stop()

	if hub != nil {
		detach := hub.Attach(s)
		defer detach()
	}
	if !quiet {
		detach := printChanges(s)
		defer detach()
	}

	fmt.Printf("Connected to %s. Press Ctrl+C to stop.\n", t.cfg.Addr())
	<-ctx.Done()
	fmt.Println("\nStopping.")
	return nil
}

// printChanges prints one line per unit update until the returned function
// is called.
func printChanges(s session.Session) (detach func()) {
	lines := make(chan string, 64)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case line := <-lines:
				fmt.Println(line)
			}
		}
	}()
	emit := func(line string) {
		select {
		case lines <- time.Now().Format("15:04:05") + "  " + line:
		default:
		}
	}

	var (
		mu      sync.Mutex
		handles []session.Handle
		seen    = make(map[session.NewUnit]bool)
	)
	follow := func(u session.NewUnit) {
		mu.Lock()
		defer mu.Unlock()
		if seen[u] {
			return
		}
		seen[u] = true

		var (
			h   session.Handle
			err error
		)
		switch u.Kind {
		case session.UnitAC:
			h, err = s.SubscribeAC(u.ID, func(ac session.ACState) {
				emit(fmt.Sprintf("AC %d %-16s %s %s fan %s set %.1f°C now %.1f°C",
					ac.ID, ac.Name, ac.Power, ac.Mode, ac.FanSpeed, ac.Setpoint, ac.Temperature))
			})
		case session.UnitGroup:
			h, err = s.SubscribeGroup(u.ID, func(g session.GroupState) {
				emit(fmt.Sprintf("Zone %d %-16s %s %d%%", g.ID, g.Name, g.Power, g.Damper))
			})
		}
		if err == nil {
			handles = append(handles, h)
		}
	}

	newUnits := s.SubscribeNewUnits(func(u session.NewUnit) {
		emit(fmt.Sprintf("New %s %d", u.Kind, u.ID))
		follow(u)
	})
	for _, ac := range s.ACs() {
		follow(session.NewUnit{Kind: session.UnitAC, ID: ac.ID})
	}
	for _, g := range s.Groups() {
		follow(session.NewUnit{Kind: session.UnitGroup, ID: g.ID})
	}

	return func() {
		s.Unsubscribe(newUnits)
		mu.Lock()
		defer mu.Unlock()
		for _, h := range handles {
			s.Unsubscribe(h)
		}
		close(done)
	}
}
