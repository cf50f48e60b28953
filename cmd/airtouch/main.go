// Airtouch monitors and controls AirTouch climate gateways on the local
// network.
//
// It speaks both gateway generations: the framed protocol of current
// gateways (port 9200) and the fixed-length protocol of older ones (port
// 8899). Gateways can be saved by name with 'airtouch gateways add'.
//
// Usage:
//
//	airtouch [command] [flags]
//
// See 'airtouch --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/airtouch/internal/config"
	"github.com/muurk/airtouch/internal/logging"
	"github.com/muurk/airtouch/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath  string
	gatewayName string
	hostFlag    string
	portFlag    int
	genFlag     string
	logLevel    string
)

// Loaded by the root command before any subcommand runs.
var (
	settings *config.Settings
	log      = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "airtouch",
	Short: "AirTouch gateway client",
	Long: `Monitor and control the air conditioners and zones behind an AirTouch
climate gateway.

The gateway is taken from --host, from a gateway saved with
'airtouch gateways add' (--gateway, or the default one), or from the
settings file airtouch.yaml. Every setting can also be given through an
AIRTOUCH_ environment variable, for example AIRTOUCH_GATEWAY_HOST.`,
	Version:           version.Get().Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file (default: airtouch.yaml in . or the config directory)")
	rootCmd.PersistentFlags().StringVarP(&gatewayName, "gateway", "g", "", "Name of a saved gateway")
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "Gateway host name or IP address")
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", 0, "Gateway port (default: 9200 for plus, 8899 for legacy)")
	rootCmd.PersistentFlags().StringVar(&genFlag, "generation", "", "Gateway protocol generation (plus, legacy)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")

	rootCmd.AddCommand(versionCmd)
}

func loadSettings(cmd *cobra.Command, args []string) error {
	s, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		s.Logging.Level = logLevel
	}
	if err := logging.Initialize(s.LoggingOptions()); err != nil {
		return err
	}
	settings = s
	log = logging.GetLogger()
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("airtouch %s\n", version.Get())
	},
}
