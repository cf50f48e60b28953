package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/airtouch/internal/config"
	"github.com/muurk/airtouch/internal/session"
)

var (
	addPort       int
	addGeneration string
	addNotes      string
	addDefault    bool
)

func init() {
	gatewaysAddCmd.Flags().IntVar(&addPort, "gateway-port", 0, "Port (default: standard port of the generation)")
	gatewaysAddCmd.Flags().StringVar(&addGeneration, "protocol", "plus", "Protocol generation (plus, legacy)")
	gatewaysAddCmd.Flags().StringVar(&addNotes, "notes", "", "Free-form notes")
	gatewaysAddCmd.Flags().BoolVar(&addDefault, "default", false, "Make this the default gateway")

	gatewaysCmd.AddCommand(gatewaysListCmd, gatewaysAddCmd, gatewaysRemoveCmd, gatewaysDefaultCmd)
	rootCmd.AddCommand(gatewaysCmd)
}

var gatewaysCmd = &cobra.Command{
	Use:     "gateways",
	Aliases: []string{"gw"},
	Short:   "Manage saved gateways",
	Long: `Save gateways by name so other commands can use --gateway <name>, or
no gateway flag at all for the default one.

Gateways are stored in gateways.yaml in the airtouch configuration
directory ($XDG_CONFIG_HOME/airtouch or ~/.config/airtouch).`,
}

var gatewaysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved gateways",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		if len(reg.Gateways) == 0 {
			fmt.Println("No saved gateways. Add one with 'airtouch gateways add <name> <host>'.")
			return nil
		}
		for _, name := range reg.Names() {
			g := reg.GetGateway(name)
			marker := " "
			if name == reg.Default {
				marker = "*"
			}
			port := g.Port
			generation := g.Generation
			if generation == "" {
				generation = "plus"
			}
			if port == 0 {
				port = config.DefaultPort(session.Generation(generation))
			}
			last := "never"
			if !g.LastConnected.IsZero() {
				last = g.LastConnected.Local().Format(time.DateTime)
			}
			fmt.Printf("%s %-16s %s:%d  %-6s  last connected %s\n", marker, name, g.Host, port, generation, last)
			if g.Notes != "" {
				fmt.Printf("  %-16s %s\n", "", g.Notes)
			}
		}
		return nil
	},
}

var gatewaysAddCmd = &cobra.Command{
	Use:   "add <name> <host>",
	Short: "Save a gateway",
	Example: `  airtouch gateways add home 192.168.1.20
  airtouch gateways add shack 192.168.1.30 --protocol legacy --default`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		generation := strings.ToLower(addGeneration)
		if generation != "plus" && generation != "legacy" {
			return fmt.Errorf("unknown protocol generation %q", addGeneration)
		}
		reg, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		if err := reg.SetGateway(args[0], config.Gateway{
			Host:       args[1],
			Port:       addPort,
			Generation: generation,
			Notes:      addNotes,
		}); err != nil {
			return err
		}
		if addDefault {
			reg.Default = args[0]
		}
		if err := reg.Save(); err != nil {
			return err
		}
		fmt.Printf("Saved gateway %q (%s).\n", args[0], args[1])
		return nil
	},
}

var gatewaysRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Forget a saved gateway",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		if !reg.RemoveGateway(args[0]) {
			return fmt.Errorf("no saved gateway named %q", args[0])
		}
		if err := reg.Save(); err != nil {
			return err
		}
		fmt.Printf("Removed gateway %q.\n", args[0])
		return nil
	},
}

var gatewaysDefaultCmd = &cobra.Command{
	Use:   "default <name>",
	Short: "Choose the gateway used when none is given",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		if reg.GetGateway(args[0]) == nil {
			return fmt.Errorf("no saved gateway named %q", args[0])
		}
		reg.Default = args[0]
		return reg.Save()
	},
}
