// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/erfreader/internal/config"
	"firestige.xyz/erfreader/internal/log"
)

// globals holds the persistent flags and the configuration loaded from them.
type globals struct {
	configFile string
	logLevel   string

	cfg *config.Config
}

// NewRootCmd builds the erfreader command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "erfreader",
		Short: "erfreader - decode TCP/UDP payloads from ERF capture files",
		Long: `erfreader reads Extended Record Format (ERF) capture files record by record,
decodes Ethernet / 802.1Q / IPv4 / IPv6 / TCP / UDP headers and delivers the
transport payload of every packet to one or more sinks.

Sinks:
  - console: one line per packet, text or JSON
  - pcap:    export the Ethernet frames to a pcap file
  - kafka:   publish packets as JSON messages`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.configFile, "config", "c", "",
		"config file path (defaults only when empty)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "",
		"override log level (debug/info/warn/error)")

	rootCmd.AddCommand(newDecodeCmd(g))
	rootCmd.AddCommand(newExportCmd(g))
	rootCmd.AddCommand(newStatsCmd(g))
	rootCmd.AddCommand(newConfigCmd(g))

	return rootCmd
}

// load reads the configuration and initializes logging.
func (g *globals) load() error {
	cfg, err := config.Load(g.configFile)
	if err != nil {
		return err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
		if err := cfg.ValidateAndApplyDefaults(); err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
	}
	if err := log.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	g.cfg = cfg
	return nil
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}
