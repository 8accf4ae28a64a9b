// Package cli wires the netpipe commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corbin-r/net-pipe/internal/logging"
)

var (
	configPath string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to netpipe config (YAML or TOML, default ~/.netpipe/netpipe.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (trace|debug|info|warn|error)")
}

var rootCmd = &cobra.Command{
	Use:   "netpipe",
	Short: "Width-bounded, checksum-gated packet pipes",
	Long: "Moves packets through channels capped by width and outflow.\n" +
		"A send needs an attached driver and a prechecked checksum.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.ConfigureRuntime()
		if logLevel != "" && !logging.SetLevel(logLevel) {
			return fmt.Errorf("unknown log level %q", logLevel)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
