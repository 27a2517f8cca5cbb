// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/bypass/internal/config"
)

var (
	// Global flags
	configFile string
	envFile    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bypass",
	Short: "Bypass - asynchronous UDP endpoint over raw Ethernet frames",
	Long: `Bypass sends and receives scatter-gather messages as single Ethernet/IPv4/UDP
frames through a raw frame driver, bypassing the kernel socket layer.

Drivers:
  - channel:  in-memory loopback, for testing
  - afpacket: Linux TPACKET_V3 ring on a network interface
  - tap:      Linux TAP device`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults only when empty)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "",
		"dotenv file with BYPASS_* overrides (default: .env next to the config file)")

	// Add subcommands
	rootCmd.AddCommand(echoCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(configCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile, envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
