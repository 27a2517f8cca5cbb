package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration after defaults and environment overrides",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			exitWithError("invalid configuration", err)
		}
		out, err := cfg.YAML()
		if err != nil {
			exitWithError("failed to render configuration", err)
		}
		cmd.OutOrStdout().Write(out)
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration without opening a driver",
	Long: `Validate the configuration file and environment overrides.

Examples:
  bypass config validate -c config.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			exitWithError("INVALID", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "VALID: driver %q, mtu %d, wait policy %s\n",
			cfg.NIC.Driver, cfg.Codec.MTU, cfg.Queue.WaitPolicy)
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}
