package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/bypass/internal/boot"
)

var shutdownTimeout time.Duration

var echoCmd = &cobra.Command{
	Use:   "echo",
	Short: "Send every received message back to its sender",
	Long: `Bind the configured local address and echo each message to its sender
until interrupted.

Examples:
  bypass echo -c config.yml
  BYPASS_QUEUE_LOCAL=10.0.0.1:9000 bypass echo -c config.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			exitWithError("invalid configuration", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := boot.Start(ctx, cfg)
		if err != nil {
			exitWithError("failed to start endpoint", err)
		}

		var count int
		err = e.Echo(ctx, func(int, netip.AddrPort) { count++ })

		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := e.Close(closeCtx); cerr != nil {
			exitWithError("failed to close endpoint", cerr)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			exitWithError("echo stopped", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "echoed %d message(s)\n", count)
	},
}

func init() {
	echoCmd.Flags().DurationVarP(&shutdownTimeout, "timeout", "t", 5*time.Second, "shutdown timeout")
}
