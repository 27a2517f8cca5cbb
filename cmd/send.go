package cmd

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/bypass/internal/boot"
)

var (
	sendPeer      string
	sendWaitReply bool
	sendTimeout   time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send <segment>...",
	Short: "Send one message, one argument per segment",
	Long: `Send a single scatter-gather message to the peer. Each argument becomes one
segment. With --wait-reply the command waits for the next message and prints
its segments.

Examples:
  bypass send -c config.yml --peer 10.0.0.2:9001 ab cdef
  bypass send -c config.yml --wait-reply hello`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			exitWithError("invalid configuration", err)
		}
		if sendPeer != "" {
			if _, err := netip.ParseAddrPort(sendPeer); err != nil {
				exitWithError(fmt.Sprintf("invalid --peer %q", sendPeer), err)
			}
			cfg.Queue.Peer = sendPeer
		}

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		e, err := boot.Start(ctx, cfg)
		if err != nil {
			exitWithError("failed to start endpoint", err)
		}
		defer e.Close(context.Background())

		segs := make([][]byte, len(args))
		for i, a := range args {
			segs[i] = []byte(a)
		}
		n, err := e.Send(ctx, segs...)
		if err != nil {
			e.Close(context.Background())
			exitWithError("send failed", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent %d byte(s) in %d segment(s) from %s\n", n, len(segs), e.Queue.LocalAddr())

		if !sendWaitReply {
			return
		}
		sga, from, err := e.Receive(ctx)
		if err != nil {
			e.Close(context.Background())
			exitWithError("no reply", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reply from %s, %d segment(s):\n", from, sga.NumSegments())
		for i, seg := range sga.Segments {
			fmt.Fprintf(cmd.OutOrStdout(), "  [%d] %q\n", i, seg)
		}
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendPeer, "peer", "", "destination ip:port (overrides queue.peer)")
	sendCmd.Flags().BoolVar(&sendWaitReply, "wait-reply", false, "wait for one reply and print it")
	sendCmd.Flags().DurationVarP(&sendTimeout, "timeout", "t", 5*time.Second, "overall timeout")
}
