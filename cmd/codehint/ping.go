package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"codehint/internal/transport"
)

var pingTimeout time.Duration

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the remote engine is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(dirFlag)
		if err != nil {
			return err
		}
		defer rt.Close()

		if rt.cfg.Transport.Kind != transport.KindRemote {
			return fmt.Errorf("ping needs a remote transport, configured kind is %q", rt.cfg.Transport.Kind)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), pingTimeout)
		defer cancel()

		remote := rt.newRemote()
		defer remote.Close()

		start := time.Now()
		if err := remote.Ping(ctx); err != nil {
			return err
		}
		h := remote.Health()
		fmt.Fprintln(cmd.OutOrStdout(), pingSummary(rt.cfg.Transport.Remote.Endpoint, h.State(), h.LastResponse(), time.Since(start)))
		return nil
	},
}

func init() {
	pingCmd.Flags().DurationVar(&pingTimeout, "timeout", 5*time.Second, "Ping deadline")
	rootCmd.AddCommand(pingCmd)
}

func pingSummary(endpoint string, state transport.State, last time.Time, took time.Duration) string {
	line := fmt.Sprintf("%s is %s (%s)", endpoint, state, took.Round(time.Millisecond))
	if !last.IsZero() {
		line += ", last response " + last.UTC().Format(time.RFC3339)
	}
	return line
}
