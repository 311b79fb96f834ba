package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dogtranslator/internal/domain/connectivity"
)

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Connectivity, queue, history and session overview",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				queued  int
				saved   int64
				network connectivity.Status
			)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				n, err := c.app.Queue.Len(ctx)
				queued = n
				return err
			})
			g.Go(func() error {
				n, err := c.app.History.Count(ctx)
				saved = n
				return err
			})
			g.Go(func() error {
				network = c.app.Checker.Check(ctx)
				return nil
			})
			if err := g.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			st := c.app.Session
			fmt.Fprintf(out, "backend: %s\n", c.app.Client.BaseURL())
			if network.Online {
				fmt.Fprintf(out, "network: online (%s)\n", network.Latency.Round(time.Millisecond))
			} else {
				fmt.Fprintf(out, "network: offline (%s)\n", network.Reason)
			}
			fmt.Fprintf(out, "queued: %d\n", queued)
			fmt.Fprintf(out, "history: %d\n", saved)

			if id := st.Identity(); id != nil {
				line := id.Subject
				if id.Email != "" {
					line = id.Email
				}
				if id.Expired(time.Now()) {
					line += " (expired)"
				}
				fmt.Fprintf(out, "session: %s\n", line)
			} else {
				fmt.Fprintln(out, "session: none")
			}
			if remaining := st.RemainingScans(); remaining < 0 {
				fmt.Fprintf(out, "scans today: %d (unlimited)\n", st.ScansToday())
			} else {
				fmt.Fprintf(out, "scans today: %d (%d left)\n", st.ScansToday(), remaining)
			}
			return nil
		},
	}
}
