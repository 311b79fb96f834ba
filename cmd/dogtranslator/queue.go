package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"dogtranslator/internal/app/services"
	"dogtranslator/internal/domain/analysis/model"
)

func (c *cli) queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and replay photos saved while offline",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List queued photos, oldest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				items, err := c.app.Queue.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTONE\tQUEUED\tPHOTO")
				for _, it := range items {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.ID, it.Tone, it.Timestamp.Local().Format(time.DateTime), it.URI)
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "remove <id>",
			Short: "Remove one queued photo",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := c.app.Queue.Remove(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s.\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every queued photo",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := c.app.Queue.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Queue cleared.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "replay",
			Short: "Send queued photos to the backend",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				report, err := c.app.Replayer.Replay(cmd.Context())
				out := cmd.OutOrStdout()
				for _, o := range report.Outcomes {
					switch {
					case o.Result != nil && o.Result.Status == model.StatusError:
						fmt.Fprintf(out, "%s: failed (%s)\n", o.Item.ID, services.ResultError(*o.Result).Message)
					case o.Result != nil:
						fmt.Fprintf(out, "%s: %s\n", o.Item.ID, o.Result.Explanation)
					case o.Dropped:
						fmt.Fprintf(out, "%s: dropped (%v)\n", o.Item.ID, o.Err)
					}
				}
				fmt.Fprintf(out, "replayed %d, dropped %d, remaining %d\n", report.Succeeded, report.Dropped, report.Remaining)
				if report.StoppedBy != "" {
					reason := report.StoppedBy
					if n := len(report.Outcomes); n > 0 && !report.Outcomes[n-1].Dropped && report.Outcomes[n-1].Err != nil {
						reason = friendly(report.Outcomes[n-1].Err).Error()
					}
					fmt.Fprintf(out, "stopped: %s\n", reason)
				}
				if err != nil {
					return friendly(err)
				}
				return nil
			},
		},
	)
	return cmd
}
