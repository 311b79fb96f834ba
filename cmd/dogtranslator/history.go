package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func (c *cli) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Saved interpretations",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved interpretations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := c.app.History.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved interpretations.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tTONE\tCONF\tEXPLANATION")
			for _, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%s\t%.0f%%\t%s\n",
					e.ID, e.CreatedAt.Local().Format(time.DateTime), e.Tone, e.Confidence*100, truncate(e.Explanation, 60))
			}
			return w.Flush()
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries, 0 for all")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved interpretation and its photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			if err := c.app.History.Delete(cmd.Context(), uint(id)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d.\n", id)
			return nil
		},
	}

	sync := &cobra.Command{
		Use:   "sync",
		Short: "Import interpretations saved on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.app.History.SyncRemote(cmd.Context())
			if err != nil {
				return friendly(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fetched %d, imported %d, skipped %d\n", res.Fetched, res.Imported, res.Skipped)
			return nil
		},
	}

	cmd.AddCommand(list, del, sync)
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
