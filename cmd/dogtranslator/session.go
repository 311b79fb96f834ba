package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func (c *cli) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [id-token]",
		Short: "Store the identity token sent with every request",
		Long:  "Store the identity token sent with every request. Without an argument the token is read from stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw string
			if len(args) == 1 {
				raw = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no token given")
				}
				raw = line
			}
			id, err := c.app.Session.Login(cmd.Context(), strings.TrimSpace(raw))
			if err != nil {
				return err
			}
			who := id.Email
			if who == "" {
				who = id.Subject
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Logged in as %s.\n", who)
			if id.Expired(time.Now()) {
				fmt.Fprintln(out, "Warning: this token has already expired.")
			}
			return nil
		},
	}
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored identity token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.Session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func (c *cli) settingsCmd() *cobra.Command {
	var autoSpeak, premium bool
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change app settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st := c.app.Session
			if cmd.Flags().Changed("auto-speak") {
				if err := st.SetAutoSpeak(ctx, autoSpeak); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("premium") {
				if err := st.SetPremium(ctx, premium); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "auto-speak: %t\n", st.AutoSpeak())
			fmt.Fprintf(out, "premium: %t\n", st.Premium())
			return nil
		},
	}
	cmd.Flags().BoolVar(&autoSpeak, "auto-speak", false, "read every interpretation aloud")
	cmd.Flags().BoolVar(&premium, "premium", false, "lift the daily scan limit")
	return cmd
}
