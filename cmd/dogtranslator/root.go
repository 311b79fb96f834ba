package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"dogtranslator/internal/bootstrap"
	apperrors "dogtranslator/internal/platform/errors"
)

// cli carries the wired App between cobra hooks and commands.
type cli struct {
	opts       bootstrap.Options
	configPath string
	verbose    bool
	app        *bootstrap.App
}

// run executes one command line. The App is closed even when the command fails.
func run(ctx context.Context, opts bootstrap.Options, args []string, stdout, stderr io.Writer) error {
	c := &cli{opts: opts}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if closeErr := c.close(context.WithoutCancel(ctx)); err == nil {
		err = closeErr
	}
	return err
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dogtranslator",
		Short:         "Interpret what your dog is saying from a photo",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "configuration file (default .dogtranslator.yaml)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		c.analyzeCmd(),
		c.explainCmd(),
		c.queueCmd(),
		c.historyCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.settingsCmd(),
		c.statusCmd(),
		c.speakCmd(),
	)
	return root
}

func (c *cli) open(cmd *cobra.Command) error {
	if c.app != nil || !needsApp(cmd) {
		return nil
	}
	opts := c.opts
	if c.configPath != "" {
		opts.ConfigPath = c.configPath
	}
	if opts.Console == nil {
		opts.Console = cmd.ErrOrStderr()
	}
	if c.verbose {
		opts.LogLevel = "debug"
	}
	app, err := bootstrap.New(cmd.Context(), opts)
	if err != nil {
		return err
	}
	c.app = app
	return nil
}

func needsApp(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		switch cmd.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

func (c *cli) close(ctx context.Context) error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close(ctx)
	c.app = nil
	return err
}

// friendly turns backend errors into the message shown to users.
func friendly(err error) error {
	if apiErr, ok := apperrors.AsAPIError(err); ok {
		return &userError{msg: apiErr.UserMessage(), cause: err}
	}
	return err
}

type userError struct {
	msg   string
	cause error
}

func (e *userError) Error() string { return e.msg }
func (e *userError) Unwrap() error { return e.cause }
