package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/tgsift/internal/client"
	"github.com/matheus3301/tgsift/internal/config"
	"github.com/matheus3301/tgsift/internal/profile"
	"github.com/spf13/cobra"
)

// options holds the flags shared by every subcommand.
type options struct {
	profile string
	jsonOut bool
	timeout time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "tgsiftctl",
		Short:         "Query a running tgsiftd",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.profile, "profile", "", "profile name (overrides config default)")
	cmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "output in JSON format")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-request timeout")

	cmd.AddCommand(
		newStatusCommand(opts),
		newDialogsCommand(opts),
		newMessagesCommand(opts),
		newSearchCommand(opts),
		newTopicsCommand(opts),
		newWatchCommand(opts),
	)
	return cmd
}

// connect resolves the profile and opens a client on its socket.
func (o *options) connect() (*client.Client, error) {
	cfg, err := config.Effective(profile.ConfigPath(), "")
	if err != nil {
		return nil, err
	}
	name := profile.Resolve(o.profile, cfg)
	if err := profile.ValidateName(name); err != nil {
		return nil, err
	}
	c, err := client.New(profile.SocketPath(name))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon for profile %q: %w", name, err)
	}
	return c, nil
}

// run calls fn with a connected client and a context bounded by --timeout.
func (o *options) run(parent context.Context, fn func(ctx context.Context, c *client.Client) error) error {
	c, err := o.connect()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(parent, o.timeout)
	defer cancel()
	return fn(ctx, c)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
