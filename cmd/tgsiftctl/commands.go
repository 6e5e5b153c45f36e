package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/matheus3301/tgsift/internal/api"
	"github.com/matheus3301/tgsift/internal/client"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// filterFlags binds the message filter flags of one command.
type filterFlags struct {
	filter api.Filter
	topic  int64
}

func (ff *filterFlags) register(cmd *cobra.Command, withMessageFilters bool) {
	f := cmd.Flags()
	f.StringVarP(&ff.filter.Search, "search", "s", "", "case-insensitive text to look for")
	f.IntVarP(&ff.filter.Limit, "limit", "n", 0, "maximum number of results (default from config)")
	f.StringVar(&ff.filter.Sort, "sort", "", "sort key")
	f.BoolVar(&ff.filter.Refresh, "refresh", false, "bypass the cache")
	if !withMessageFilters {
		return
	}
	f.StringVar(&ff.filter.Media, "media", "", "any, photo or video")
	f.Int64Var(&ff.topic, "topic", 0, "topic id (root message id)")
	f.StringVar(&ff.filter.Sender, "sender", "", "sender name or id substring")
	f.StringVar(&ff.filter.Date, "date", "", "date prefix, e.g. 2024-03 or 2024-03-05 (UTC)")
	f.StringVar(&ff.filter.Reply, "reply", "", "any, replied or not_replied")
}

// build returns the filter; --topic counts only when given.
func (ff *filterFlags) build(cmd *cobra.Command) api.Filter {
	f := ff.filter
	if cmd.Flags().Changed("topic") {
		id := ff.topic
		f.TopicID = &id
	}
	return f
}

func parseDialogIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid dialog id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and cache counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd.Context(), func(ctx context.Context, c *client.Client) error {
				resp, err := c.Status(ctx, &api.StatusRequest{})
				if err != nil {
					return describe(err)
				}
				if opts.jsonOut {
					return outputJSON(cmd.OutOrStdout(), resp)
				}
				printStatus(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
}

func newDialogsCommand(opts *options) *cobra.Command {
	ff := &filterFlags{}
	cmd := &cobra.Command{
		Use:   "dialogs",
		Short: "List dialogs, most recently active first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd.Context(), func(ctx context.Context, c *client.Client) error {
				resp, err := c.ListDialogs(ctx, &api.ListDialogsRequest{Filter: ff.build(cmd)})
				if err != nil {
					return describe(err)
				}
				if opts.jsonOut {
					return outputJSON(cmd.OutOrStdout(), resp)
				}
				printDialogs(cmd.OutOrStdout(), resp.Dialogs)
				return nil
			})
		},
	}
	ff.register(cmd, false)
	return cmd
}

func newMessagesCommand(opts *options) *cobra.Command {
	ff := &filterFlags{}
	cmd := &cobra.Command{
		Use:   "messages <dialog-id>",
		Short: "List the messages of one dialog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseDialogIDs(args)
			if err != nil {
				return err
			}
			return opts.run(cmd.Context(), func(ctx context.Context, c *client.Client) error {
				resp, err := c.ListMessages(ctx, &api.ListMessagesRequest{DialogID: ids[0], Filter: ff.build(cmd)})
				if err != nil {
					return describe(err)
				}
				if opts.jsonOut {
					return outputJSON(cmd.OutOrStdout(), resp)
				}
				printMessages(cmd.OutOrStdout(), resp.Messages)
				printNotes(cmd.ErrOrStderr(), resp.Notes)
				return nil
			})
		},
	}
	ff.register(cmd, true)
	return cmd
}

func newSearchCommand(opts *options) *cobra.Command {
	ff := &filterFlags{}
	cmd := &cobra.Command{
		Use:   "search <dialog-id>...",
		Short: "Run one filter across several dialogs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseDialogIDs(args)
			if err != nil {
				return err
			}
			return opts.run(cmd.Context(), func(ctx context.Context, c *client.Client) error {
				resp, err := c.Search(ctx, &api.SearchRequest{DialogIDs: ids, Filter: ff.build(cmd)})
				if err != nil {
					return describe(err)
				}
				if opts.jsonOut {
					return outputJSON(cmd.OutOrStdout(), resp)
				}
				for _, r := range resp.Results {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "== dialog %d (%d)\n", r.DialogID, len(r.Messages))
					printMessages(cmd.OutOrStdout(), r.Messages)
				}
				printNotes(cmd.ErrOrStderr(), resp.Errors)
				if len(resp.Results) == 0 && len(resp.Errors) > 0 {
					return errors.New("every dialog failed")
				}
				return nil
			})
		},
	}
	ff.register(cmd, true)
	return cmd
}

func newTopicsCommand(opts *options) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "topics <dialog-id>",
		Short: "List the topics of a forum-style dialog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseDialogIDs(args)
			if err != nil {
				return err
			}
			return opts.run(cmd.Context(), func(ctx context.Context, c *client.Client) error {
				if check {
					resp, err := c.SupportsTopics(ctx, &api.SupportsTopicsRequest{DialogID: ids[0]})
					if err != nil {
						return describe(err)
					}
					if opts.jsonOut {
						return outputJSON(cmd.OutOrStdout(), resp)
					}
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), resp.Supported)
					return nil
				}
				resp, err := c.ListTopics(ctx, &api.ListTopicsRequest{DialogID: ids[0]})
				if err != nil {
					return describe(err)
				}
				if opts.jsonOut {
					return outputJSON(cmd.OutOrStdout(), resp)
				}
				printTopics(cmd.OutOrStdout(), resp.Topics)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "only report whether the dialog is organised in topics")
	return cmd
}

func newWatchCommand(opts *options) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream daemon events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			stream, err := c.WatchEvents(ctx, &api.WatchEventsRequest{Prefix: prefix})
			if err != nil {
				return describe(err)
			}
			for {
				evt, err := stream.Recv()
				if errors.Is(err, io.EOF) || ctx.Err() != nil {
					return nil
				}
				if err != nil {
					return describe(err)
				}
				if opts.jsonOut {
					if err := outputJSON(cmd.OutOrStdout(), evt); err != nil {
						return err
					}
					continue
				}
				printEvent(cmd.OutOrStdout(), evt)
			}
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only events whose kind starts with this prefix")
	return cmd
}

// describe turns gRPC status errors into readable messages.
func describe(err error) error {
	st, ok := grpcstatus.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unavailable:
		return fmt.Errorf("unavailable: %s", st.Message())
	case codes.ResourceExhausted:
		return fmt.Errorf("rate limited: %s", st.Message())
	case codes.NotFound:
		return fmt.Errorf("not found: %s", st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("invalid request: %s", st.Message())
	default:
		return fmt.Errorf("%s: %s", st.Code(), st.Message())
	}
}
