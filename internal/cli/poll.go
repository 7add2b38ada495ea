package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryohey/warp/internal/watch"
)

// PollOptions holds flags for the poll command.
type PollOptions struct {
	*RootOptions
	SessionOptions
	Interval time.Duration
}

// NewPollCommand creates the poll command.
func NewPollCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PollOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "poll <server-url> <name>",
		Short: "Hot-reload a document served over HTTP",
		Long: `Fetch <server-url>/static/<name> on a fixed interval and reconcile an
in-memory live session against each fetched document. Assets resolve
from the same server unless an asset store is configured.

Pair with "warp serve" on the machine that edits the document.

Example:
  warp poll http://10.0.0.5:8080 Cube.json
  warp poll http://localhost:8080 Cube.prefab --interval 1s --dump`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPoll(opts, args[0], args[1], cmd)
		},
	}

	opts.register(cmd.Flags())
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "time between fetches (default from config)")

	return cmd
}

func runPoll(opts *PollOptions, serverURL, name string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg, err := opts.Config()
	if err != nil {
		return commandError(formatter, ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	interval := cfg.PollInterval
	if opts.Interval > 0 {
		interval = opts.Interval
	}
	if opts.MetricsAddr == "" {
		opts.MetricsAddr = cfg.MetricsAddr
	}
	if opts.AssetDir == "" && opts.AssetURL == "" && cfg.AssetDir == "" && cfg.AssetURL == "" {
		opts.AssetURL = serverURL
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	l, err := openLive(ctx, cfg, opts.LiveOptions, passPrinter(formatter))
	if err != nil {
		return reportError(formatter, err)
	}
	defer l.Close()

	p, err := watch.NewPoller(serverURL, name, watch.ReloadTree(l.session),
		watch.WithInterval(interval),
		watch.WithTreeOptions(cfg.TreeOptions()...),
	)
	if err != nil {
		return commandError(formatter, ExitCommandError, ErrCodeConfig, "create poller", err)
	}

	err = runSession(ctx, l, opts.SessionOptions, formatter, func(ctx context.Context) error {
		p.Start(ctx)
		defer p.Stop()
		<-ctx.Done()
		fetches, failures := p.Stats()
		formatter.VerboseLog("polled %s: %d fetch(es), %d failed", p.URL(), fetches, failures)
		return ctx.Err()
	})
	if err != nil {
		return reportError(formatter, err)
	}
	return nil
}
