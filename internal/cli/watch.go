package cli

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryohey/warp/internal/watch"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	SessionOptions
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <document>",
		Short: "Hot-reload a document into a live session",
		Long: `Spawn a document into an in-memory live session and reconcile the
session every time the file is saved. Each pass is reported as it
finishes; bursts of saves are debounced and coalesced.

Example:
  warp watch Assets/Cube.prefab --db passes.db
  warp watch scene.json --metrics-addr :9090 --dump`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	opts.register(cmd.Flags())
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 0, "quiet period before reloading (default from config)")

	return cmd
}

func runWatch(opts *WatchOptions, source string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg, err := opts.Config()
	if err != nil {
		return commandError(formatter, ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	debounce := cfg.Debounce
	if opts.Debounce > 0 {
		debounce = opts.Debounce
	}
	if opts.MetricsAddr == "" {
		opts.MetricsAddr = cfg.MetricsAddr
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

	treeOpts := cfg.TreeOptions()
	reload := watch.ReloadFile(l.session, treeOpts...)
	w, err := watch.NewFileWatcher(source, reload, watch.WithDebounce(debounce))
	if err != nil {
		return commandError(formatter, ExitCommandError, ErrCodeGeneric, "create watcher", err)
	}

	err = runSession(ctx, l, opts.SessionOptions, formatter, func(ctx context.Context) error {
		if err := w.Start(ctx); err != nil {
			return &stepError{code: ErrCodeNotFound, message: "watch " + filepath.Base(source), err: err}
		}
		defer w.Stop()
		// Initial spawn; later saves reconcile.
		reload(w.Path())
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		return reportError(formatter, err)
	}
	return nil
}
