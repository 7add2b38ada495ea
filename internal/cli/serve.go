package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ryohey/warp/internal/server"
	"github.com/ryohey/warp/internal/store"
)

// DefaultServeAddr is where serve listens without --addr.
const DefaultServeAddr = ":8080"

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
	DB   string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve <dir>",
		Short: "Serve documents and assets to polling sessions",
		Long: `Serve the files in <dir> under /static/ for "warp poll" clients and for
HTTP asset stores. With --db the pass log is exposed read-only under
/v1/passes. Prometheus metrics are served on /metrics.

Example:
  warp convert Cube.prefab -o out/Cube.json --watch &
  warp serve out --addr :8080 --db passes.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", DefaultServeAddr, "listen address")
	cmd.Flags().StringVar(&opts.DB, "db", "", "expose this pass log under /v1/passes")

	return cmd
}

func runServe(opts *ServeOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg, err := opts.Config()
	if err != nil {
		return commandError(formatter, ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return commandError(formatter, ExitCommandError, ErrCodeNotFound, "serve "+dir, err)
	}
	if !info.IsDir() {
		return commandError(formatter, ExitCommandError, ErrCodeNotFound, "serve "+dir, errors.New("not a directory"))
	}

	serverOpts := []server.Option{server.WithStatic(dir), server.WithMetrics()}
	if opts.Verbose {
		serverOpts = append(serverOpts, server.WithDebug())
	}

	dbPath := opts.DB
	if dbPath == "" {
		dbPath = cfg.DB
	}
	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return commandError(formatter, ExitCommandError, ErrCodeStore, "open pass log "+dbPath, err)
		}
		defer st.Close()
		serverOpts = append(serverOpts, server.WithPassLog(st))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	formatter.VerboseLog("serving %s on %s", dir, opts.Addr)
	if err := server.New(serverOpts...).ListenAndServe(ctx, opts.Addr); err != nil {
		return commandError(formatter, ExitCommandError, ErrCodeGeneric, "serve", err)
	}
	return nil
}
