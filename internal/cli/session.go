package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/ryohey/warp/internal/engine"
	"github.com/ryohey/warp/internal/server"
)

// SessionOptions are the flags shared by the long-running watch and poll
// commands.
type SessionOptions struct {
	LiveOptions
	MetricsAddr string // serve /metrics here while the session runs
	Dump        bool   // print the live scene on exit
}

func (o *SessionOptions) register(flags *pflag.FlagSet) {
	flags.StringVar(&o.DB, "db", "", "record passes in this SQLite pass log")
	flags.StringVar(&o.AssetDir, "asset-dir", "", "resolve assets from this blob directory")
	flags.StringVar(&o.AssetURL, "asset-url", "", "resolve assets from this server")
	flags.StringVar(&o.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.BoolVar(&o.Dump, "dump", false, "print the live scene on exit")
}

// passPrinter reports each finished pass on the formatter's writer: one
// line of text or one JSON object per pass.
func passPrinter(formatter *OutputFormatter) func(engine.PassResult) {
	enc := json.NewEncoder(formatter.Writer)
	return func(r engine.PassResult) {
		s := summarize(r)
		if formatter.Format == "json" {
			if err := enc.Encode(s); err != nil {
				slog.Error("write pass summary", "error", err)
			}
			return
		}
		fmt.Fprintln(formatter.Writer, s)
	}
}

// runSession drives l until ctx is cancelled or the process is signalled.
// start launches the change source that feeds the session; it runs once
// the coordinating loop is up.
func runSession(ctx context.Context, l *live, so SessionOptions, formatter *OutputFormatter, start func(context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return l.session.Run(gctx)
	})
	if so.MetricsAddr != "" {
		g.Go(func() error {
			return server.New(server.WithMetrics()).ListenAndServe(gctx, so.MetricsAddr)
		})
	}
	g.Go(func() error {
		return start(gctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if so.Dump {
		if formatter.Format == "json" {
			if jerr := json.NewEncoder(formatter.Writer).Encode(l.scene.Snapshot()); jerr != nil {
				return jerr
			}
		} else if derr := l.scene.Dump(formatter.Writer); derr != nil {
			return derr
		}
	}
	return err
}
