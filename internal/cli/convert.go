package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ryohey/warp/internal/asset"
	"github.com/ryohey/warp/internal/config"
	"github.com/ryohey/warp/internal/ir"
	"github.com/ryohey/warp/internal/watch"
)

// ConvertOptions holds flags for the convert command.
type ConvertOptions struct {
	*RootOptions
	Output    string // output file path, "" for stdout
	Watch     bool
	BundleOut string // asset bundle directory, "" to skip bundling
	Project   string // project root holding .meta files
}

// ConvertResult summarizes one conversion.
type ConvertResult struct {
	Source   string              `json:"source"`
	Output   string              `json:"output,omitempty"`
	TreeHash string              `json:"tree_hash"`
	Nodes    int                 `json:"nodes"`
	Facets   int                 `json:"facets"`
	Bundle   *asset.BundleResult `json:"bundle,omitempty"`

	tree []byte // encoded tree when writing to stdout
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "convert <document>",
		Short: "Convert a scene document to an element tree",
		Long: `Convert a scene document to the intermediate JSON element tree.

With --watch the document is converted again whenever it changes. With
--bundle-out every asset the tree references is copied, named by its
identifier, into the bundle directory.

Example:
  warp convert Assets/Cube.prefab -o build/Cube.json
  warp convert Assets/Cube.prefab -o build/Cube.json --bundle-out build --project .
  warp convert Assets/Cube.prefab -o build/Cube.json --watch`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path (default stdout)")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "convert again on every change")
	cmd.Flags().StringVar(&opts.BundleOut, "bundle-out", "", "copy referenced assets into this directory")
	cmd.Flags().StringVar(&opts.Project, "project", "", "project root for asset lookup (default project_dir)")

	return cmd
}

func runConvert(opts *ConvertOptions, source string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg, err := opts.Config()
	if err != nil {
		return commandError(formatter, ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	if opts.Project == "" {
		opts.Project = cfg.ProjectDir
	}
	if opts.BundleOut != "" && opts.Project == "" {
		return commandError(formatter, ExitCommandError, ErrCodeBundle, "--bundle-out needs --project or project_dir", asset.ErrNoProject)
	}
	if opts.Watch && opts.Output == "" {
		return commandError(formatter, ExitCommandError, ErrCodeGeneric, "--watch needs --output", nil)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := convertOnce(ctx, opts, cfg, source)
	if err != nil {
		if !opts.Watch {
			return reportError(formatter, err)
		}
		// Keep watching; the next save may fix the document.
		slog.Error("convert failed", "source", source, "error", err)
	} else if err := outputConvert(formatter, opts, res); err != nil {
		return err
	}
	if !opts.Watch {
		return nil
	}

	return watchConvert(ctx, opts, cfg, source, formatter)
}

// watchConvert re-runs the conversion on every debounced change until the
// context is cancelled or the process is signalled.
func watchConvert(ctx context.Context, opts *ConvertOptions, cfg *config.Config, source string, formatter *OutputFormatter) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	changes := make(chan struct{}, 1)
	w, err := watch.NewFileWatcher(source, func(string) {
		select {
		case changes <- struct{}{}:
		default:
		}
	}, watch.WithDebounce(cfg.Debounce))
	if err != nil {
		return commandError(formatter, ExitCommandError, ErrCodeGeneric, "create watcher", err)
	}
	if err := w.Start(ctx); err != nil {
		return commandError(formatter, ExitCommandError, ErrCodeNotFound, "watch "+source, err)
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("convert watch stopped", "source", source)
			return nil
		case <-changes:
			res, err := convertOnce(ctx, opts, cfg, source)
			if err != nil {
				slog.Error("convert failed", "source", source, "error", err)
				continue
			}
			if err := outputConvert(formatter, opts, res); err != nil {
				return err
			}
		}
	}
}

func convertOnce(ctx context.Context, opts *ConvertOptions, cfg *config.Config, source string) (*ConvertResult, error) {
	tree, err := loadTree(source, cfg)
	if err != nil {
		return nil, &stepError{code: loadErrorCode(source, err), message: "convert " + source, err: err}
	}
	hash, err := ir.TreeFingerprint(tree)
	if err != nil {
		return nil, &stepError{code: ErrCodeGeneric, message: "fingerprint tree", err: err}
	}

	res := &ConvertResult{
		Source:   source,
		Output:   opts.Output,
		TreeHash: hash,
		Nodes:    tree.CountNodes(),
		Facets:   tree.CountFacets(),
	}

	if opts.Output != "" {
		if dir := filepath.Dir(opts.Output); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, &stepError{code: ErrCodeWriteFailed, message: "create output dir", err: err}
			}
		}
		if err := ir.WriteTreeFile(opts.Output, tree); err != nil {
			return nil, &stepError{code: ErrCodeWriteFailed, message: "write " + opts.Output, err: err}
		}
	}

	if opts.BundleOut != "" {
		b, err := asset.Bundle(ctx, asset.CollectIDs(tree), opts.Project, opts.BundleOut, asset.BundleOptions{})
		if err != nil {
			return nil, &stepError{code: ErrCodeBundle, message: "bundle assets", err: err}
		}
		res.Bundle = &b
	}

	slog.Info("converted", "source", source, "output", opts.Output, "nodes", res.Nodes, "facets", res.Facets)

	if opts.Output == "" {
		data, err := ir.MarshalTree(tree)
		if err != nil {
			return nil, &stepError{code: ErrCodeGeneric, message: "encode tree", err: err}
		}
		res.tree = data
	}
	return res, nil
}

func outputConvert(formatter *OutputFormatter, opts *ConvertOptions, res *ConvertResult) error {
	// Without --output the tree itself is the output.
	if opts.Output == "" {
		_, err := formatter.Writer.Write(append(res.tree, '\n'))
		return err
	}
	if formatter.Format == "json" {
		return formatter.Success(res)
	}

	fmt.Fprintf(formatter.Writer, "✓ Converted %s → %s (%d node(s), %d facet(s))\n",
		res.Source, res.Output, res.Nodes, res.Facets)
	if res.Bundle != nil {
		printBundle(formatter.Writer, "  ", *res.Bundle)
	}
	return nil
}

func printBundle(w io.Writer, indent string, b asset.BundleResult) {
	fmt.Fprintf(w, "%sbundled %d asset(s)", indent, len(b.Copied))
	var notes []string
	if n := len(b.Builtin); n > 0 {
		notes = append(notes, fmt.Sprintf("%d built-in skipped", n))
	}
	if n := len(b.Missing); n > 0 {
		notes = append(notes, fmt.Sprintf("%d missing", n))
	}
	if len(notes) > 0 {
		fmt.Fprintf(w, " (%s)", strings.Join(notes, ", "))
	}
	fmt.Fprintln(w)
}
