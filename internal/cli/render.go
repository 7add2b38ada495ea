package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryohey/warp/internal/engine"
	"github.com/ryohey/warp/internal/ir"
	"github.com/ryohey/warp/internal/scene"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	LiveOptions
	Update bool // finish with a forced update pass
}

// PassSummary is the CLI view of one pass.
type PassSummary struct {
	ID            string      `json:"id"`
	Seq           int64       `json:"seq"`
	Kind          ir.PassKind `json:"kind"`
	Source        string      `json:"source"`
	Creates       int         `json:"creates"`
	Destroys      int         `json:"destroys"`
	Applied       int         `json:"applied"`
	Skipped       int         `json:"skipped"`
	AssetFailures int         `json:"asset_failures"`
	Error         string      `json:"error,omitempty"`
}

func summarize(r engine.PassResult) PassSummary {
	s := PassSummary{
		ID:            r.ID,
		Seq:           r.Seq,
		Kind:          r.Kind,
		Source:        r.Source,
		Creates:       r.Creates,
		Destroys:      r.Destroys,
		Applied:       r.Applied,
		Skipped:       r.Skipped,
		AssetFailures: r.AssetFailures,
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return s
}

func (s PassSummary) String() string {
	line := fmt.Sprintf("%s #%d %s: +%d -%d applied=%d skipped=%d asset_failures=%d",
		s.Kind, s.Seq, s.Source, s.Creates, s.Destroys, s.Applied, s.Skipped, s.AssetFailures)
	if s.Error != "" {
		line += " error=" + s.Error
	}
	return line
}

// RenderResult is the outcome of rendering documents into a fresh scene.
type RenderResult struct {
	Passes []PassSummary    `json:"passes"`
	Scene  []scene.NodeView `json:"scene"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <document> [next-document...]",
		Short: "Spawn a document into an in-memory scene and print it",
		Long: `Spawn the first document into an empty in-memory scene, reconcile the
scene against each following document in turn, and print the resulting
live graph. Useful to check what a sequence of edits does to a live
session without a running host.

Example:
  warp render Assets/Cube.prefab
  warp render v1.prefab v2.prefab --update --asset-dir build`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "finish with a forced update pass")
	cmd.Flags().StringVar(&opts.DB, "db", "", "record passes in this SQLite pass log")
	cmd.Flags().StringVar(&opts.AssetDir, "asset-dir", "", "resolve assets from this blob directory")
	cmd.Flags().StringVar(&opts.AssetURL, "asset-url", "", "resolve assets from this server")

	return cmd
}

func runRender(opts *RenderOptions, sources []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg, err := opts.Config()
	if err != nil {
		return commandError(formatter, ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	trees := make([]*ir.NodeRecord, len(sources))
	for i, src := range sources {
		tree, err := loadTree(src, cfg)
		if err != nil {
			return commandError(formatter, ExitCommandError, loadErrorCode(src, err), "load "+src, err)
		}
		trees[i] = tree
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	l, err := openLive(ctx, cfg, opts.LiveOptions)
	if err != nil {
		return reportError(formatter, err)
	}
	defer l.Close()

	res := &RenderResult{Passes: []PassSummary{}}
	var failed error
	var failedID string
	run := func(kind ir.PassKind, tree *ir.NodeRecord, source string) {
		r, err := l.session.Pass(ctx, kind, source, tree)
		res.Passes = append(res.Passes, summarize(r))
		formatter.VerboseLog("%s", summarize(r))
		if err != nil && failed == nil {
			failed, failedID = err, r.ID
		}
	}

	run(ir.PassSpawn, trees[0], sources[0])
	for i := 1; i < len(trees) && failed == nil; i++ {
		run(ir.PassReconcile, trees[i], sources[i])
	}
	if opts.Update && failed == nil {
		run(ir.PassUpdate, trees[len(trees)-1], sources[len(sources)-1])
	}
	res.Scene = l.scene.Snapshot()

	if formatter.Format == "json" {
		if failed != nil {
			_ = formatter.PassError(failedID, ErrCodePass, failed.Error(), res)
			return WrapExitError(ExitFailure, ErrCodePass+": pass failed", failed)
		}
		return formatter.Success(res)
	}

	for _, p := range res.Passes {
		fmt.Fprintln(formatter.Writer, p)
	}
	fmt.Fprintln(formatter.Writer)
	if err := l.scene.Dump(formatter.Writer); err != nil {
		return err
	}
	if failed != nil {
		_ = formatter.PassError(failedID, ErrCodePass, "pass failed", failed.Error())
		return WrapExitError(ExitFailure, ErrCodePass+": pass failed", failed)
	}
	return nil
}
