package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryohey/warp/internal/asset"
)

// BundleOptions holds flags for the bundle command.
type BundleOptions struct {
	*RootOptions
	Project     string
	Out         string
	Concurrency int
	Strict      bool // fail when a referenced asset is missing
}

// BundleCommandResult is the outcome of bundling one document's assets.
type BundleCommandResult struct {
	Source string             `json:"source"`
	Out    string             `json:"out"`
	Assets int                `json:"assets"`
	Result asset.BundleResult `json:"result"`
}

// NewBundleCommand creates the bundle command.
func NewBundleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BundleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bundle <document>",
		Short: "Copy the assets a document references into a blob directory",
		Long: `Collect every asset identifier referenced by a document, find each one in
the project by its .meta file, and copy it to <out>/<id>. The output
directory can be served by "warp serve" or used as --asset-dir.

Engine built-in assets are skipped. Assets missing from the project are
reported; with --strict they fail the command.

Example:
  warp bundle Assets/Cube.prefab --project . --out build/assets`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBundle(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Project, "project", "", "project root to search (default from config)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "blob directory to write (required)")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "parallel copies (0 = GOMAXPROCS)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail when a referenced asset is missing")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runBundle(opts *BundleOptions, source string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg, err := opts.Config()
	if err != nil {
		return commandError(formatter, ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	project := opts.Project
	if project == "" {
		project = cfg.ProjectDir
	}
	if project == "" {
		return commandError(formatter, ExitCommandError, ErrCodeBundle, "no project directory", asset.ErrNoProject)
	}

	tree, err := loadTree(source, cfg)
	if err != nil {
		return commandError(formatter, ExitCommandError, loadErrorCode(source, err), "load "+source, err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ids := asset.CollectIDs(tree)
	b, err := asset.Bundle(ctx, ids, project, opts.Out, asset.BundleOptions{Concurrency: opts.Concurrency})
	if err != nil {
		return commandError(formatter, ExitCommandError, ErrCodeBundle, "bundle assets", err)
	}

	res := &BundleCommandResult{Source: source, Out: opts.Out, Assets: len(ids), Result: b}
	if opts.Strict && len(b.Missing) > 0 {
		err := fmt.Errorf("%d referenced asset(s) missing from %s", len(b.Missing), project)
		if formatter.Format == "json" {
			_ = formatter.Error(ErrCodeBundle, err.Error(), res)
			return WrapExitError(ExitFailure, ErrCodeBundle+": missing assets", err)
		}
		for _, id := range b.Missing {
			fmt.Fprintf(formatter.GetErrWriter(), "  missing %s\n", id)
		}
		return commandError(formatter, ExitFailure, ErrCodeBundle, "missing assets", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(res)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s references %d asset(s)\n", source, len(ids))
	printBundle(formatter.Writer, "  ", b)
	return nil
}
