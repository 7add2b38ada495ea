package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ryohey/warp/internal/ir"
	"github.com/ryohey/warp/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DB     string
	Source string
	After  int64
	Limit  int
	Failed bool
}

// HistoryResult lists recorded passes.
type HistoryResult struct {
	DB     string          `json:"db"`
	Passes []ir.PassRecord `json:"passes"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List passes recorded in a pass log",
		Long: `List the reconciliation passes recorded by watch, poll or render in a
SQLite pass log, oldest first.

Example:
  warp history --db passes.db
  warp history --db passes.db --source Cube.prefab --failed --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "pass log path (default from config)")
	cmd.Flags().StringVar(&opts.Source, "source", "", "only passes for this source")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only passes with seq greater than this")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of passes (0 = all)")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "only failed passes")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg, err := opts.Config()
	if err != nil {
		return commandError(formatter, ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	dbPath := opts.DB
	if dbPath == "" {
		dbPath = cfg.DB
	}
	if dbPath == "" {
		return commandError(formatter, ExitCommandError, ErrCodeStore, "no pass log: set --db or db", nil)
	}
	if opts.Limit < 0 {
		return commandError(formatter, ExitCommandError, ErrCodeGeneric, "--limit must not be negative", nil)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return commandError(formatter, ExitCommandError, ErrCodeStore, "open pass log "+dbPath, err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	passes, err := st.ReadPasses(ctx, store.PassFilter{
		Source:   opts.Source,
		AfterSeq: opts.After,
		Limit:    opts.Limit,
		Failed:   opts.Failed,
	})
	if err != nil {
		return commandError(formatter, ExitCommandError, ErrCodeStore, "read passes", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(&HistoryResult{DB: dbPath, Passes: passes})
	}

	if len(passes) == 0 {
		fmt.Fprintln(formatter.Writer, "No passes recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(formatter.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tKIND\tSOURCE\tSTATUS\t+\t-\tAPPLIED\tSKIPPED\tASSET_FAILURES\tID")
	for _, p := range passes {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			p.Seq, p.Kind, p.Source, p.Status, p.Creates, p.Destroys, p.Applied, p.Skipped, p.AssetFailures, p.ID)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, p := range passes {
		if p.Error != "" {
			fmt.Fprintf(formatter.Writer, "#%d: %s\n", p.Seq, p.Error)
		}
	}
	return nil
}
