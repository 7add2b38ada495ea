package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ryohey/warp/internal/config"
	"github.com/ryohey/warp/internal/ir"
	"github.com/ryohey/warp/internal/store"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Color  string // auto | always | never
	FromDB string // take the old tree from the pass log
}

// PlanResult is the dry-run diff between two trees.
type PlanResult struct {
	Old      string      `json:"old"`
	New      string      `json:"new"`
	Changes  []ir.Change `json:"changes"`
	Creates  int         `json:"creates"`
	Destroys int         `json:"destroys"`
	Updates  int         `json:"updates"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan [old] <new>",
		Short: "Show what reconciling one tree into another would change",
		Long: `Diff two element trees by stable id and print the creates, destroys
and attribute updates a reconcile pass would perform. Nothing is applied.

The old tree is a file, "-" for an empty graph, or with --from-db the last
tree successfully applied for the new tree's source.

Example:
  warp plan build/Cube.old.json build/Cube.json
  warp plan - Assets/Cube.prefab
  warp plan --from-db warp.db Assets/Cube.prefab`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Color, "color", "auto", "colorize output (auto|always|never)")
	cmd.Flags().StringVar(&opts.FromDB, "from-db", "", "read the old tree from this pass log")

	return cmd
}

func runPlan(opts *PlanOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg, err := opts.Config()
	if err != nil {
		return commandError(formatter, ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	var oldSrc, newSrc string
	switch {
	case opts.FromDB != "" && len(args) == 1:
		newSrc = args[0]
	case opts.FromDB == "" && len(args) == 2:
		oldSrc, newSrc = args[0], args[1]
	default:
		return commandError(formatter, ExitCommandError, ErrCodeGeneric, "pass either <old> <new> or --from-db with <new>", nil)
	}

	next, err := loadTree(newSrc, cfg)
	if err != nil {
		return commandError(formatter, ExitCommandError, loadErrorCode(newSrc, err), "load "+newSrc, err)
	}
	old, oldLabel, err := loadPlanBase(cmd.Context(), opts, cfg, oldSrc, newSrc)
	if err != nil {
		return reportError(formatter, err)
	}

	res := &PlanResult{Old: oldLabel, New: newSrc, Changes: ir.DiffTrees(old, next)}
	if res.Changes == nil {
		res.Changes = []ir.Change{}
	}
	for _, c := range res.Changes {
		switch c.Op {
		case ir.ChangeCreate:
			res.Creates++
		case ir.ChangeDestroy:
			res.Destroys++
		case ir.ChangeUpdate:
			res.Updates++
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(res)
	}
	return printPlan(formatter, res, opts.Color)
}

func loadPlanBase(ctx context.Context, opts *PlanOptions, cfg *config.Config, oldSrc, newSrc string) (*ir.NodeRecord, string, error) {
	if opts.FromDB != "" {
		if ctx == nil {
			ctx = context.Background()
		}
		st, err := store.Open(opts.FromDB)
		if err != nil {
			return nil, "", &stepError{code: ErrCodeStore, message: "open pass log", err: err}
		}
		defer st.Close()
		rec, tree, err := st.LatestSnapshot(ctx, newSrc)
		if err != nil {
			return nil, "", &stepError{code: ErrCodeStore, message: "no applied tree for " + newSrc, err: err}
		}
		return tree, fmt.Sprintf("%s@%d", opts.FromDB, rec.Seq), nil
	}
	if oldSrc == "-" {
		return nil, "(empty)", nil
	}
	old, err := loadTree(oldSrc, cfg)
	if err != nil {
		return nil, "", &stepError{code: loadErrorCode(oldSrc, err), message: "load " + oldSrc, err: err}
	}
	return old, oldSrc, nil
}

func printPlan(formatter *OutputFormatter, res *PlanResult, mode string) error {
	create := color.New(color.FgGreen)
	destroy := color.New(color.FgRed)
	update := color.New(color.FgYellow)
	for _, c := range []*color.Color{create, destroy, update} {
		switch mode {
		case "always":
			c.EnableColor()
		case "never":
			c.DisableColor()
		}
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s → %s\n", res.Old, res.New)
	for _, c := range res.Changes {
		switch c.Op {
		case ir.ChangeCreate:
			line := fmt.Sprintf("+ %s %s %s", c.Entity, c.StableID, c.Name)
			if c.Parent != "" {
				line += " (under " + c.Parent + ")"
			}
			create.Fprintln(w, line)
		case ir.ChangeDestroy:
			destroy.Fprintf(w, "- %s %s %s\n", c.Entity, c.StableID, c.Name)
		case ir.ChangeUpdate:
			update.Fprintf(w, "~ %s %s %s: %v\n", c.Entity, c.StableID, c.Name, c.Fields)
		}
	}
	if len(res.Changes) == 0 {
		fmt.Fprintln(w, "No changes.")
		return nil
	}
	fmt.Fprintf(w, "Plan: %d to create, %d to destroy, %d to update.\n", res.Creates, res.Destroys, res.Updates)
	return nil
}
