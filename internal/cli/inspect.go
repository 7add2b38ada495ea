package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ryohey/warp/internal/asset"
	"github.com/ryohey/warp/internal/ir"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Tree bool // print the node outline
}

// InspectResult summarizes a tree.
type InspectResult struct {
	Source   string         `json:"source"`
	TreeHash string         `json:"tree_hash"`
	Nodes    int            `json:"nodes"`
	Facets   int            `json:"facets"`
	Depth    int            `json:"depth"`
	Kinds    map[string]int `json:"kinds"`
	Assets   []string       `json:"assets"`
	Outline  []string       `json:"outline,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <document|tree.json>",
		Short: "Summarize an element tree",
		Long: `Print node and facet counts, facet kinds, referenced assets and the
tree hash of a scene document or an intermediate tree file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Tree, "tree", false, "print the node outline")

	return cmd
}

func runInspect(opts *InspectOptions, source string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg, err := opts.Config()
	if err != nil {
		return commandError(formatter, ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	tree, err := loadTree(source, cfg)
	if err != nil {
		return commandError(formatter, ExitCommandError, loadErrorCode(source, err), "load "+source, err)
	}
	res, err := inspectTree(source, tree, opts.Tree)
	if err != nil {
		return commandError(formatter, ExitCommandError, ErrCodeGeneric, "inspect "+source, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(res)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s\n", res.Source)
	fmt.Fprintf(w, "  hash:   %s\n", res.TreeHash)
	fmt.Fprintf(w, "  nodes:  %d (depth %d)\n", res.Nodes, res.Depth)
	fmt.Fprintf(w, "  facets: %d\n", res.Facets)
	for _, kind := range slices.Sorted(maps.Keys(res.Kinds)) {
		fmt.Fprintf(w, "    %-20s %d\n", kind, res.Kinds[kind])
	}
	fmt.Fprintf(w, "  assets: %d\n", len(res.Assets))
	for _, id := range res.Assets {
		fmt.Fprintf(w, "    %s\n", id)
	}
	if len(res.Outline) > 0 {
		fmt.Fprintln(w)
		for _, line := range res.Outline {
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

func inspectTree(source string, tree *ir.NodeRecord, outline bool) (*InspectResult, error) {
	hash, err := ir.TreeFingerprint(tree)
	if err != nil {
		return nil, err
	}
	res := &InspectResult{
		Source:   source,
		TreeHash: hash,
		Nodes:    tree.CountNodes(),
		Facets:   tree.CountFacets(),
		Kinds:    make(map[string]int),
		Assets:   asset.CollectIDs(tree),
	}
	if res.Assets == nil {
		res.Assets = []string{}
	}

	tree.Walk(func(n *ir.NodeRecord, depth int) bool {
		res.Depth = max(res.Depth, depth+1)
		kinds := make([]string, len(n.Facets))
		for i, f := range n.Facets {
			res.Kinds[f.KindName]++
			kinds[i] = f.KindName
		}
		if outline {
			line := fmt.Sprintf("%s%s %s", strings.Repeat("  ", depth), n.StableID, nodeName(n))
			if len(kinds) > 0 {
				line += " [" + strings.Join(kinds, ", ") + "]"
			}
			res.Outline = append(res.Outline, line)
		}
		return true
	})
	return res, nil
}

// nodeName returns the node's display name, falling back to its type.
func nodeName(n *ir.NodeRecord) string {
	if name, ok := n.Attributes["m_Name"].(ir.IRString); ok && name != "" {
		return fmt.Sprintf("%q", string(name))
	}
	return n.TypeName
}
