// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"path/filepath"

	"mu-cli/internal/sourcetree"

	"github.com/ddddddO/gtree"
	"github.com/spf13/cobra"
)

type treeOptions struct {
	dir string
}

func newTreeCommand(app *App, g *globalOptions) *cobra.Command {
	o := &treeOptions{}

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show the source files mu discovered",
		Long: `Show the directories and .v files of the project as mu sees them.

Directories that contain no .v file at any depth are not part of the project
and are not shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := runTree(cmd.Context(), app, g, o); err != nil {
				return app.fail(err, g.verbose)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&o.dir, "directory", "C", ".", "run as if mu was started in this directory")

	return cmd
}

func runTree(ctx context.Context, app *App, g *globalOptions, o *treeOptions) error {
	cfg, err := app.loadConfig(ctx, g)
	if err != nil {
		return err
	}
	ws, err := app.openWorkspace(cfg, o.dir)
	if err != nil {
		return err
	}

	root := gtree.NewRoot(ws.manifest.Name)
	addTreeNodes(root, ws.tree, ws.tree.Root())
	return gtree.OutputFromRoot(app.stdout, root)
}

func addTreeNodes(parent *gtree.Node, tree *sourcetree.Tree, dir string) {
	for _, child := range tree.Children(dir) {
		name := filepath.Base(child)
		if tree.IsDir(child) {
			addTreeNodes(parent.Add(name+"/"), tree, child)
			continue
		}
		parent.Add(name)
	}
}
