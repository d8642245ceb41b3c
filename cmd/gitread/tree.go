package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gitread/gitread/object"
)

func newTreeCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree [PATH]",
		Short: "List the tree of a commit, optionally below a path",
		Args:  cobra.MaximumNArgs(1),
	}

	commit := cmd.Flags().StringP("commit", "c", "HEAD", "commit or reference to list")
	recurse := cmd.Flags().BoolP("recurse", "R", false, "descend into subtrees")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		p := treeParams{commit: *commit, recurse: *recurse}
		if len(args) == 1 {
			p.path = args[0]
		}
		return treeCmd(cmd.OutOrStdout(), cfg, p)
	}
	return cmd
}

type treeParams struct {
	commit  string
	path    string
	recurse bool
}

func treeCmd(out io.Writer, cfg *config, p treeParams) error {
	r, err := openRepo(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	id, err := r.ResolveRef(p.commit)
	if err != nil {
		return err
	}
	c, err := r.Commit(id)
	if err != nil {
		return err
	}
	tree, err := r.TreeByPath(c, p.path)
	if err != nil {
		return err
	}

	var list func(t *object.Tree, prefix string) error
	list = func(t *object.Tree, prefix string) error {
		for _, e := range t.Entries {
			name := prefix + e.Name
			switch {
			case e.IsDir():
				fmt.Fprintf(out, "%06o %s %s/\n", e.Mode, e.ID, name)
				if p.recurse {
					sub, err := r.Tree(e.ID)
					if err != nil {
						return err
					}
					if err := list(sub, name+"/"); err != nil {
						return err
					}
				}
			case e.IsSymlink():
				fmt.Fprintf(out, "%06o %s %s@\n", e.Mode, e.ID, name)
			case e.IsExecutable():
				fmt.Fprintf(out, "%06o %s %s*\n", e.Mode, e.ID, name)
			default:
				fmt.Fprintf(out, "%06o %s %s\n", e.Mode, e.ID, name)
			}
		}
		return nil
	}
	return list(tree, "")
}
