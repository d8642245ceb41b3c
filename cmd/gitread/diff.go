package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/gitread/gitread/object"
)

func newDiffCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff [OLD-COMMIT] COMMIT",
		Short: "Show changes between two commits, or a commit and its first parent",
		Args:  cobra.RangeArgs(1, 2),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		p := diffParams{newCommit: args[len(args)-1]}
		if len(args) == 2 {
			p.oldCommit = args[0]
		}
		return diffCmd(cmd.OutOrStdout(), cfg, p)
	}
	return cmd
}

type diffParams struct {
	oldCommit string
	newCommit string
}

func diffCmd(out io.Writer, cfg *config, p diffParams) error {
	r, err := openRepo(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	newID, err := r.ResolveRef(p.newCommit)
	if err != nil {
		return err
	}
	newC, err := r.Commit(newID)
	if err != nil {
		return err
	}

	var oldC *object.Commit
	switch {
	case p.oldCommit != "":
		oldID, err := r.ResolveRef(p.oldCommit)
		if err != nil {
			return err
		}
		if oldC, err = r.Commit(oldID); err != nil {
			return err
		}
	case len(newC.Parents) > 0:
		if oldC, err = r.Commit(newC.Parents[0]); err != nil {
			return err
		}
	}

	return r.DiffCommits(out, oldC, newC)
}
