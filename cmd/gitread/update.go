package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gitread/gitread"
	"github.com/gitread/gitread/object"
)

func newUpdateCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [COMMIT]",
		Short: "Bring a checked-out work tree up to a commit",
		Args:  cobra.MaximumNArgs(1),
	}

	dir := cmd.Flags().StringP("worktree", "w", ".", "work tree to update")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		p := updateParams{dir: *dir}
		if len(args) == 1 {
			p.commit = args[0]
		}
		return updateCmd(cmd.OutOrStdout(), cfg, p)
	}
	return cmd
}

type updateParams struct {
	commit string
	dir    string
}

func updateCmd(out io.Writer, cfg *config, p updateParams) error {
	w, err := gitread.OpenWorktree(p.dir)
	if err != nil {
		return err
	}

	repoPath := cfg.repoPath
	if repoPath == "." {
		repoPath = w.RepoPath
	}
	r, err := gitread.Open(repoPath)
	if err != nil {
		return err
	}
	defer r.Close()

	var target object.Hash
	if p.commit != "" {
		if target, err = r.ResolveRef(p.commit); err != nil {
			return err
		}
	}

	before := w.BaseCommit
	if err := w.Update(r, target); err != nil {
		return err
	}

	if w.BaseCommit == before {
		fmt.Fprintf(out, "already at %s\n", w.BaseCommit)
	} else {
		fmt.Fprintf(out, "updated %s to %s\n", p.dir, w.BaseCommit)
	}
	return nil
}
