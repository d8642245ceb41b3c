package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gitread/gitread"
)

func newCheckoutCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkout DIR",
		Short: "Check a commit out into a new work tree",
		Args:  cobra.ExactArgs(1),
	}

	commit := cmd.Flags().StringP("commit", "c", "HEAD", "commit or branch to check out")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return checkoutCmd(cmd.OutOrStdout(), cfg, checkoutParams{
			commit: *commit,
			dir:    args[0],
		})
	}
	return cmd
}

type checkoutParams struct {
	commit string
	dir    string
}

func checkoutCmd(out io.Writer, cfg *config, p checkoutParams) error {
	r, err := openRepo(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	id, err := r.ResolveRef(p.commit)
	if err != nil {
		return err
	}

	// Remember the branch when the name resolves through refs/heads so
	// update can follow it later.
	headRef := ""
	if p.commit == "HEAD" {
		if _, ref, err := r.Head(); err == nil {
			headRef = ref
		}
	} else if branchID, err := r.ResolveRef("refs/heads/" + p.commit); err == nil && branchID == id {
		headRef = "refs/heads/" + p.commit
	}

	if err := gitread.Checkout(r, id, headRef, p.dir); err != nil {
		return err
	}
	fmt.Fprintf(out, "checked out %s to %s\n", id, p.dir)
	return nil
}
