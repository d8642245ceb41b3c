package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newBlameCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blame PATH",
		Short: "Show which commit introduced each line of a file",
		Args:  cobra.ExactArgs(1),
	}

	commit := cmd.Flags().StringP("commit", "c", "HEAD", "blame the file as of this commit")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return blameCmd(cmd.OutOrStdout(), cfg, blameParams{
			commit: *commit,
			path:   args[0],
		})
	}
	return cmd
}

type blameParams struct {
	commit string
	path   string
}

func blameCmd(out io.Writer, cfg *config, p blameParams) error {
	r, err := openRepo(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	from, err := r.ResolveRef(p.commit)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lines, err := r.Blame(ctx, from, p.path)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	for i, line := range lines {
		fmt.Fprintf(out, "%4d %.8s %s\n", i+1, line.Commit.String(), line.Text)
	}
	return nil
}
