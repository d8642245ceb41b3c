package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gitread/gitread"
	"github.com/gitread/gitread/object"
)

func newLogCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log [COMMIT]",
		Short: "Show commit history starting from a commit or reference",
		Args:  cobra.MaximumNArgs(1),
	}

	limit := cmd.Flags().IntP("number", "n", 0, "stop after this many commits")
	firstParent := cmd.Flags().Bool("first-parent", false, "follow only the first parent of merges")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		p := logParams{limit: *limit, firstParent: *firstParent}
		if len(args) == 1 {
			p.start = args[0]
		}
		return logCmd(cmd.OutOrStdout(), cfg, p)
	}
	return cmd
}

type logParams struct {
	start       string
	limit       int
	firstParent bool
}

func logCmd(out io.Writer, cfg *config, p logParams) error {
	r, err := openRepo(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	from, err := r.ResolveRef(p.start)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := gitread.LogOptions{Limit: p.limit, FirstParent: p.firstParent}
	err = r.WalkHistory(ctx, from, opts, func(c *object.Commit) error {
		return printCommit(out, c)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printCommit(out io.Writer, c *object.Commit) error {
	fmt.Fprintf(out, "commit %s\n", c.ID)
	if len(c.Parents) > 1 {
		fmt.Fprint(out, "merge:")
		for _, p := range c.Parents {
			fmt.Fprintf(out, " %s", p)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "from: %s <%s>\n", c.Author.Name, c.Author.Email)
	fmt.Fprintf(out, "date: %s\n\n", c.Committer.When.Format("Mon Jan  2 15:04:05 2006 -0700"))
	for _, line := range splitMessageLines(c.Message) {
		fmt.Fprintf(out, "    %s\n", line)
	}
	_, err := fmt.Fprintln(out)
	return err
}

func splitMessageLines(msg string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(msg); i++ {
		if msg[i] == '\n' {
			lines = append(lines, msg[start:i])
			start = i + 1
		}
	}
	if start < len(msg) {
		lines = append(lines, msg[start:])
	}
	return lines
}
