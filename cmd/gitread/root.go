package main

import (
	"github.com/spf13/cobra"

	"github.com/gitread/gitread"
)

type config struct {
	// repoPath is where to look for the repository; "." by default, so
	// commands behave like git run from inside a checkout.
	repoPath string
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gitread",
		Short:         "read-only git repository browser",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cfg := &config{}
	cmd.PersistentFlags().StringVarP(&cfg.repoPath, "repository", "r", ".", "path to the repository or its work tree")

	cmd.AddCommand(newLogCmd(cfg))
	cmd.AddCommand(newTreeCmd(cfg))
	cmd.AddCommand(newDiffCmd(cfg))
	cmd.AddCommand(newBlameCmd(cfg))
	cmd.AddCommand(newCheckoutCmd(cfg))
	cmd.AddCommand(newUpdateCmd(cfg))
	cmd.AddCommand(newCatFileCmd(cfg))

	return cmd
}

// openRepo opens the repository named by the global flag.
func openRepo(cfg *config) (*gitread.Repository, error) {
	return gitread.Open(cfg.repoPath)
}
