package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gitread/gitread/object"
)

func newCatFileCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat-file OBJECT",
		Short: "Show the type, size, or content of a repository object",
		Args:  cobra.ExactArgs(1),
	}

	typeOnly := cmd.Flags().BoolP("type", "t", false, "show the object's type instead of its content")
	sizeOnly := cmd.Flags().BoolP("size", "s", false, "show the object's size instead of its content")
	pretty := cmd.Flags().BoolP("pretty", "p", false, "pretty-print the object based on its type")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return catFileCmd(cmd.OutOrStdout(), cfg, catFileParams{
			typeOnly: *typeOnly,
			sizeOnly: *sizeOnly,
			pretty:   *pretty,
			name:     args[0],
		})
	}
	return cmd
}

type catFileParams struct {
	typeOnly bool
	sizeOnly bool
	pretty   bool
	name     string
}

func catFileCmd(out io.Writer, cfg *config, p catFileParams) error {
	if p.typeOnly && p.sizeOnly || p.typeOnly && p.pretty || p.sizeOnly && p.pretty {
		return errors.New("options -t, -s and -p are mutually exclusive")
	}

	r, err := openRepo(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	id, err := r.ResolveRef(p.name)
	if err != nil {
		return err
	}

	if p.typeOnly {
		typ, err := r.ObjectType(id)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, typ)
		return nil
	}

	data, typ, err := r.ReadObject(id)
	if err != nil {
		return err
	}

	if p.sizeOnly {
		fmt.Fprintln(out, len(data))
		return nil
	}
	if !p.pretty {
		_, err = out.Write(data)
		return err
	}

	switch typ {
	case object.TypeTree:
		tree, err := object.ParseTree(id, data)
		if err != nil {
			return err
		}
		for _, e := range tree.Entries {
			kind := "blob"
			if e.IsDir() {
				kind = "tree"
			}
			fmt.Fprintf(out, "%06o %s %s\t%s\n", e.Mode, kind, e.ID, e.Name)
		}
		return nil
	default:
		// Commits, tags and blobs already read as text.
		_, err = out.Write(data)
		return err
	}
}
