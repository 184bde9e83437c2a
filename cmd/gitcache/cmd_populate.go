package main

import (
	"github.com/spf13/cobra"

	"github.com/srcmirror/gitcache/internal/mirror"
)

func newPopulateCmd(a *app) *cobra.Command {
	var (
		depth       int
		shallow     bool
		refs        []string
		noBootstrap bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "populate <url>",
		Short: "Build or refresh the mirror for <url>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.newMirror(args[0], refs)
			if err != nil {
				return err
			}

			verbose, _ := cmd.Flags().GetCount("verbose")

			return a.engine.Populate(cmd.Context(), m, mirror.PopulateOptions{
				Depth:     depth,
				Shallow:   shallow,
				Bootstrap: !noBootstrap,
				Verbose:   verbose > 0,
				Force:     force,
			})
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 0, "shallow-fetch depth; 0 means full history")
	cmd.Flags().BoolVarP(&shallow, "shallow", "s", false, "shallow-fetch with a large default depth")
	cmd.Flags().StringArrayVar(&refs, "ref", nil, "extra fetch spec to track in addition to all branches; repeatable")
	cmd.Flags().BoolVar(&noBootstrap, "no-bootstrap", false, "never build from a published bootstrap archive")
	cmd.Flags().BoolVar(&force, "force", false, "force a full rebuild even if the mirror already looks healthy")

	return cmd
}
