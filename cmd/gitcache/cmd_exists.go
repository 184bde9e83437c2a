package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExistsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <url>",
		Short: "Report whether a mirror for <url> already exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.newMirror(args[0], nil)
			if err != nil {
				return err
			}

			if !a.engine.Exists(m) {
				return errSilentNotFound
			}

			fmt.Fprintln(cmd.OutOrStdout(), m.Dir)

			return nil
		},
	}
}
