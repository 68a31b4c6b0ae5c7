package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newNameCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "name <display name>",
		Short: "Set the player's display name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			svc, closeSvc, err := opts.openService(cmd)
			if err != nil {
				return err
			}
			defer closeInto(&err, closeSvc)

			p, err := svc.SetUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := save(cmd, svc); err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), p, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "hello, %s\n", p.Username)
				return err
			})
		},
	}
}
