package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"wastewise/core"
)

func newUnlockCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <badge|sticker> <id>",
		Short: "Spend coins on a badge or sticker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			kind, err := core.ParseRewardKind(args[0])
			if err != nil {
				return err
			}
			svc, closeSvc, err := opts.openService(cmd)
			if err != nil {
				return err
			}
			defer closeInto(&err, closeSvc)

			p, err := svc.Unlock(cmd.Context(), kind, args[1])
			switch {
			case errors.Is(err, core.ErrInsufficientFunds):
				item, _ := svc.Catalog().Reward(kind, args[1])
				return fmt.Errorf("%w: %s costs %d, you have %d", err, item.Name, item.Cost, svc.Snapshot().Coins)
			case err != nil:
				return err
			}
			if err := save(cmd, svc); err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), p, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "unlocked %s %s, %d coins left\n", kind, args[1], p.Coins)
				return err
			})
		},
	}
}
