package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wastewise/catalog"
	"wastewise/core"
)

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "catalog [categories|rewards|lessons]",
		Short:     "Browse categories, the reward shop and lessons",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"categories", "rewards", "lessons"},
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			section := "categories"
			if len(args) == 1 {
				section = args[0]
			}
			svc, closeSvc, err := opts.openService(cmd)
			if err != nil {
				return err
			}
			defer closeInto(&err, closeSvc)

			cat := svc.Catalog()
			w := cmd.OutOrStdout()
			switch section {
			case "rewards":
				p := svc.Snapshot()
				shop := map[string]any{"coins": p.Coins, "badges": cat.Badges, "stickers": cat.Stickers}
				return opts.print(w, shop, func(w io.Writer) error {
					return printShop(w, cat, p)
				})
			case "lessons":
				return opts.print(w, cat.Lessons, func(w io.Writer) error {
					for _, l := range cat.Lessons {
						fmt.Fprintf(w, "%s\n  %s\n\n", l.Title, l.Content)
					}
					return nil
				})
			default:
				return opts.print(w, cat.Categories, func(w io.Writer) error {
					tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tRECYCLABLE\tEXAMPLES")
					for _, c := range cat.Categories {
						fmt.Fprintf(tw, "%s\t%s %s\t%t\t%v\n", c.ID, c.Emoji, c.Name, c.Recyclable, c.Examples)
					}
					return tw.Flush()
				})
			}
		},
	}
}

func printShop(w io.Writer, cat *catalog.Catalog, p core.UserProgress) error {
	fmt.Fprintf(w, "you have %d coins\n", p.Coins)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tKIND\tID\tNAME\tCOST")
	for _, kind := range []core.RewardKind{core.RewardBadge, core.RewardSticker} {
		for _, it := range cat.Rewards(kind) {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%d\n", check(p.Unlocked(kind, it.ID)), kind, it.ID, it.Icon, it.Name, it.Cost)
		}
	}
	return tw.Flush()
}
