package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wastewise/core"
	"wastewise/leaderboard"
)

type statusView struct {
	Progress   core.UserProgress       `json:"progress"`
	Level      core.LevelProgress      `json:"level"`
	Top        []leaderboard.Entry     `json:"top_categories"`
	Categories []core.CategoryProgress `json:"categories"`
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show coins, level and scan counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			svc, closeSvc, err := opts.openService(cmd)
			if err != nil {
				return err
			}
			defer closeInto(&err, closeSvc)

			view := statusView{
				Progress:   svc.Snapshot(),
				Level:      svc.LevelProgress(),
				Top:        svc.TopCategories(len(svc.Catalog().Categories)),
				Categories: svc.CategoryProgress(),
			}
			return opts.print(cmd.OutOrStdout(), view, func(w io.Writer) error {
				return printStatus(w, view)
			})
		},
	}
}

func printStatus(w io.Writer, v statusView) error {
	name := v.Progress.Username
	if name == "" {
		name = "friend"
	}
	fmt.Fprintf(w, "Hi %s!\n", name)
	fmt.Fprintf(w, "coins: %d\n", v.Progress.Coins)
	fmt.Fprintf(w, "level %d %s %d/%d to level %d\n",
		v.Level.Level, bar(v.Level.Percentage, 20), v.Level.Current, v.Level.Required, v.Level.NextLevel)
	fmt.Fprintf(w, "%s scanned\n", plural(v.Progress.TotalScanned, "item"))

	if len(v.Categories) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tSCANS\tGOAL")
	for _, c := range v.Categories {
		fmt.Fprintf(tw, "%s %s\t%d/%d\t%s\n", c.Emoji, c.Name, c.Count, c.Goal, bar(c.Percentage, 10))
	}
	return tw.Flush()
}

