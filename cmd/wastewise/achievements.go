package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wastewise/core"
)

func newAchievementsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "achievements",
		Aliases: []string{"ach"},
		Short:   "List achievements and how close you are",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			svc, closeSvc, err := opts.openService(cmd)
			if err != nil {
				return err
			}
			defer closeInto(&err, closeSvc)

			list := svc.Achievements()
			return opts.print(cmd.OutOrStdout(), list, func(w io.Writer) error {
				return printAchievements(w, list)
			})
		},
	}
}

func printAchievements(w io.Writer, list []core.AchievementStatus) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tACHIEVEMENT\tPROGRESS\tHOW")
	for _, a := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\n",
			check(a.Unlocked), a.Name, min(a.Current, a.RequirementCount), a.RequirementCount, a.Description)
	}
	return tw.Flush()
}
