package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"wastewise/classifier"
	"wastewise/engine"
	"wastewise/gamify"
)

func newScanCmd(opts *rootOptions) *cobra.Command {
	var (
		label      string
		confidence float64
	)
	cmd := &cobra.Command{
		Use:   "scan [image]",
		Short: "Classify an item and collect the reward",
		Long: `Classify an image with the configured classifier and apply the reward.
--label skips the classifier and records the given category directly.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			var image []byte
			if len(args) == 1 {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				image = data
			}

			var extra []gamify.Option
			if label != "" {
				extra = append(extra, gamify.WithClassifier(classifier.Results(classifier.Result{Label: label, Confidence: confidence})))
			}
			svc, closeSvc, err := opts.openService(cmd, extra...)
			if err != nil {
				return err
			}
			defer closeInto(&err, closeSvc)

			out, err := svc.ProcessScan(cmd.Context(), image)
			if errors.Is(err, engine.ErrNoResult) {
				return fmt.Errorf("could not recognise the item, try again: %w", err)
			}
			if err != nil {
				return err
			}
			if err := save(cmd, svc); err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), out, func(w io.Writer) error {
				return printScan(w, out)
			})
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "category id or name to record instead of classifying")
	cmd.Flags().Float64Var(&confidence, "confidence", 0.9, "confidence used with --label")
	return cmd
}

func printScan(w io.Writer, out engine.ScanOutcome) error {
	fmt.Fprintf(w, "%s %s (%.0f%% sure)\n", out.Category.Emoji, out.Category.Name, out.Result.Confidence*100)
	fmt.Fprintf(w, "%s\n%s\n", out.Feedback.Title, out.Feedback.Description)
	fmt.Fprintf(w, "coins: %+d (now %d)\n", out.Reward.CoinDelta, out.Progress.Coins)
	fmt.Fprintf(w, "level %d, %s scanned\n", out.Progress.Level, plural(out.Progress.TotalScanned, "item"))
	if out.LevelUp {
		fmt.Fprintf(w, "LEVEL UP! You reached level %d\n", out.Progress.Level)
	}
	for _, id := range out.NewAchievements {
		fmt.Fprintf(w, "achievement unlocked: %s\n", id)
	}
	return nil
}
