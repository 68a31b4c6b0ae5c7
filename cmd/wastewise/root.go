package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"wastewise/config"
	"wastewise/engine"
	"wastewise/gamify"
)

type rootOptions struct {
	configPath string
	profile    string
	jsonOut    bool
	// extra is applied after the config-derived engine options.
	extra []gamify.Option
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&rootOptions{})
}

func newRootCmdWith(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wastewise",
		Short: "WasteWise: learn to sort waste, earn coins",
		Long: `WasteWise turns waste sorting into a game. Scan an item, learn which bin
it belongs in, earn coins and spend them on badges and stickers.

Progress is stored where the configuration says (a JSON file by default).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "JSON config file")
	cmd.PersistentFlags().StringVar(&opts.profile, "profile", "", "config profile (development, testing, staging, production)")
	cmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print JSON instead of text")

	cmd.AddCommand(
		newServeCmd(opts),
		newScanCmd(opts),
		newStatusCmd(opts),
		newUnlockCmd(opts),
		newAchievementsCmd(opts),
		newCatalogCmd(opts),
		newNameCmd(opts),
	)
	return cmd
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	switch {
	case o.configPath != "":
		return config.LoadFromFile(o.configPath)
	case o.profile != "":
		return config.LoadProfile(o.profile)
	default:
		return config.Load()
	}
}

// openService builds the engine for a one-shot command. Logs go to stderr
// so stdout stays clean for output. The returned close func must run before
// the process exits; its error means the last mutation never reached
// storage.
func (o *rootOptions) openService(cmd *cobra.Command, extra ...gamify.Option) (*engine.Service, func() error, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log := cfg.Logging.NewLoggerTo(cmd.ErrOrStderr())
	svc, closeSvc, err := gamify.FromConfig(cmd.Context(), cfg, log, nil, append(extra, o.extra...)...)
	if err != nil {
		return nil, nil, err
	}
	return svc, func() error {
		if err := closeSvc(); err != nil {
			return fmt.Errorf("progress not saved: %w", err)
		}
		return nil
	}, nil
}

// closeInto runs closeSvc and keeps its error unless err is already set.
func closeInto(err *error, closeSvc func() error) {
	if cerr := closeSvc(); cerr != nil && *err == nil {
		*err = cerr
	}
}

// save waits for the mutation to reach storage so nothing is reported as
// done before it is.
func save(cmd *cobra.Command, svc *engine.Service) error {
	if err := svc.Flush(cmd.Context()); err != nil {
		return fmt.Errorf("progress not saved: %w", err)
	}
	return nil
}

// print writes v as indented JSON in --json mode, otherwise calls text.
func (o *rootOptions) print(w io.Writer, v any, text func(io.Writer) error) error {
	if o.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}

func bar(percent int, width int) string {
	filled := min(width, max(0, percent*width/100))
	out := make([]byte, 0, width+2)
	out = append(out, '[')
	for i := 0; i < width; i++ {
		if i < filled {
			out = append(out, '#')
		} else {
			out = append(out, '.')
		}
	}
	return string(append(out, ']'))
}

func check(ok bool) string {
	if ok {
		return "[x]"
	}
	return "[ ]"
}

func plural(n int64, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
