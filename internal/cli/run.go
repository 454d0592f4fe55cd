package cli

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ppiankov/postwatch/internal/config"
	"github.com/ppiankov/postwatch/internal/filter"
	"github.com/ppiankov/postwatch/internal/notify"
	"github.com/ppiankov/postwatch/internal/source"
	"github.com/ppiankov/postwatch/internal/store"
	"github.com/ppiankov/postwatch/internal/watcher"
)

var runDryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch recent posts once and forward keyword matches",
	RunE:  runAction,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "print matches without delivering or advancing the watermark")
}

// Constructors are variables so tests can swap the network collaborators.
var (
	newFetcher = func(cfg *config.Config, log zerolog.Logger) (source.Fetcher, error) {
		return source.NewX(cfg.X, log)
	}
	newNotifier = func(cfg *config.Config) (notify.Notifier, error) {
		return notify.NewDiscord(cfg.Discord.WebhookURL)
	}
)

func runAction(cmd *cobra.Command, _ []string) error {
	// Configuration errors surface here, before any network activity.
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	keywords, err := config.LoadKeywords(cfg.KeywordsPath())
	if err != nil {
		return fmt.Errorf("load keywords: %w", err)
	}
	matcher, err := filter.New(keywords)
	if err != nil {
		return fmt.Errorf("build filter: %w", err)
	}

	st, err := store.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer func() { _ = st.Close() }()

	fetcher, err := newFetcher(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}

	var notifier notify.Notifier
	if !runDryRun {
		notifier, err = newNotifier(cfg)
		if err != nil {
			return fmt.Errorf("create notifier: %w", err)
		}
	}

	w, err := watcher.New(watcher.Deps{
		Store:            st,
		Fetcher:          fetcher,
		Notifier:         notifier,
		Filter:           matcher,
		Formatter:        notify.NewFormatter(cfg.Discord.MaxMessageRunes),
		UserID:           cfg.X.UserID,
		AdvanceOnFailure: cfg.Delivery.ShouldAdvanceOnFailure(),
		DryRun:           runDryRun,
		Log:              logger.With().Str("user_id", cfg.X.UserID).Logger(),
	})
	if err != nil {
		return err
	}

	res, err := w.Run(cmd.Context())
	if err != nil {
		return err
	}

	printRunResult(cmd.OutOrStdout(), res, runDryRun)
	return nil
}

func printRunResult(w io.Writer, res watcher.Result, dryRun bool) {
	if dryRun {
		for _, o := range res.Outcomes {
			if o.Action == watcher.ActionWouldDeliver {
				fmt.Fprintf(w, "would deliver %s [%s]: %s\n", o.PostID, o.Keyword, o.Message)
			}
		}
	}

	fmt.Fprintf(w, "Fetched %d posts, delivered %d", res.Fetched, res.Delivered)
	if res.Failed > 0 {
		fmt.Fprintf(w, " (%d failed)", res.Failed)
	}
	if res.HasWatermark {
		fmt.Fprintf(w, ", watermark %d", res.Watermark)
	}
	fmt.Fprintln(w)
}
