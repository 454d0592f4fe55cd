package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/postwatch/internal/config"
	"github.com/ppiankov/postwatch/internal/filter"
	"github.com/ppiankov/postwatch/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, keywords, and state without touching the network",
	RunE:  doctorAction,
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	ok := true

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(w, false, "config directory %s", configDir)
		ok = false
	} else {
		printCheck(w, true, "config directory %s", configDir)
	}

	// Config file and environment
	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(w, false, "config: %v", err)
		ok = false
		// Keep going with local settings so the remaining checks still run.
		cfg, _ = config.LoadFile(configDir)
	} else {
		printCheck(w, true, "config (user %s, state backend %s)", cfg.X.UserID, cfg.State.Backend)
	}

	// Keywords
	if cfg != nil {
		keywords, err := config.LoadKeywords(cfg.KeywordsPath())
		if err == nil {
			_, err = filter.New(keywords)
		}
		if err != nil {
			printCheck(w, false, "keywords: %v", err)
			ok = false
		} else {
			printCheck(w, true, "keywords %s (%d)", cfg.KeywordsPath(), len(keywords))
		}
	}

	// State
	if cfg != nil {
		st, err := store.Open(cfg, logger)
		if err != nil {
			printCheck(w, false, "state: %v", err)
			ok = false
		} else {
			defer func() { _ = st.Close() }()
			id, has, err := st.Read(cmd.Context())
			switch {
			case err != nil:
				printCheck(w, false, "state %s: %v", cfg.StatePath(), err)
				ok = false
			case has:
				printCheck(w, true, "state %s (watermark %d)", cfg.StatePath(), id)
			default:
				printCheck(w, true, "state %s (no watermark yet)", cfg.StatePath())
			}
		}
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Fprintln(w, "\nAll checks passed.")
	return nil
}

func printCheck(w io.Writer, pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Fprintf(w, "[%s] %s\n", mark, fmt.Sprintf(format, args...))
}
