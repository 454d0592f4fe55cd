package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/postwatch/internal/config"
	"github.com/ppiankov/postwatch/internal/filter"
)

var checkCmd = &cobra.Command{
	Use:   "check <text>",
	Short: "Show which keyword, if any, matches the given text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  checkAction,
}

func checkAction(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFile(configDir)
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

	text := strings.Join(args, " ")
	out := cmd.OutOrStdout()
	if kw, ok := matcher.Match(text); ok {
		fmt.Fprintf(out, "match: %q\n", kw)
		return nil
	}
	fmt.Fprintf(out, "no match (%d keywords checked)\n", matcher.Len())
	return nil
}
