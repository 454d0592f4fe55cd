package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/postwatch/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with example files",
	RunE:  initAction,
}

func initAction(cmd *cobra.Command, _ []string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	w := cmd.OutOrStdout()
	created := 0

	for _, f := range []struct {
		name string
		data string
	}{
		{config.DefaultConfigFile, exampleConfig},
		{config.DefaultKeywordsFile, exampleKeywords},
	} {
		wrote, err := writeIfNotExists(w, filepath.Join(configDir, f.name), []byte(f.data))
		if err != nil {
			return err
		}
		if wrote {
			created++
		}
	}

	if created == 0 {
		fmt.Fprintf(w, "Config directory %s already initialized.\n", configDir)
	} else {
		fmt.Fprintf(w, "Initialized %s with %d config files.\n", configDir, created)
		fmt.Fprintf(w, "Set %s, %s and %s in the environment or in a .env file.\n",
			config.DefaultBearerTokenEnv, config.DefaultUserIDEnv, config.DefaultWebhookEnv)
	}
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(w io.Writer, path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(w, "  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# postwatch configuration
# Secrets are read from the environment variables named below.

x:
  bearer_token_env: X_BEARER_TOKEN
  user_id_env: X_USER_ID
  rate_limit_cooldown: 15m

discord:
  webhook_env: DISCORD_WEBHOOK
  max_message_runes: 2000

keywords:
  # One keyword per line, matched case-insensitively anywhere in the post.
  # Prefix a line with re: to use a regular expression.
  file: keywords.txt

state:
  backend: file  # file or sqlite
  # path defaults to last_seen.txt, or postwatch.db with the sqlite backend.
  # path: last_seen.txt

delivery:
  # A failed webhook delivery still marks the post as seen.
  advance_on_failure: true
`

const exampleKeywords = `leaf
cardboard
garbage
`
