package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/postwatch/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent delivery attempts (sqlite state backend only)",
	Args:  cobra.NoArgs,
	RunE:  historyAction,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of attempts to show")
}

func historyAction(cmd *cobra.Command, _ []string) error {
	st, err := openState()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	rec, ok := st.(store.Recorder)
	if !ok {
		return errors.New("history needs state.backend: sqlite")
	}

	deliveries, err := rec.RecentDeliveries(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	printHistory(cmd.OutOrStdout(), deliveries)
	return nil
}

func printHistory(w io.Writer, deliveries []store.Delivery) {
	if len(deliveries) == 0 {
		fmt.Fprintln(w, "No deliveries recorded yet.")
		return
	}
	for _, d := range deliveries {
		status := "OK  "
		if d.Status == store.StatusFailed {
			status = "FAIL"
		}
		fmt.Fprintf(w, "[%s] %s  %s", status, d.AttemptedAt.Local().Format(time.DateTime), d.PostID)
		if d.Keyword != "" {
			fmt.Fprintf(w, "  [%s]", d.Keyword)
		}
		fmt.Fprintf(w, "  %s\n", d.Message)
		if d.Error != "" {
			fmt.Fprintf(w, "       %s\n", d.Error)
		}
	}
}
