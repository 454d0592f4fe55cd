package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ppiankov/postwatch/internal/config"
	"github.com/ppiankov/postwatch/internal/store"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or edit the last-notified post id",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current watermark",
	Args:  cobra.NoArgs,
	RunE:  stateShowAction,
}

var stateSetCmd = &cobra.Command{
	Use:   "set <post-id>",
	Short: "Overwrite the watermark",
	Args:  cobra.ExactArgs(1),
	RunE:  stateSetAction,
}

var stateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the watermark; the next run forwards every fetched match",
	Args:  cobra.NoArgs,
	RunE:  stateResetAction,
}

func init() {
	stateCmd.AddCommand(stateShowCmd, stateSetCmd, stateResetCmd)
}

func openState() (store.Store, error) {
	cfg, err := config.LoadFile(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	st, err := store.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	return st, nil
}

func stateShowAction(cmd *cobra.Command, _ []string) error {
	st, err := openState()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	id, ok, err := st.Read(cmd.Context())
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "no watermark")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func stateSetAction(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid post id %q: %w", args[0], err)
	}

	st, err := openState()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.Write(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "watermark set to %d\n", id)
	return nil
}

func stateResetAction(cmd *cobra.Command, _ []string) error {
	st, err := openState()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.Reset(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "watermark cleared")
	return nil
}
