package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var purgeAt string

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete images whose session has expired",
	Long: `Delete every original and derived image whose session expired before
the given time, then their stored objects. Running it twice is harmless.

Examples:
  imgctl purge
  imgctl purge --at 2026-01-01T00:00:00Z`,
	Args: cobra.NoArgs,
	RunE: runPurge,
}

func init() {
	purgeCmd.Flags().StringVar(&purgeAt, "at", "", "Purge as of this RFC3339 time instead of now")
}

func runPurge(cmd *cobra.Command, args []string) error {
	now := time.Now().UTC()
	if purgeAt != "" {
		t, err := time.Parse(time.RFC3339, purgeAt)
		if err != nil {
			return fmt.Errorf("--at: %w", err)
		}
		now = t.UTC()
	}

	purger, err := appBackend.Purger(getContext())
	if err != nil {
		return err
	}

	n, err := purger.PurgeExpired(getContext(), now)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Purged %d expired images\n", n)
	return nil
}
