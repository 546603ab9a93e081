package cli

import (
	"fmt"

	"github.com/ravigill3969/image-converter/backend/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate up|down",
	Short:     "Apply or roll back the database schema",
	ValidArgs: []string{database.DirectionUp, database.DirectionDown},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE:      runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := appBackend.Migrate(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied (%s)\n", args[0])
	return nil
}
