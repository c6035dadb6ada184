package main

import (
	"fmt"

	"github.com/ethaccount/walletcore/src/app"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down]",
	Short: "Apply or roll back the database migrations",
	Args:  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{
		"up",
		"down",
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		config := app.NewAppConfig()
		logger := app.InitLogger(*config)

		var err error
		switch args[0] {
		case "up":
			err = app.MigrationUp(*config.DSN, *config.MigrationPath)
		case "down":
			err = app.MigrationDown(*config.DSN, *config.MigrationPath)
		default:
			return fmt.Errorf("unknown direction %q", args[0])
		}
		if err != nil {
			return err
		}

		logger.Info().Str("direction", args[0]).Str("path", *config.MigrationPath).Msg("Migration complete")
		return nil
	},
}
