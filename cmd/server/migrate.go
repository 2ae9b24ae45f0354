package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fastygo/taskdesk/internal/config"
	pgInfra "github.com/fastygo/taskdesk/internal/infrastructure/postgres"
)

func newMigrateCommand() *cobra.Command {
	var (
		direction string
		steps     int
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			if cfg.Storage.Driver != config.StorageDriverPostgres {
				return fmt.Errorf("migrations need STORAGE_DRIVER=%s", config.StorageDriverPostgres)
			}
			return pgInfra.Migrate(cfg, direction, steps, log)
		},
	}
	cmd.Flags().StringVar(&direction, "direction", pgInfra.DirectionUp, "migration direction (up|down)")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to apply; 0 applies all")
	return cmd
}
