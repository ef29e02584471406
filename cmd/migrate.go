package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"usdo-ledger/store"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Rewrite the latest snapshot in the current schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := store.Open(cfg.DataDir, cfg.History)
			if err != nil {
				return err
			}
			defer db.Close()

			from, err := db.Migrate()
			if err != nil {
				return err
			}
			switch from {
			case 0:
				return fmt.Errorf("no snapshot in %s", cfg.DataDir)
			case store.SchemaVersion:
				logrus.Infof("snapshot already at version %d", from)
			default:
				logrus.Infof("migrated snapshot from version %d to %d", from, store.SchemaVersion)
			}
			return nil
		},
	}
}
