package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/billable/pkg/billing/mongostore"
	"github.com/dmitrymomot/billable/pkg/billing/pgstore"
	"github.com/dmitrymomot/billable/pkg/mongo"
	"github.com/dmitrymomot/billable/pkg/pg"
)

func newMigrateCmd(envFiles *[]string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply store migrations",
		Long: `Apply the schema for the store selected by BILLING_STORE.
PostgreSQL runs the embedded goose migrations; MongoDB creates the collection indexes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadAppConfig(*envFiles)
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			ctx := cmd.Context()

			switch cfg.Store {
			case storePostgres:
				pgCfg, err := loadSection[pg.Config](*envFiles)
				if err != nil {
					return err
				}
				pool, err := pg.Connect(ctx, pgCfg)
				if err != nil {
					return err
				}
				defer pool.Close()
				if err := pg.Migrate(ctx, pool, pgCfg, pgstore.Migrations, pgstore.MigrationsDir, log); err != nil {
					return err
				}
			case storeMongo:
				mongoCfg, err := loadSection[mongo.Config](*envFiles)
				if err != nil {
					return err
				}
				client, err := mongo.New(ctx, mongoCfg)
				if err != nil {
					return err
				}
				defer func() { _ = client.Disconnect(ctx) }()
				if err := mongostore.New(client.Database(mongoCfg.Database)).EnsureIndexes(ctx); err != nil {
					return err
				}
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "store %q has no schema to migrate\n", cfg.Store)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s store is up to date\n", cfg.Store)
			return nil
		},
	}
}
