package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/warwatch/internal/config"
	"github.com/zulandar/warwatch/internal/db"
	"github.com/zulandar/warwatch/internal/store"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}
	cmd.AddCommand(newDBMigrateCmd())
	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and seed the configured servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd, configPath(cmd))
		},
	}
}

func runDBMigrate(cmd *cobra.Command, path string) error {
	out := cmd.OutOrStdout()
	cfg, gormDB, err := openDB(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables (%s)\n", len(db.AllModels()), cfg.Database.Driver)
	if len(cfg.Servers) > 0 {
		if err := db.SeedServers(gormDB, cfg.Servers); err != nil {
			return err
		}
		fmt.Fprintf(out, "Seeded %d servers\n", len(cfg.Servers))
	}
	return nil
}

// openDB loads the config, connects and migrates.
func openDB(path string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// openStore is openDB for commands that only need the store.
func openStore(path string) (*config.Config, *store.Store, error) {
	cfg, gormDB, err := openDB(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store.New(gormDB), nil
}
