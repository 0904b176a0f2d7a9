package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gdg-garage/garage-workshops/internal/config"
	"github.com/gdg-garage/garage-workshops/internal/database"
	"github.com/gdg-garage/garage-workshops/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "workshops",
		Short:        "Workshop marketplace server",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newMigrateCommand())
	return root
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			log := logger.New(cfg.LogLevel, cfg.LogFormat)
			defer log.Sync()

			db, err := database.Connect(cfg)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			log.Info("database migrated", zap.String("driver", cfg.DatabaseDriver))
			return nil
		},
	}
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
