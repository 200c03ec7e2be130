package main

import (
	"context"
	"os"

	"github.com/desertthunder/mlsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupStore initializes the destination store and runs migrations.
func (r *Runner) SetupStore(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}
	r.config = config

	r.logger.Info("initializing destination store", "path", r.storeDir(cmd))

	store, closeStore, err := r.openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	count, err := store.CountRecords()
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for store: %v (%d records)", r.storeDir(cmd), count)
	return nil
}
