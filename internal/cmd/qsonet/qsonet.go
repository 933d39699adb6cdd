// Package qsonet parses engine command flags and starts the runtime.
package qsonet

import (
	"context"
	"flag"

	"github.com/vk2dls/qsonet/internal/app"
	entrypoint "github.com/vk2dls/qsonet/internal/platform/cmd"
	"github.com/vk2dls/qsonet/internal/storage/sqlite"
)

// Config holds engine command configuration.
type Config struct {
	DBPath string `env:"QSONET_DB_PATH" envDefault:"data/qsonet.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the sqlite database file")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run opens storage and drives the engine until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceQsonet, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		return app.New(store).Run(ctx)
	})
}
