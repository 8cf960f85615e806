package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pqrs_dashboard/backend/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

func init() {
	for _, dir := range []struct{ use, short string }{
		{"up", "Apply all pending migrations"},
		{"down", "Roll back the latest migration"},
		{"status", "Print migration status"},
	} {
		direction := dir.use
		migrateCmd.AddCommand(&cobra.Command{
			Use:   direction,
			Short: dir.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(cmd.Context(), direction)
			},
		})
	}
}

func runMigrate(ctx context.Context, direction string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.StoreDriver != "postgres" {
		return errors.New("migrate: STORE_DRIVER must be postgres")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(cfg.LogLevel)
	if err := db.Migrate(ctx, cfg.DatabaseURL, direction, logger); err != nil {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	logger.Info().Str("direction", direction).Msg("migrate: ok")
	return nil
}
