package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pqrs_dashboard/backend/internal/service"
)

var bootstrapFlags struct {
	entityName  string
	entityCode  string
	entityEmail string
	email       string
	password    string
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the first entity and super admin if they do not exist",
	RunE:  runBootstrap,
}

func init() {
	f := bootstrapCmd.Flags()
	f.StringVar(&bootstrapFlags.entityName, "entity-name", "", "entity name (default BOOTSTRAP_ENTITY_NAME)")
	f.StringVar(&bootstrapFlags.entityCode, "entity-code", "", "consecutive prefix (default BOOTSTRAP_ENTITY_CODE)")
	f.StringVar(&bootstrapFlags.entityEmail, "entity-email", "", "entity contact email (default BOOTSTRAP_ENTITY_EMAIL)")
	f.StringVar(&bootstrapFlags.email, "email", "", "super admin email (default BOOTSTRAP_ADMIN_EMAIL)")
	f.StringVar(&bootstrapFlags.password, "password", "", "super admin password (default BOOTSTRAP_ADMIN_PASSWORD)")
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)
	ctx := context.Background()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	created, err := a.directory().Bootstrap(ctx, service.BootstrapInput{
		EntityName:    orDefault(bootstrapFlags.entityName, cfg.BootstrapEntityName),
		EntityCode:    orDefault(bootstrapFlags.entityCode, cfg.BootstrapEntityCode),
		EntityEmail:   orDefault(bootstrapFlags.entityEmail, cfg.BootstrapEntityEmail),
		AdminEmail:    orDefault(bootstrapFlags.email, cfg.BootstrapAdminEmail),
		AdminPassword: orDefault(bootstrapFlags.password, cfg.BootstrapAdminPassword),
	})
	if err != nil {
		return err
	}
	if !created {
		logger.Info().Msg("bootstrap: super admin already exists")
	}
	return nil
}
