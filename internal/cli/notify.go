package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification outbox maintenance",
}

var notifyDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Deliver pending notifications once and exit",
	RunE:  runNotifyDrain,
}

func init() {
	notifyCmd.AddCommand(notifyDrainCmd)
}

func runNotifyDrain(cmd *cobra.Command, args []string) error {
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

	w := a.worker()
	total := 0
	for {
		res, err := w.Run(ctx)
		if err != nil {
			return err
		}
		total += res.Sent + res.Failed + res.Dead
		logger.Info().Int("sent", res.Sent).Int("failed", res.Failed).Int("dead", res.Dead).Msg("outbox batch")
		// Failed rows wait out their backoff, so an empty batch means done.
		if res.Sent+res.Failed+res.Dead == 0 {
			break
		}
	}
	logger.Info().Int("processed", total).Msg("outbox drained")
	return nil
}
