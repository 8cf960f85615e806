package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/pqrs_dashboard/backend/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Error().Err(err).Msg("exit")
		os.Exit(1)
	}
}
