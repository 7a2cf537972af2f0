package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "greeter",
	Short:         "Welcome thread onboarding bot",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log := newLogger()
		log.Fatal().Err(err).Msg("greeter")
	}
}
