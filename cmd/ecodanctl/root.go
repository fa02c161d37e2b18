package main

import (
	"codeberg.org/mutker/ecodanctl/internal/config"
	"codeberg.org/mutker/ecodanctl/internal/logger"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ecodanctl",
	Short: "Poll a Mitsubishi Ecodan heat pump over Modbus",
	Long: `ecodanctl reads temperatures, status codes and energy counters from an
Ecodan heat pump on a schedule, forwards them to InfluxDB and MQTT, and
exposes an HTTP surface for changing the tank and house setpoints.

Without a subcommand it runs the polling daemon.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())
}

// loadConfig loads the configuration, honouring flags given to cmd or any
// of its parents, and initializes the logger from it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(config.WithFlags(cmd.Flags()))
	if err != nil {
		return nil, err
	}

	logger.Init(cfg.LogLevel, logger.IsService())
	logger.Debug().Msg("Config loaded")

	return cfg, nil
}
