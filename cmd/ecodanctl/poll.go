package main

import (
	"encoding/json"
	"os"

	"codeberg.org/mutker/ecodanctl/internal/energy"
	"codeberg.org/mutker/ecodanctl/internal/errors"
	"codeberg.org/mutker/ecodanctl/internal/logger"
	"codeberg.org/mutker/ecodanctl/internal/poller"
	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run a single poll cycle and print its report",
	Long: `Reads the heat pump once, reconciles the energy counters against the
state store, writes the points to the configured sinks and prints the
cycle report as JSON.`,
	Args: cobra.NoArgs,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
}

func runPoll(cmd *cobra.Command, _ []string) error {
	errFactory := errors.New()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	unlock, err := busLock(cfg)
	if err != nil {
		return err
	}
	defer unlock()

	device, err := openDevice(cfg)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}
	defer device.Close()

	repo, err := openState(cfg)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}
	defer repo.Close()

	sinks, err := openSinks(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close sinks")
		}
	}()

	p := poller.New(device, energy.NewReconciler(repo), sinks, poller.WithPrefix(cfg.MeasurementPrefix))

	report, err := p.Cycle(cmd.Context())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
