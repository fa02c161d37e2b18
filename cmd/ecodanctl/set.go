package main

import (
	"fmt"
	"strconv"

	"codeberg.org/mutker/ecodanctl/internal/ecodan"
	"codeberg.org/mutker/ecodanctl/internal/errors"
	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set <tank|house> <celsius>",
	Short: "Write a target temperature to the heat pump",
	Long: `Writes the DHW tank or house target temperature directly over Modbus.
Tank targets must be between 10 and 60 °C, house targets between 5 and 25 °C.

This needs exclusive access to the serial port; while the daemon is running
use its HTTP surface instead.`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	errFactory := errors.New()

	target, err := ecodan.ParseTarget(args[0])
	if err != nil {
		return err
	}
	value, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return errFactory.WithMessage(ecodan.ErrInvalidTarget, "Value must be numeric.")
	}

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

	if err := device.SetTarget(cmd.Context(), target, value); err != nil {
		return err
	}

	fmt.Printf("%s target set to %g °C\n", target, value)
	return nil
}
