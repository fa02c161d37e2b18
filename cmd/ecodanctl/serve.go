package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/ecodanctl/internal/api"
	"codeberg.org/mutker/ecodanctl/internal/energy"
	"codeberg.org/mutker/ecodanctl/internal/errors"
	"codeberg.org/mutker/ecodanctl/internal/logger"
	"codeberg.org/mutker/ecodanctl/internal/poller"
	"codeberg.org/mutker/ecodanctl/internal/scheduler"
	"codeberg.org/mutker/ecodanctl/internal/telemetry"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the polling daemon and HTTP surface",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
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
	defer func() {
		if err := device.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close heat pump connection")
		}
	}()

	repo, err := openState(cfg)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close state store")
		}
	}()

	sinks, err := openSinks(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close sinks")
		}
	}()

	tcfg := telemetry.DefaultConfig()
	tcfg.Streams = poller.Names{Prefix: cfg.MeasurementPrefix}.Streams()
	metrics, err := telemetry.New(tcfg)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	p := poller.New(device, energy.NewReconciler(repo), sinks,
		poller.WithPrefix(cfg.MeasurementPrefix),
		poller.WithRecorder(metrics),
	)

	sched, err := scheduler.New(cfg.Schedule, p.Run)
	if err != nil {
		return err
	}

	srv := api.New(api.Config{
		Listen:   cfg.API.Listen,
		Username: cfg.API.Username,
		Password: cfg.API.Password,
	}, device, p,
		api.WithRecorder(metrics),
		api.WithMetricsHandler(metrics.Handler()),
	)
	if cfg.API.Password == "" {
		logger.Warn().Msg("api.password is not set, setpoint endpoints are disabled")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go handleSignals(ctx, cancel)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })

	if err := g.Wait(); err != nil {
		return errFactory.Wrap(errors.ErrMainLoop, err)
	}

	logger.Info().Msg("Exiting...")
	return nil
}

func handleSignals(ctx context.Context, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		logger.Info().Msg("Received termination signal.")
		cancel()
	case <-ctx.Done():
	}
}
