package main

import (
	"strings"

	"codeberg.org/mutker/ecodanctl/internal/config"
	"codeberg.org/mutker/ecodanctl/internal/ecodan"
	"codeberg.org/mutker/ecodanctl/internal/energy"
	"codeberg.org/mutker/ecodanctl/internal/errors"
	"codeberg.org/mutker/ecodanctl/internal/logger"
	"codeberg.org/mutker/ecodanctl/internal/pid"
	"codeberg.org/mutker/ecodanctl/internal/sink"
	"codeberg.org/mutker/ecodanctl/internal/state"
)

// busLock takes the PID file guarding the configured serial port. The
// simulator has no bus to share, so dummy mode never locks.
func busLock(cfg *config.Config) (func(), error) {
	if cfg.Dummy {
		return func() {}, nil
	}

	path := pid.Path(cfg.Modbus.Port)
	if err := pid.Write(path); err != nil {
		return nil, err
	}

	return func() {
		if err := pid.Remove(path); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("failed to remove PID file")
		}
	}, nil
}

func openDevice(cfg *config.Config) (*ecodan.Device, error) {
	log := logger.With("ecodan")

	if cfg.Dummy {
		log.Info().Msg("Dummy mode, using simulated heat pump")
		return ecodan.NewDevice(ecodan.NewSimulator(), log), nil
	}

	t, err := ecodan.NewRTUTransport(ecodan.RTUConfig{
		Port:         cfg.Modbus.Port,
		BaudRate:     cfg.Modbus.BaudRate,
		SlaveAddress: byte(cfg.Modbus.SlaveAddress),
		DataBits:     cfg.Modbus.DataBits,
		Parity:       strings.ToUpper(cfg.Modbus.Parity),
		StopBits:     cfg.Modbus.StopBits,
		Timeout:      cfg.Modbus.Timeout,
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("port", cfg.Modbus.Port).
		Int("baud_rate", cfg.Modbus.BaudRate).
		Int("slave_address", cfg.Modbus.SlaveAddress).
		Msg("Connected to heat pump")

	return ecodan.NewDevice(t, log), nil
}

func openState(cfg *config.Config) (energy.Repository, error) {
	return state.Open(stateConfig(cfg), logger.With("state"))
}

func stateConfig(cfg *config.Config) state.Config {
	return state.Config{
		Driver: string(cfg.State.Driver),
		Path:   cfg.State.Path,
	}
}

// openSinks builds every configured sink. With none configured the points
// are logged, so a bare setup still shows what would be written.
func openSinks(cfg *config.Config) (sink.Multi, error) {
	errFactory := errors.New()
	var sinks sink.Multi

	if cfg.Influx.URL != "" {
		w, err := sink.NewInflux(sink.InfluxConfig{
			URL:             cfg.Influx.URL,
			Database:        cfg.Influx.Database,
			RetentionPolicy: cfg.Influx.RetentionPolicy,
			Username:        cfg.Influx.Username,
			Password:        cfg.Influx.Password,
			Token:           cfg.Influx.Token,
			Org:             cfg.Influx.Org,
			Bucket:          cfg.Influx.Bucket,
			Timeout:         cfg.Influx.Timeout,
		})
		if err != nil {
			return nil, errFactory.Wrap(errors.ErrInitApp, err)
		}
		sinks = append(sinks, w)
	}

	if cfg.MQTT.Broker != "" {
		w, err := sink.NewMQTT(sink.MQTTConfig{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         byte(cfg.MQTT.QoS),
			Retained:    cfg.MQTT.Retained,
		})
		if err != nil {
			_ = sinks.Close()
			return nil, errFactory.Wrap(errors.ErrInitApp, err)
		}
		sinks = append(sinks, w)
	}

	if len(sinks) == 0 {
		logger.Warn().Msg("No InfluxDB or MQTT sink configured, logging points instead")
		sinks = append(sinks, sink.NewLog(logger.With("sink")))
	}

	return sinks, nil
}
