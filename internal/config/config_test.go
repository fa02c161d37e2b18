package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/ecodanctl/internal/config"
	"codeberg.org/mutker/ecodanctl/internal/errors"
	"codeberg.org/mutker/ecodanctl/internal/logger"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ecodanctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"
schedule = "*/10 * * * * *"
measurement_prefix = "hp"

[modbus]
port = "/dev/ttyAMA0"
baud_rate = 19200
slave_address = 3
timeout = "2s"

[influx]
url = "http://influx:8086"
database = "home"
username = "writer"
password = "secret"

[mqtt]
broker = "mqtt:1883"
topic_prefix = "heatpump"

[state]
driver = "badger"
path = "/tmp/ecodan-state"

[api]
listen = "127.0.0.1:9000"
password = "hunter2"
`)
	t.Setenv("ECODANCTL_CONFIG", path)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "*/10 * * * * *", cfg.Schedule)
	assert.Equal(t, "hp", cfg.MeasurementPrefix)
	assert.Equal(t, "/dev/ttyAMA0", cfg.Modbus.Port)
	assert.Equal(t, 19200, cfg.Modbus.BaudRate)
	assert.Equal(t, 3, cfg.Modbus.SlaveAddress)
	assert.Equal(t, 2*time.Second, cfg.Modbus.Timeout)
	assert.Equal(t, "http://influx:8086", cfg.Influx.URL)
	assert.Equal(t, "home", cfg.Influx.Database)
	assert.Equal(t, "mqtt:1883", cfg.MQTT.Broker)
	assert.Equal(t, "heatpump", cfg.MQTT.TopicPrefix)
	assert.Equal(t, config.StateDriverBadger, cfg.State.Driver)
	assert.Equal(t, "/tmp/ecodan-state", cfg.State.Path)
	assert.Equal(t, "127.0.0.1:9000", cfg.API.Listen)
	assert.Equal(t, "admin", cfg.API.Username)
	assert.Equal(t, "hunter2", cfg.API.Password)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ECODANCTL_CONFIG", "")

	cfg, err := config.Load()
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, string(config.DefaultLogLevel), cfg.LogLevel)
	assert.Equal(t, config.DefaultSchedule, cfg.Schedule)
	assert.Equal(t, config.DefaultMeasurementPrefix, cfg.MeasurementPrefix)
	assert.Equal(t, 9600, cfg.Modbus.BaudRate)
	assert.Equal(t, 1, cfg.Modbus.SlaveAddress)
	assert.Equal(t, time.Second, cfg.Modbus.Timeout)
	assert.Empty(t, cfg.Influx.URL)
	assert.Empty(t, cfg.MQTT.Broker)
	assert.Equal(t, config.StateDriverSQLite, cfg.State.Driver)
	assert.Equal(t, config.DefaultStatePath, cfg.State.Path)
	assert.False(t, cfg.Dummy)
}

func TestLoadLegacyEnvironment(t *testing.T) {
	t.Setenv("ECODANCTL_CONFIG", "")
	t.Setenv("MODBUS_PORT", "/dev/ttyS1")
	t.Setenv("MODBUS_BAUD_RATE", "2400")
	t.Setenv("MODBUS_SLAVE_ADDR", "7")
	t.Setenv("INFLUX_HOST", "influxdb.lan")
	t.Setenv("INFLUX_DATABASE", "ecodan")
	t.Setenv("SQLITE_DB_PATH", "/data/ecodan.db")
	t.Setenv("API_ADMIN_PASS", "pw")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyS1", cfg.Modbus.Port)
	assert.Equal(t, 2400, cfg.Modbus.BaudRate)
	assert.Equal(t, 7, cfg.Modbus.SlaveAddress)
	assert.Equal(t, "http://influxdb.lan:8086", cfg.Influx.URL)
	assert.Equal(t, "ecodan", cfg.Influx.Database)
	assert.Equal(t, "/data/ecodan.db", cfg.State.Path)
	assert.Equal(t, "pw", cfg.API.Password)
}

func TestLoadPrefixedEnvironment(t *testing.T) {
	t.Setenv("ECODANCTL_CONFIG", "")
	t.Setenv("ECODAN_MODBUS_PORT", "/dev/ttyS9")
	t.Setenv("ECODAN_LOG_LEVEL", "warning")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyS9", cfg.Modbus.Port)
	assert.Equal(t, "warning", cfg.LogLevel)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	path := writeConfig(t, `
This is not a valid TOML file
`)
	t.Setenv("ECODANCTL_CONFIG", path)

	_, err := config.Load()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestLogLevelsMatchLogger(t *testing.T) {
	tests := []struct {
		level string
		want  logger.LogLevel
	}{
		{"debug", logger.DebugLevel},
		{"info", logger.InfoLevel},
		{"warn", logger.WarnLevel},
		{"warning", logger.WarnLevel},
		{"error", logger.ErrorLevel},
		{"WARN", logger.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &config.Config{
				LogLevel:          tt.level,
				Dummy:             true,
				Schedule:          config.DefaultSchedule,
				MeasurementPrefix: config.DefaultMeasurementPrefix,
				State:             config.StateConfig{Driver: config.StateDriverSQLite, Path: "/tmp/state.db"},
			}
			assert.NoError(t, cfg.Validate())
			assert.Equal(t, tt.want, logger.ParseLevel(tt.level))
		})
	}
}

func TestInvalidLogLevel(t *testing.T) {
	path := writeConfig(t, `
log_level = "invalid"
`)
	t.Setenv("ECODANCTL_CONFIG", path)

	_, err := config.Load()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestInvalidStateDriver(t *testing.T) {
	path := writeConfig(t, `
[state]
driver = "postgres"
`)

	_, err := config.Load(config.WithConfigFile(path))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
}

func TestInfluxRequiresDatabase(t *testing.T) {
	path := writeConfig(t, `
[influx]
url = "http://influx:8086"
`)

	_, err := config.Load(config.WithConfigFile(path))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrMissingConfig))
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
log_level = "error"
[modbus]
port = "/dev/ttyUSB3"
`)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path, "--log-level", "debug", "--dummy"}))

	cfg, err := config.Load(config.WithFlags(fs))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel to be set by flag")
	assert.True(t, cfg.Dummy)
	assert.Equal(t, "/dev/ttyUSB3", cfg.Modbus.Port, "unset flags must not shadow the file")
}

func TestInvalidSchedule(t *testing.T) {
	path := writeConfig(t, `
dummy = true
schedule = "every half minute"
`)

	_, err := config.Load(config.WithConfigFile(path))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidSchedule))
}
