package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/ecodanctl/internal/errors"
	"codeberg.org/mutker/ecodanctl/internal/scheduler"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel          = LogLevelInfo
	DefaultSchedule          = "0,30 * * * * *"
	DefaultMeasurementPrefix = "ecodan2"
	DefaultEnvPrefix         = "ECODAN"
	DefaultStatePath         = "/var/lib/ecodanctl/state.db"
	DefaultListenAddr        = ":8080"
	DefaultAPIUsername       = "admin"

	configEnvVar   = "ECODANCTL_CONFIG"
	configName     = "ecodanctl"
	configDir      = "/etc"
	influxHostPort = 8086
)

type Config struct {
	LogLevel          string       `mapstructure:"log_level"`
	Dummy             bool         `mapstructure:"dummy"`
	Schedule          string       `mapstructure:"schedule"`
	MeasurementPrefix string       `mapstructure:"measurement_prefix"`
	Modbus            ModbusConfig `mapstructure:"modbus"`
	Influx            InfluxConfig `mapstructure:"influx"`
	MQTT              MQTTConfig   `mapstructure:"mqtt"`
	State             StateConfig  `mapstructure:"state"`
	API               APIConfig    `mapstructure:"api"`
}

type ModbusConfig struct {
	Port         string        `mapstructure:"port"`
	BaudRate     int           `mapstructure:"baud_rate"`
	SlaveAddress int           `mapstructure:"slave_address"`
	DataBits     int           `mapstructure:"data_bits"`
	Parity       string        `mapstructure:"parity"`
	StopBits     int           `mapstructure:"stop_bits"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// InfluxConfig covers both InfluxDB 1.x (username/password/database) and
// 2.x (token/org/bucket) servers. The sink is disabled when URL is empty.
type InfluxConfig struct {
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Database        string        `mapstructure:"database"`
	RetentionPolicy string        `mapstructure:"retention_policy"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Token           string        `mapstructure:"token"`
	Org             string        `mapstructure:"org"`
	Bucket          string        `mapstructure:"bucket"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// MQTTConfig mirrors emitted points to a broker. Disabled when Broker is empty.
type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QoS         int    `mapstructure:"qos"`
	Retained    bool   `mapstructure:"retained"`
}

type StateConfig struct {
	Driver StateDriver `mapstructure:"driver"`
	Path   string      `mapstructure:"path"`
}

type APIConfig struct {
	Listen   string `mapstructure:"listen"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"log-level":     "log_level",
	"dummy":         "dummy",
	"schedule":      "schedule",
	"modbus-port":   "modbus.port",
	"baud-rate":     "modbus.baud_rate",
	"slave-address": "modbus.slave_address",
	"influx-url":    "influx.url",
	"state-driver":  "state.driver",
	"state-path":    "state.path",
	"listen":        "api.listen",
}

// legacyEnv lists the bare environment variable names understood for
// compatibility with existing deployments, in addition to the prefixed form.
var legacyEnv = map[string]string{
	"modbus.port":          "MODBUS_PORT",
	"modbus.baud_rate":     "MODBUS_BAUD_RATE",
	"modbus.slave_address": "MODBUS_SLAVE_ADDR",
	"influx.host":          "INFLUX_HOST",
	"influx.database":      "INFLUX_DATABASE",
	"influx.username":      "INFLUX_USERNAME",
	"influx.password":      "INFLUX_PASSWORD",
	"state.path":           "SQLITE_DB_PATH",
	"api.password":         "API_ADMIN_PASS",
}

// RegisterFlags defines the command line flags understood by Load.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to configuration file (TOML)")
	fs.String("log-level", string(DefaultLogLevel), "Log level (debug, info, warn, error)")
	fs.Bool("dummy", false, "Use a simulated heat pump instead of the serial port")
	fs.String("schedule", DefaultSchedule, "Poll schedule (cron spec with seconds)")
	fs.String("modbus-port", "", "Serial port of the Modbus adapter")
	fs.Int("baud-rate", 9600, "Serial baud rate")
	fs.Int("slave-address", 1, "Modbus slave address")
	fs.String("influx-url", "", "InfluxDB URL (empty disables InfluxDB)")
	fs.String("state-driver", string(StateDriverSQLite), "Energy state backend (sqlite, badger)")
	fs.String("state-path", DefaultStatePath, "Energy state database path")
	fs.String("listen", DefaultListenAddr, "HTTP control surface listen address")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", string(DefaultLogLevel))
	v.SetDefault("dummy", false)
	v.SetDefault("schedule", DefaultSchedule)
	v.SetDefault("measurement_prefix", DefaultMeasurementPrefix)

	v.SetDefault("modbus.port", "/dev/ttyUSB0")
	v.SetDefault("modbus.baud_rate", 9600)
	v.SetDefault("modbus.slave_address", 1)
	v.SetDefault("modbus.data_bits", 8)
	v.SetDefault("modbus.parity", "N")
	v.SetDefault("modbus.stop_bits", 1)
	v.SetDefault("modbus.timeout", "1s")

	v.SetDefault("influx.url", "")
	v.SetDefault("influx.host", "")
	v.SetDefault("influx.database", "")
	v.SetDefault("influx.retention_policy", "")
	v.SetDefault("influx.username", "")
	v.SetDefault("influx.password", "")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "")
	v.SetDefault("influx.bucket", "")
	v.SetDefault("influx.timeout", "10s")

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "ecodanctl")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", "ecodan")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.retained", false)

	v.SetDefault("state.driver", string(StateDriverSQLite))
	v.SetDefault("state.path", DefaultStatePath)

	v.SetDefault("api.listen", DefaultListenAddr)
	v.SetDefault("api.username", DefaultAPIUsername)
	v.SetDefault("api.password", "")
}

// Load reads the configuration from defaults, the config file, the
// environment and command line flags, in increasing order of precedence.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := o.envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	if o.flags != nil {
		if f := o.flags.Lookup("config"); f != nil && f.Changed && o.configPath == "" {
			o.configPath = f.Value.String()
		}
		for name, key := range flagKeys {
			f := o.flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errFactory.Wrap(errors.ErrBindFlags, err)
			}
		}
	}

	if err := readConfigFile(v, o.configPath); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if cfg.Influx.URL == "" && cfg.Influx.Host != "" {
		cfg.Influx.URL = fmt.Sprintf("http://%s:%d", cfg.Influx.Host, influxHostPort)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	errFactory := errors.New()

	if path == "" {
		path = os.Getenv(configEnvVar)
	}

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
		return nil
	}

	v.SetConfigName(configName)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}

// Validate checks the loaded configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(strings.ToLower(c.LogLevel)).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if strings.TrimSpace(c.Schedule) == "" {
		return errFactory.WithMessage(errors.ErrInvalidSchedule, "schedule must not be empty")
	}
	if err := scheduler.Validate(c.Schedule); err != nil {
		return err
	}
	if c.MeasurementPrefix == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "measurement_prefix must not be empty")
	}

	if !c.Dummy {
		if c.Modbus.Port == "" {
			return errFactory.WithMessage(errors.ErrMissingConfig, "modbus.port is required")
		}
		if c.Modbus.BaudRate <= 0 {
			return errFactory.WithData(errors.ErrInvalidConfig, fmt.Sprintf("modbus.baud_rate=%d", c.Modbus.BaudRate))
		}
		if c.Modbus.SlaveAddress < 1 || c.Modbus.SlaveAddress > 247 {
			return errFactory.WithData(errors.ErrInvalidConfig, fmt.Sprintf("modbus.slave_address=%d", c.Modbus.SlaveAddress))
		}
	}

	switch c.State.Driver {
	case StateDriverSQLite, StateDriverBadger:
	default:
		return errFactory.WithData(errors.ErrInvalidConfig, fmt.Sprintf("state.driver=%q", c.State.Driver))
	}
	if c.State.Path == "" {
		return errFactory.WithMessage(errors.ErrMissingConfig, "state.path is required")
	}

	if c.Influx.URL != "" && c.Influx.Database == "" && c.Influx.Bucket == "" {
		return errFactory.WithMessage(errors.ErrMissingConfig, "influx.database or influx.bucket is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return errFactory.WithData(errors.ErrInvalidConfig, fmt.Sprintf("mqtt.qos=%d", c.MQTT.QoS))
	}

	return nil
}
