package sink

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"codeberg.org/mutker/ecodanctl/internal/errors"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const defaultMQTTTimeout = 10 * time.Second

type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	Retained    bool
	Timeout     time.Duration
}

func (c MQTTConfig) Validate() error {
	errFactory := errors.New()
	if c.Broker == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "mqtt broker is required")
	}
	if c.QoS > 2 {
		return errFactory.WithMessage(ErrInvalidConfig, "mqtt qos must be 0, 1 or 2")
	}
	return nil
}

// publisher is the part of mqtt.Client the writer needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type mqttMessage struct {
	Time   int64                  `json:"time"`
	Fields map[string]interface{} `json:"fields"`
	Tags   map[string]string      `json:"tags,omitempty"`
}

type mqttWriter struct {
	client  publisher
	conn    mqtt.Client
	cfg     MQTTConfig
	timeout time.Duration
}

// NewMQTT connects to the broker and returns a Writer publishing each point
// as JSON to <TopicPrefix>/<measurement>.
func NewMQTT(cfg MQTTConfig) (Writer, error) {
	errFactory := errors.New()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	w := newMQTTWriter(client, cfg)
	w.conn = client

	token := client.Connect()
	if !token.WaitTimeout(w.timeout) {
		return nil, errFactory.WithMessage(ErrSinkConnect, "timed out connecting to "+cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errFactory.Wrap(ErrSinkConnect, err)
	}

	return w, nil
}

func newMQTTWriter(p publisher, cfg MQTTConfig) *mqttWriter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultMQTTTimeout
	}
	return &mqttWriter{client: p, cfg: cfg, timeout: timeout}
}

func (w *mqttWriter) topic(measurement string) string {
	prefix := strings.TrimSuffix(w.cfg.TopicPrefix, "/")
	if prefix == "" {
		return measurement
	}
	return prefix + "/" + measurement
}

func (w *mqttWriter) Write(ctx context.Context, points []Point) error {
	errFactory := errors.New()

	for _, p := range points {
		if err := ctx.Err(); err != nil {
			return errFactory.Wrap(ErrSinkWrite, err)
		}

		payload, err := json.Marshal(mqttMessage{
			Time:   p.Timestamp().Unix(),
			Fields: p.Fields,
			Tags:   p.Tags,
		})
		if err != nil {
			return errFactory.Wrap(ErrSinkWrite, err)
		}

		token := w.client.Publish(w.topic(p.Measurement), w.cfg.QoS, w.cfg.Retained, payload)
		if !token.WaitTimeout(w.timeout) {
			return errFactory.WithMessage(ErrSinkWrite, "timed out publishing "+p.Measurement)
		}
		if err := token.Error(); err != nil {
			return errFactory.Wrap(ErrSinkWrite, err)
		}
	}

	return nil
}

func (w *mqttWriter) Close() error {
	if w.conn != nil {
		w.conn.Disconnect(250)
	}
	return nil
}
