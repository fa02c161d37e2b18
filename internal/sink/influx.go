package sink

import (
	"context"
	"fmt"
	"math"
	"time"

	"codeberg.org/mutker/ecodanctl/internal/errors"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// InfluxConfig selects either the v1 compatibility API (Database, optional
// RetentionPolicy, Username/Password) or the v2 API (Token, Org, Bucket).
type InfluxConfig struct {
	URL             string
	Database        string
	RetentionPolicy string
	Username        string
	Password        string
	Token           string
	Org             string
	Bucket          string
	Timeout         time.Duration
}

func (c InfluxConfig) Validate() error {
	errFactory := errors.New()
	if c.URL == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "influx url is required")
	}
	if c.Database == "" && c.Bucket == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "influx database or bucket is required")
	}
	return nil
}

// credentials maps the configuration onto the v2 client's token, org and
// bucket. A v1 database becomes the bucket "database/retention_policy" and
// the token "username:password", as InfluxDB 1.8+ expects.
func (c InfluxConfig) credentials() (token, org, bucket string) {
	if c.Bucket != "" {
		return c.Token, c.Org, c.Bucket
	}

	bucket = c.Database
	if c.RetentionPolicy != "" {
		bucket = c.Database + "/" + c.RetentionPolicy
	}
	if c.Username != "" || c.Password != "" {
		token = fmt.Sprintf("%s:%s", c.Username, c.Password)
	}
	return token, "", bucket
}

type influxWriter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewInflux returns a Writer issuing one blocking write per batch.
func NewInflux(cfg InfluxConfig) (Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := influxdb2.DefaultOptions().SetPrecision(time.Second)
	if cfg.Timeout > 0 {
		opts.SetHTTPRequestTimeout(timeoutSeconds(cfg.Timeout))
	}

	token, org, bucket := cfg.credentials()
	client := influxdb2.NewClientWithOptions(cfg.URL, token, opts)

	return &influxWriter{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
	}, nil
}

// timeoutSeconds rounds d up to whole seconds, the client's resolution,
// since zero disables the timeout.
func timeoutSeconds(d time.Duration) uint {
	return uint(math.Ceil(d.Seconds()))
}

func (w *influxWriter) Write(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	batch := make([]*write.Point, 0, len(points))
	for _, p := range points {
		batch = append(batch, influxdb2.NewPoint(p.Measurement, p.Tags, p.Fields, p.Timestamp()))
	}

	if err := w.writeAPI.WritePoint(ctx, batch...); err != nil {
		return errors.New().Wrap(ErrSinkWrite, err)
	}
	return nil
}

func (w *influxWriter) Close() error {
	w.client.Close()
	return nil
}
