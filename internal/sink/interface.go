package sink

import (
	"context"
	"time"
)

// Point is one tagged, timestamped time-series record.
type Point struct {
	Time        int64 // nanoseconds since the Unix epoch
	Measurement string
	Fields      map[string]interface{}
	Tags        map[string]string
}

// Timestamp returns Time as a time.Time.
func (p Point) Timestamp() time.Time {
	return time.Unix(0, p.Time)
}

// Writer accepts a batch of points. Writes are not assumed idempotent.
type Writer interface {
	Write(ctx context.Context, points []Point) error
	Close() error
}
