package sink

import (
	"context"

	"codeberg.org/mutker/ecodanctl/internal/logger"
)

type logWriter struct {
	logger logger.Logger
}

// NewLog returns a Writer that only logs points at debug level. It stands in
// for a time-series backend when none is configured.
func NewLog(log logger.Logger) Writer {
	if log == nil {
		log = logger.With("sink")
	}
	return &logWriter{logger: log}
}

func (w *logWriter) Write(_ context.Context, points []Point) error {
	for _, p := range points {
		w.logger.Debug().
			Str("measurement", p.Measurement).
			Time("time", p.Timestamp()).
			Interface("fields", p.Fields).
			Interface("tags", p.Tags).
			Msg("Point")
	}
	return nil
}

func (w *logWriter) Close() error {
	return nil
}
