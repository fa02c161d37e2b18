package energy

import (
	"context"
	"time"

	"codeberg.org/mutker/ecodanctl/internal/errors"
	"codeberg.org/mutker/ecodanctl/internal/logger"
)

// Reason explains a reconciliation decision.
type Reason string

const (
	ReasonFirstSeen Reason = "first_seen"
	ReasonNewDay    Reason = "new_day"
	ReasonIncreased Reason = "increased"
	ReasonStale     Reason = "stale"
	ReasonUnchanged Reason = "unchanged"
)

// Decision is the outcome of reconciling one reading.
type Decision struct {
	Stream   string
	Accepted bool
	Reason   Reason
	Reading  Reading
}

// Decide applies the transition rules to a reading given the previously
// accepted state, or nil when the stream has not been seen yet.
func Decide(prev *State, r Reading) (bool, Reason) {
	if prev == nil {
		return true, ReasonFirstSeen
	}

	switch c := r.Date.Compare(prev.LastDate); {
	case c < 0:
		return false, ReasonStale
	case c > 0:
		return true, ReasonNewDay
	case r.Value <= prev.LastValue:
		return false, ReasonUnchanged
	default:
		return true, ReasonIncreased
	}
}

// Reconciler decides per stream whether a counter reading carries new
// information, and records accepted readings in the Store before reporting
// them as accepted.
type Reconciler struct {
	store Store
	log   logger.Logger
	now   func() time.Time
}

type Option func(*Reconciler)

// WithClock overrides the clock used for State.UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

func NewReconciler(store Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store: store,
		log:   logger.With("reconciler"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile reads the stream's state, decides, and persists on acceptance.
// A failed read or write yields a non-accepted decision and an error; the
// stored state is then unchanged, so the same reading is accepted again on
// a later call.
func (r *Reconciler) Reconcile(ctx context.Context, stream string, reading Reading) (Decision, error) {
	errFactory := errors.New()
	d := Decision{Stream: stream, Reading: reading}

	if stream == "" {
		return d, errFactory.New(ErrInvalidStream)
	}

	var prev *State
	current, err := r.store.Get(ctx, stream)
	switch {
	case err == nil:
		prev = &current
	case errors.HasCode(err, ErrStateNotFound):
	default:
		return d, errFactory.WithData(ErrStateRead, struct {
			Stream string
			Error  string
		}{
			Stream: stream,
			Error:  err.Error(),
		})
	}

	accepted, reason := Decide(prev, reading)
	d.Reason = reason
	if !accepted {
		r.log.Debug().
			Str("stream", stream).
			Str("reason", string(reason)).
			Str("date", reading.Date.String()).
			Float64("value", reading.Value).
			Msg("Energy reading rejected")
		return d, nil
	}

	next := State{
		Stream:    stream,
		LastDate:  reading.Date,
		LastValue: reading.Value,
		UpdatedAt: r.now(),
	}
	if err := r.store.Upsert(ctx, next); err != nil {
		return d, errFactory.Wrap(ErrStateWrite, err)
	}

	d.Accepted = true
	r.log.Debug().
		Str("stream", stream).
		Str("reason", string(reason)).
		Str("date", reading.Date.String()).
		Float64("value", reading.Value).
		Msg("Energy reading accepted")

	return d, nil
}
