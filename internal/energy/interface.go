package energy

import (
	"context"
	"time"
)

// State is the last accepted counter reading of one stream.
type State struct {
	Stream    string    `json:"stream"`
	LastDate  Date      `json:"last_date"`
	LastValue float64   `json:"last_value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reading is a counter value as reported by the device for a given day.
type Reading struct {
	Date  Date    `json:"date"`
	Value float64 `json:"value"`
}

// Store persists one State per stream. Get returns an error carrying
// ErrStateNotFound for a stream that has never been recorded.
type Store interface {
	Get(ctx context.Context, stream string) (State, error)
	Upsert(ctx context.Context, state State) error
}

// Repository is a Store that can also enumerate its content and be closed.
type Repository interface {
	Store
	List(ctx context.Context) ([]State, error)
	Close() error
}
