package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/ecodanctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(DefaultSpec))
	assert.NoError(t, Validate("@every 10s"))

	err := Validate("0,30 * * * *")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidSchedule))

	_, err = New("not a schedule", func(context.Context) {})
	assert.True(t, errors.HasCode(err, errors.ErrInvalidSchedule))
}

func TestDefaultSpecFiresOnHalfMinutes(t *testing.T) {
	sched, err := parser.Parse(DefaultSpec)
	require.NoError(t, err)

	from := time.Date(2023, 9, 1, 12, 0, 1, 0, time.UTC)
	first := sched.Next(from)
	second := sched.Next(first)

	assert.Equal(t, time.Date(2023, 9, 1, 12, 0, 30, 0, time.UTC), first)
	assert.Equal(t, time.Date(2023, 9, 1, 12, 1, 0, 0, time.UTC), second)
}

func TestOverlappingRunIsSkipped(t *testing.T) {
	var runs int32
	release := make(chan struct{})
	started := make(chan struct{})

	s, err := New(DefaultSpec, func(context.Context) {
		if atomic.AddInt32(&runs, 1) == 1 {
			close(started)
		}
		<-release
	})
	require.NoError(t, err)

	job := s.wrap(cronLogger{s.logger})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		job.Run()
	}()
	<-started

	// returns immediately while the first run is blocked
	job.Run()
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))

	job.Run()
	assert.Equal(t, int32(2), atomic.LoadInt32(&runs))
}

func TestPanickingJobIsRecovered(t *testing.T) {
	s, err := New(DefaultSpec, func(context.Context) {
		panic("register map exploded")
	})
	require.NoError(t, err)

	job := s.wrap(cronLogger{s.logger})
	assert.NotPanics(t, job.Run)
}

func TestRunPassesContextAndStops(t *testing.T) {
	type key struct{}
	var got atomic.Value

	s, err := New("@every 1s", func(ctx context.Context) {
		got.Store(ctx.Value(key{}))
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, "poll"))
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return got.Load() == "poll" }, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
