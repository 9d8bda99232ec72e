package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineRunsLimit(t *testing.T) {
	e := NewEngine(5)
	var seen []uint64
	e.OnTick = func(tick uint64) error {
		seen = append(seen, tick)
		return nil
	}
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, []uint64{0, 1, 2, 3, 4}, seen)
	assert.Equal(t, uint64(5), e.Tick)
	assert.False(t, e.Running())
}

func TestEngineStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	e := NewEngine(10)
	e.OnTick = func(tick uint64) error {
		if tick == 2 {
			return boom
		}
		return nil
	}
	assert.ErrorIs(t, e.Run(context.Background()), boom)
	assert.Equal(t, uint64(2), e.Tick)
}

func TestEngineStopAndCancel(t *testing.T) {
	e := NewEngine(0)
	e.OnTick = func(tick uint64) error {
		if tick == 3 {
			e.Stop()
		}
		return nil
	}
	assert.ErrorIs(t, e.Run(context.Background()), ErrStopped)
	assert.Equal(t, uint64(4), e.Tick)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e = NewEngine(10)
	assert.ErrorIs(t, e.Run(ctx), ErrStopped)
	assert.Zero(t, e.Tick)
}

func TestEngineInterval(t *testing.T) {
	e := NewEngine(3)
	e.Interval = 10 * time.Millisecond
	start := time.Now()
	require.NoError(t, e.Run(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
