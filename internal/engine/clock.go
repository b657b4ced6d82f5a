package engine

import (
	"context"
	"sync/atomic"
	"time"
)

// Clock returns the current unix time in seconds.
type Clock interface {
	Now(ctx context.Context) (int64, error)
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

func (SystemClock) Now(context.Context) (int64, error) {
	return time.Now().Unix(), nil
}

// FixedClock returns a settable time.
type FixedClock struct {
	ts atomic.Int64
}

func NewFixedClock(ts int64) *FixedClock {
	c := &FixedClock{}
	c.ts.Store(ts)
	return c
}

func (c *FixedClock) Now(context.Context) (int64, error) {
	return c.ts.Load(), nil
}

// Set moves the clock to ts.
func (c *FixedClock) Set(ts int64) {
	c.ts.Store(ts)
}

// Advance moves the clock forward by seconds.
func (c *FixedClock) Advance(seconds int64) {
	c.ts.Add(seconds)
}

// TimestampSource reports the latest chain timestamp.
type TimestampSource interface {
	LatestTimestamp(ctx context.Context) (int64, error)
}

// ChainClock follows the timestamp of the latest block.
type ChainClock struct {
	Source TimestampSource
}

func (c ChainClock) Now(ctx context.Context) (int64, error) {
	return c.Source.LatestTimestamp(ctx)
}
