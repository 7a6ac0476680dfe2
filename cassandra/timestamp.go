package cassandra

import (
	"sync/atomic"
	"time"
)

// MonotonicTimestampGenerator returns strictly increasing microsecond
// timestamps, even when the wall clock stalls or steps back.
type MonotonicTimestampGenerator struct {
	last atomic.Int64
	now  func() time.Time
}

// NewMonotonicTimestampGenerator returns a generator backed by the wall clock.
func NewMonotonicTimestampGenerator() *MonotonicTimestampGenerator {
	return &MonotonicTimestampGenerator{now: time.Now}
}

// Next returns the next timestamp.
func (g *MonotonicTimestampGenerator) Next() int64 {
	for {
		last := g.last.Load()
		next := g.now().UnixMicro()
		if next <= last {
			next = last + 1
		}
		if g.last.CompareAndSwap(last, next) {
			return next
		}
	}
}
