// Package clock provides millisecond-epoch timestamp generation for the
// chat engine. NowUnique returns strictly increasing values even when
// called multiple times within the same millisecond, so locally authored
// comments never share a timestamp.
package clock

import (
	"sync"
	"time"
)

// Clock produces epoch-millisecond timestamps. The time source can be
// overridden for testing via SetNow.
type Clock struct {
	mu         sync.Mutex
	lastUnique int64
	nowFn      func() int64
}

// New creates a Clock that uses the system clock.
func New() *Clock {
	return &Clock{
		nowFn: func() int64 {
			return time.Now().UnixMilli()
		},
	}
}

// Now returns the current time as epoch milliseconds.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowFn()
}

// SetNow overrides the time source. Passing nil restores the system clock.
func (c *Clock) SetNow(fn func() int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn == nil {
		fn = func() int64 { return time.Now().UnixMilli() }
	}
	c.nowFn = fn
}

// NowUnique returns a strictly increasing timestamp. If the clock hasn't
// advanced past the last returned value, the internal counter is bumped
// by 1 millisecond instead.
func (c *Clock) NowUnique() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.nowFn()
	if t <= c.lastUnique {
		c.lastUnique++
		return c.lastUnique
	}
	c.lastUnique = t
	return t
}
