package kafka

import (
	"sync/atomic"
	"time"
)

// commitClock decides when marked offsets are flushed to the broker.
type commitClock struct {
	every time.Duration
	last  atomic.Int64
	now   func() time.Time
}

func newCommitClock(every time.Duration) *commitClock {
	return &commitClock{every: every, now: time.Now}
}

// due reports true at most once per interval; a zero interval is always due.
func (c *commitClock) due() bool {
	now := c.now().UnixNano()
	last := c.last.Load()
	if last != 0 && now-last < int64(c.every) {
		return false
	}
	return c.last.CompareAndSwap(last, now)
}
