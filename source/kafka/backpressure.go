package kafka

import "context"

// Limiter caps the number of frames emitted but not yet resolved.
type Limiter struct {
	slots chan struct{}
}

func NewLimiter(capacity int64) *Limiter {
	if capacity <= 0 {
		capacity = 1
	}
	return &Limiter{slots: make(chan struct{}, capacity)}
}

// Acquire blocks until a slot frees up or ctx ends.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees n slots; releasing more than is held is a no-op.
func (l *Limiter) Release(n int) {
	for range n {
		select {
		case <-l.slots:
		default:
			return
		}
	}
}

func (l *Limiter) InFlight() int { return len(l.slots) }

func (l *Limiter) Capacity() int { return cap(l.slots) }
