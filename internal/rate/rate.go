package rate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrStopped is returned by Wait once the bucket has been stopped
var ErrStopped = errors.New("rate limiter stopped")

// Limiter gates outbound API calls so provider quotas are respected
type Limiter interface {
	Wait(ctx context.Context) error
}

// TokenBucket releases tokens at a fixed rate up to a burst size
type TokenBucket struct {
	ticker *time.Ticker
	tokens chan struct{}
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewTokenBucket returns a limiter that releases rps tokens per second. The
// bucket starts full so short bursts proceed immediately.
func NewTokenBucket(rps float64, burst int) *TokenBucket {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	tb := &TokenBucket{
		ticker: time.NewTicker(time.Duration(float64(time.Second) / rps)),
		tokens: make(chan struct{}, burst),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for i := 0; i < burst; i++ {
		tb.tokens <- struct{}{}
	}
	go tb.run()
	return tb
}

func (t *TokenBucket) run() {
	defer close(t.done)
	for {
		select {
		case <-t.stop:
			return
		case <-t.ticker.C:
			select {
			case t.tokens <- struct{}{}:
			default:
			}
		}
	}
}

// Wait blocks until a token is available, the context is canceled or the
// bucket is stopped
func (t *TokenBucket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return ErrStopped
	default:
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate wait canceled: %w", ctx.Err())
	case <-t.done:
		return ErrStopped
	case <-t.tokens:
		return nil
	}
}

// Stop releases resources held by the limiter and wakes blocked waiters. It is
// safe to call more than once.
func (t *TokenBucket) Stop() {
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.stop)
	})
	<-t.done
}

var _ Limiter = (*TokenBucket)(nil)
