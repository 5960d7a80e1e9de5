package kaonavi

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultMutatingLimit is the number of mutating calls allowed per window.
	DefaultMutatingLimit = 5
	// DefaultMutatingWindow is how long a successful mutating call holds its permit.
	DefaultMutatingWindow = 60 * time.Second
)

// MutatingLimiter throttles mutating calls to a fixed number per rolling window.
// Each permit is held from acquisition until window has elapsed since the call
// that took it succeeded; failed calls hand their permit back immediately.
type MutatingLimiter struct {
	sem    chan struct{}
	window time.Duration
	clock  clockwork.Clock

	mu     sync.Mutex
	queue  []time.Time
	closed bool

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup

	onChange func(consumed int)
}

// NewMutatingLimiter creates a limiter with limit permits per window and starts
// its replenishment goroutine. Call Close to stop it.
func NewMutatingLimiter(limit int, window time.Duration) *MutatingLimiter {
	return newMutatingLimiter(limit, window, clockwork.NewRealClock(), nil)
}

func newMutatingLimiter(limit int, window time.Duration, clk clockwork.Clock, onChange func(consumed int)) *MutatingLimiter {
	if limit < 1 {
		limit = 1
	}
	rl := &MutatingLimiter{
		sem:    make(chan struct{}, limit),
		window: window,
		clock:  clk,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),

		onChange: onChange,
	}
	rl.wg.Add(1)
	go rl.replenish()
	return rl
}

// Limit returns the number of permits in the pool.
func (rl *MutatingLimiter) Limit() int {
	return cap(rl.sem)
}

// Window returns the replenishment delay.
func (rl *MutatingLimiter) Window() time.Duration {
	return rl.window
}

// Consumed returns the number of permits currently taken (limit minus available).
func (rl *MutatingLimiter) Consumed() int {
	return len(rl.sem)
}

// Acquire blocks until a permit is available. It fails without consuming a
// permit when ctx is done or the limiter is closed.
func (rl *MutatingLimiter) Acquire(ctx context.Context) (*Permit, error) {
	if rl.isClosed() {
		return nil, closedError()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case rl.sem <- struct{}{}:
		if rl.isClosed() {
			rl.release()
			return nil, closedError()
		}
		rl.notify()
		return &Permit{limiter: rl}, nil
	case <-rl.done:
		return nil, closedError()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close discards every pending replenishment and rejects further acquisitions.
// It is safe to call more than once.
func (rl *MutatingLimiter) Close() {
	rl.mu.Lock()
	if rl.closed {
		rl.mu.Unlock()
		return
	}
	rl.closed = true
	rl.queue = nil
	close(rl.done)
	rl.mu.Unlock()

	rl.wg.Wait()
}

func (rl *MutatingLimiter) isClosed() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.closed
}

func (rl *MutatingLimiter) release() {
	select {
	case <-rl.sem:
		rl.notify()
	default:
	}
}

// schedule queues one permit to be returned after window.
func (rl *MutatingLimiter) schedule() {
	rl.mu.Lock()
	if rl.closed {
		rl.mu.Unlock()
		return
	}
	rl.queue = append(rl.queue, rl.clock.Now().Add(rl.window))
	rl.mu.Unlock()

	select {
	case rl.wake <- struct{}{}:
	default:
	}
}

func (rl *MutatingLimiter) pending() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.queue)
}

// replenish returns permits in the order they were committed. Entries share the
// same window so the queue head is always the earliest deadline.
func (rl *MutatingLimiter) replenish() {
	defer rl.wg.Done()

	for {
		rl.mu.Lock()
		if rl.closed {
			rl.mu.Unlock()
			return
		}
		if len(rl.queue) == 0 {
			rl.mu.Unlock()
			select {
			case <-rl.wake:
				continue
			case <-rl.done:
				return
			}
		}
		readyAt := rl.queue[0]
		rl.mu.Unlock()

		if wait := readyAt.Sub(rl.clock.Now()); wait > 0 {
			timer := rl.clock.NewTimer(wait)
			select {
			case <-timer.Chan():
				// Re-read the head; the deadline is checked again before popping.
				continue
			case <-rl.done:
				timer.Stop()
				return
			}
		}

		rl.mu.Lock()
		if rl.closed {
			rl.mu.Unlock()
			return
		}
		rl.queue = rl.queue[1:]
		rl.mu.Unlock()

		rl.release()
	}
}

func (rl *MutatingLimiter) notify() {
	if rl.onChange != nil {
		rl.onChange(rl.Consumed())
	}
}

// Permit is one unit of mutating-call quota. Exactly one of Release or Commit
// takes effect; later calls are no-ops.
type Permit struct {
	limiter *MutatingLimiter
	settled atomic.Bool
}

// Release returns the permit immediately. Used when the call failed.
func (p *Permit) Release() {
	if p == nil || !p.settled.CompareAndSwap(false, true) {
		return
	}
	p.limiter.release()
}

// Commit schedules the permit's return after the limiter's window. Used when the
// call succeeded; the schedule is not tied to any request context.
func (p *Permit) Commit() {
	if p == nil || !p.settled.CompareAndSwap(false, true) {
		return
	}
	p.limiter.schedule()
}
