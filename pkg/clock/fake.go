package clock

import (
	"context"
	"sync"
	"time"
)

// Fake is a manually advanced Clock. Tickers fire and sleepers wake only
// when Advance or Set moves time past their deadline.
type Fake struct {
	mu       sync.Mutex
	cond     *sync.Cond
	now      time.Time
	tickers  []*fakeTicker
	sleepers []*sleeper
}

type fakeTicker struct {
	clock  *Fake
	period time.Duration
	next   time.Time
	ch     chan time.Time
}

type sleeper struct {
	until time.Time
	done  chan struct{}
}

var _ Clock = (*Fake)(nil)

// NewFake returns a fake clock reading start.
func NewFake(start time.Time) *Fake {
	f := &Fake{now: start}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTicker registers a ticker firing every d of fake time.
func (f *Fake) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTicker{
		clock:  f,
		period: d,
		next:   f.now.Add(d),
		ch:     make(chan time.Time, 1),
	}
	f.tickers = append(f.tickers, t)
	f.cond.Broadcast()
	return t
}

// Sleep blocks until fake time reaches now+d or ctx is done.
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	f.mu.Lock()
	s := &sleeper{until: f.now.Add(d), done: make(chan struct{})}
	f.sleepers = append(f.sleepers, s)
	f.cond.Broadcast()
	f.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		f.removeSleeper(s)
		return ctx.Err()
	}
}

// Advance moves time forward by d, firing due tickers and waking sleepers.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setLocked(f.now.Add(d))
}

// Set moves time to t. Moving backwards only changes Now.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setLocked(t)
}

func (f *Fake) setLocked(t time.Time) {
	f.now = t

	for _, tk := range f.tickers {
		for !tk.next.After(t) {
			select {
			case tk.ch <- tk.next:
			default:
				// Receiver is behind; drop the tick like time.Ticker does.
			}
			tk.next = tk.next.Add(tk.period)
		}
	}

	kept := f.sleepers[:0]
	for _, s := range f.sleepers {
		if !s.until.After(t) {
			close(s.done)
			continue
		}
		kept = append(kept, s)
	}
	f.sleepers = kept
}

// BlockUntil waits until at least n tickers and sleepers are registered.
// Tests call it before Advance so the goroutine under test is waiting.
func (f *Fake) BlockUntil(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.tickers)+len(f.sleepers) < n {
		f.cond.Wait()
	}
}

// Waiters reports the number of registered tickers and sleepers.
func (f *Fake) Waiters() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers) + len(f.sleepers)
}

func (f *Fake) removeSleeper(target *sleeper) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.sleepers {
		if s == target {
			f.sleepers = append(f.sleepers[:i], f.sleepers[i+1:]...)
			return
		}
	}
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	f := t.clock
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, tk := range f.tickers {
		if tk == t {
			f.tickers = append(f.tickers[:i], f.tickers[i+1:]...)
			return
		}
	}
}
