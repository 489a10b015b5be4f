package fetcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Throttle serializes requests per host and waits at least delay between
// the end of one request and the start of the next. It applies to every
// strategy, so a fallback attempt waits its turn too.
type Throttle struct {
	delay time.Duration
	mu    sync.Mutex
	hosts map[string]*hostSlot
}

type hostSlot struct {
	sem   *semaphore.Weighted
	// delay is guarded by Throttle.mu.
	delay time.Duration
	// ready is when the next request may start. Only the semaphore holder
	// touches it.
	ready time.Time
}

// NewThrottle returns a throttle with the given minimum per-host pause.
// A zero delay still serializes requests to the same host.
func NewThrottle(delay time.Duration) *Throttle {
	return &Throttle{
		delay: delay,
		hosts: make(map[string]*hostSlot),
	}
}

// Acquire blocks until host may be contacted. The returned release must be
// called once the request has finished; the pause starts then.
func (t *Throttle) Acquire(ctx context.Context, host string) (func(), error) {
	slot := t.slot(host)
	if err := slot.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if wait := time.Until(slot.ready); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			slot.sem.Release(1)
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			slot.ready = time.Now().Add(t.Delay(host))
			slot.sem.Release(1)
		})
	}, nil
}

// Raise widens the pause for host, e.g. to honour a robots.txt
// crawl-delay. It never lowers it.
func (t *Throttle) Raise(host string, delay time.Duration) {
	slot := t.slot(host)
	t.mu.Lock()
	defer t.mu.Unlock()
	if delay > slot.delay {
		slot.delay = delay
	}
}

// Delay returns the current pause for host.
func (t *Throttle) Delay(host string) time.Duration {
	slot := t.slot(host)
	t.mu.Lock()
	defer t.mu.Unlock()
	return slot.delay
}

func (t *Throttle) slot(host string) *hostSlot {
	host = strings.ToLower(host)
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.hosts[host]; ok {
		return s
	}
	s := &hostSlot{
		sem:   semaphore.NewWeighted(1),
		delay: t.delay,
	}
	t.hosts[host] = s
	return s
}
