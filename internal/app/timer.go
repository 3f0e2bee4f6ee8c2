package app

import "time"

// Ticker is the subset of time.Ticker a Timer needs; tests substitute a manual one.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct {
	t *time.Ticker
}

func newRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// op is a unit of work executed on a session loop.
type op func()

// Timer forwards one tick per interval onto a session loop.
// It is not safe for concurrent use; the owning session loop is its only caller.
type Timer struct {
	interval  time.Duration
	newTicker func(time.Duration) Ticker

	stop chan struct{}
	done chan struct{}
}

func NewTimer(interval time.Duration, newTicker func(time.Duration) Ticker) *Timer {
	if newTicker == nil {
		newTicker = newRealTicker
	}
	return &Timer{interval: interval, newTicker: newTicker}
}

// Start stops any previous run, then posts onTick to sink once per interval.
func (t *Timer) Start(sink chan<- op, onTick op) {
	t.Stop()

	stop := make(chan struct{})
	done := make(chan struct{})
	ticker := t.newTicker(t.interval)

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C():
				select {
				case sink <- onTick:
				case <-stop:
					return
				}
			}
		}
	}()

	t.stop, t.done = stop, done
}

// Stop halts ticking and waits for the ticking goroutine to exit.
// It is a no-op when the timer is not running.
func (t *Timer) Stop() {
	if t.stop == nil {
		return
	}
	close(t.stop)
	<-t.done
	t.stop, t.done = nil, nil
}

// Running reports whether a tick goroutine is active.
func (t *Timer) Running() bool {
	return t.stop != nil
}
