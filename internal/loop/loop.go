// Package loop provides the single-goroutine scheduler that scanning runs on.
//
// Every callback handed to a Scheduler runs to completion on the scheduler's
// goroutine before the next one starts, so state touched only from callbacks
// needs no locking. Blocking work belongs on other goroutines and re-enters
// the loop through Post.
package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStopped is returned by Do when the loop is no longer running.
var ErrStopped = errors.New("loop: stopped")

// Timer is a pending AfterFunc callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped the timer, false if the callback already ran or was stopped.
	Stop() bool
}

// Scheduler runs callbacks cooperatively on one goroutine.
type Scheduler interface {
	// Post queues fn to run on the loop. Safe from any goroutine.
	Post(fn func())
	// RequestFrame runs fn once on the next display refresh.
	RequestFrame(fn func())
	// AfterFunc runs fn on the loop once d has elapsed.
	AfterFunc(d time.Duration, fn func()) Timer
	// Done is closed once the scheduler stops running callbacks. It may be
	// nil for schedulers that never stop.
	Done() <-chan struct{}
}

// Do posts fn to s and blocks until it has run, ctx is done, or s stops.
// A task still queued when s stops never runs and Do returns ErrStopped.
func Do(ctx context.Context, s Scheduler, fn func()) error {
	ran := make(chan struct{})
	s.Post(func() {
		fn()
		close(ran)
	})

	select {
	case <-ran:
		return nil
	case <-s.Done():
		// fn may have completed just before the loop exited.
		select {
		case <-ran:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EventLoop is the production Scheduler. Display refreshes come from a ticker.
type EventLoop struct {
	refresh time.Duration
	tasks   chan func()
	done    chan struct{}

	mu     sync.Mutex
	frames []func()

	running atomic.Bool
}

// New creates an EventLoop refreshing every refresh interval.
func New(refresh time.Duration) *EventLoop {
	if refresh <= 0 {
		refresh = time.Second / 60
	}
	return &EventLoop{
		refresh: refresh,
		tasks:   make(chan func(), 64),
		done:    make(chan struct{}),
	}
}

// Run executes callbacks until ctx is cancelled. It must be called once.
func (l *EventLoop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("loop: already running")
	}
	defer close(l.done)

	ticker := time.NewTicker(l.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		case <-ticker.C:
			l.mu.Lock()
			batch := l.frames
			l.frames = nil
			l.mu.Unlock()

			for _, fn := range batch {
				fn()
			}
		}
	}
}

// Post queues fn. Tasks posted after the loop exits are dropped.
func (l *EventLoop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

// Done is closed when Run returns.
func (l *EventLoop) Done() <-chan struct{} {
	return l.done
}

func (l *EventLoop) RequestFrame(fn func()) {
	l.mu.Lock()
	l.frames = append(l.frames, fn)
	l.mu.Unlock()
}

func (l *EventLoop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.fired.CompareAndSwap(false, true) {
				fn()
			}
		})
	})
	return t
}

type loopTimer struct {
	timer *time.Timer
	fired atomic.Bool
}

// Stop also covers the window where the wall-clock timer has fired but its
// callback is still queued on the loop.
func (t *loopTimer) Stop() bool {
	t.timer.Stop()
	return t.fired.CompareAndSwap(false, true)
}
