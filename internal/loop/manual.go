package loop

import (
	"sync"
	"time"
)

// Manual is a Scheduler driven by a virtual clock. Nothing runs until the
// caller invokes RunPending or Advance, which execute callbacks on the
// calling goroutine in timestamp order.
type Manual struct {
	mu       sync.Mutex
	now      time.Duration
	interval time.Duration
	seq      uint64
	posted   []func()
	frames   []func()
	timers   []*manualTimer
}

type manualTimer struct {
	m       *Manual
	at      time.Duration
	seq     uint64
	fn      func()
	stopped bool
}

// NewManual creates a Manual scheduler whose display refreshes land on
// multiples of frameInterval.
func NewManual(frameInterval time.Duration) *Manual {
	if frameInterval <= 0 {
		frameInterval = 16 * time.Millisecond
	}
	return &Manual{interval: frameInterval}
}

// Now returns the virtual time elapsed since creation.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	m.posted = append(m.posted, fn)
	m.mu.Unlock()
}

// Done returns nil: a Manual scheduler never stops.
func (m *Manual) Done() <-chan struct{} {
	return nil
}

func (m *Manual) RequestFrame(fn func()) {
	m.mu.Lock()
	m.frames = append(m.frames, fn)
	m.mu.Unlock()
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTimer{m: m, at: m.now + d, seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()

	if t.stopped {
		return false
	}
	t.stopped = true
	t.m.removeTimer(t)
	return true
}

// removeTimer must be called with mu held.
func (m *Manual) removeTimer(t *manualTimer) {
	for i, other := range m.timers {
		if other == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}

// RunPending runs posted tasks, including ones posted while draining.
func (m *Manual) RunPending() {
	for {
		m.mu.Lock()
		if len(m.posted) == 0 {
			m.mu.Unlock()
			return
		}
		fn := m.posted[0]
		m.posted = m.posted[1:]
		m.mu.Unlock()

		fn()
	}
}

// Advance moves the clock forward by d, firing refreshes and timers due on
// the way. A refresh and a timer due at the same instant run refresh first.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.RunPending()

		m.mu.Lock()
		nextFrame := (m.now/m.interval + 1) * m.interval
		frameDue := len(m.frames) > 0 && nextFrame <= target

		var next *manualTimer
		for _, t := range m.timers {
			if t.at > target {
				continue
			}
			if next == nil || t.at < next.at || (t.at == next.at && t.seq < next.seq) {
				next = t
			}
		}

		switch {
		case frameDue && (next == nil || nextFrame <= next.at):
			m.now = nextFrame
			batch := m.frames
			m.frames = nil
			m.mu.Unlock()
			for _, fn := range batch {
				fn()
			}
		case next != nil:
			if next.at > m.now {
				m.now = next.at
			}
			next.stopped = true
			m.removeTimer(next)
			m.mu.Unlock()
			next.fn()
		default:
			m.now = target
			m.mu.Unlock()
			m.RunPending()
			return
		}
	}
}

// PendingTimers reports how many timers are scheduled and not stopped.
func (m *Manual) PendingTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// PendingFrames reports how many callbacks wait for the next refresh.
func (m *Manual) PendingFrames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}
