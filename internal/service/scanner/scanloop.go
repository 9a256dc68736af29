package scanner

import (
	"errors"
	"fmt"
	"time"

	"parkscan/internal/decoder"
	"parkscan/internal/frame"
	"parkscan/internal/logger"
	"parkscan/internal/loop"
)

// DefaultScanInterval is the delay between decode attempts.
const DefaultScanInterval = 300 * time.Millisecond

// Result is the outcome of one decode attempt.
type Result struct {
	Payload string
	Found   bool
	Err     error // set for misses other than decoder.ErrNotFound
}

// Attempt runs dec against the buffer. An empty buffer, a decoder error and
// a decoder panic all count as a miss.
func Attempt(buf *frame.Buffer, dec decoder.Decoder) (res Result) {
	if buf.Empty() {
		return Result{}
	}

	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("decoder panic: %v", r)}
		}
	}()

	payload, err := dec.Decode(buf.Image())
	switch {
	case err == nil:
		return Result{Payload: payload, Found: true}
	case errors.Is(err, decoder.ErrNotFound):
		return Result{}
	default:
		return Result{Err: err}
	}
}

// ScanLoop retries decoding at a fixed interval, independent of the
// sampler's refresh cadence, until a payload is found or the session ends.
type ScanLoop struct {
	sched     loop.Scheduler
	session   *Session
	buffer    *frame.Buffer
	decoder   decoder.Decoder
	interval  time.Duration
	onDecoded func(payload string)
	logger    *logger.Logger

	timer loop.Timer
	done  bool
}

func newScanLoop(sched loop.Scheduler, session *Session, buffer *frame.Buffer, dec decoder.Decoder, interval time.Duration, onDecoded func(string), logger *logger.Logger) *ScanLoop {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	return &ScanLoop{
		sched:     sched,
		session:   session,
		buffer:    buffer,
		decoder:   dec,
		interval:  interval,
		onDecoded: onDecoded,
		logger:    logger,
	}
}

// Start makes the first attempt immediately.
func (l *ScanLoop) Start() {
	l.attempt()
}

// Stop cancels the pending retry. The loop never runs again afterwards.
func (l *ScanLoop) Stop() {
	l.done = true
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *ScanLoop) attempt() {
	l.timer = nil
	if l.done || !l.session.Active() {
		return
	}

	l.session.attempts++
	res := Attempt(l.buffer, l.decoder)
	if res.Found {
		l.done = true
		l.onDecoded(res.Payload)
		return
	}
	if res.Err != nil {
		l.logger.Warning("Decode attempt %d failed: %v", l.session.attempts, res.Err)
	}

	if l.done || !l.session.Active() {
		return
	}
	l.timer = l.sched.AfterFunc(l.interval, l.attempt)
}
