package scanner

import (
	"parkscan/internal/camera"
	"parkscan/internal/frame"
	"parkscan/internal/loop"
)

// Sampler copies the current camera frame into the buffer on every display
// refresh while its session is active.
type Sampler struct {
	sched   loop.Scheduler
	session *Session
	stream  camera.Stream
	buffer  *frame.Buffer
	onEnded func()
	stopped bool
	ticks   int
}

func newSampler(sched loop.Scheduler, session *Session, stream camera.Stream, buffer *frame.Buffer, onEnded func()) *Sampler {
	return &Sampler{
		sched:   sched,
		session: session,
		stream:  stream,
		buffer:  buffer,
		onEnded: onEnded,
	}
}

func (s *Sampler) Start() {
	s.sched.RequestFrame(s.tick)
}

// Stop keeps an already requested refresh from sampling again.
func (s *Sampler) Stop() {
	s.stopped = true
}

func (s *Sampler) tick() {
	if s.stopped || !s.session.Active() {
		return
	}
	if !s.stream.Live() {
		s.stopped = true
		s.onEnded()
		return
	}

	s.ticks++
	// The size is 0×0 until the first frame arrives.
	w, h := s.stream.Size()
	s.buffer.Resize(w, h)
	if !s.buffer.Empty() {
		s.stream.DrawInto(s.buffer.Image())
	}

	s.sched.RequestFrame(s.tick)
}
