package scanner

import (
	"time"

	"parkscan/internal/camera"

	"github.com/google/uuid"
)

// Session is one attempt to acquire a camera and scan a code. Only the
// Controller changes it; the sampler and scan loop read Active to decide
// whether to reschedule themselves.
type Session struct {
	ID        string
	StartedAt time.Time

	active   bool
	stream   camera.Stream
	released bool
	attempts int
}

func newSession(now time.Time) *Session {
	return &Session{ID: uuid.NewString(), StartedAt: now}
}

// Active reports whether the session is scanning.
func (s *Session) Active() bool {
	return s.active
}

// Attempts returns the number of decode attempts made so far.
func (s *Session) Attempts() int {
	return s.attempts
}

func (s *Session) activate(stream camera.Stream) {
	s.stream = stream
	s.active = true
}

// release stops the stream. It runs at most once per session.
func (s *Session) release() {
	s.active = false
	if s.released || s.stream == nil {
		return
	}
	s.released = true
	s.stream.Stop()
}
