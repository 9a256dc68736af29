package scanner

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"sync"
	"testing"
	"time"

	"parkscan/internal/camera"
	"parkscan/internal/decoder"
	"parkscan/internal/dto"
	"parkscan/internal/logger"
	"parkscan/internal/loop"
	"parkscan/internal/model"
	"parkscan/internal/ui"
)

// ========================================
// Fakes
// ========================================

type fakeStream struct {
	width, height int
	live          bool
	stops         int
	draws         int
}

func newFakeStream(w, h int) *fakeStream {
	return &fakeStream{width: w, height: h, live: true}
}

func (s *fakeStream) Size() (int, int) { return s.width, s.height }

func (s *fakeStream) DrawInto(dst *image.RGBA) bool {
	if !s.live {
		return false
	}
	s.draws++
	dst.Set(0, 0, color.RGBA{R: uint8(s.draws), A: 255})
	return true
}

func (s *fakeStream) Live() bool { return s.live }

func (s *fakeStream) Stop() {
	s.stops++
	s.live = false
}

type fakeSource struct {
	mu     sync.Mutex
	stream camera.Stream
	err    error
	gate   chan struct{} // when set, Open waits for it to close
	opens  int
	ctxErr error
}

func (s *fakeSource) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	s.mu.Lock()
	s.opens++
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctxErr = ctx.Err()
	if s.err != nil {
		return nil, s.err
	}
	return s.stream, nil
}

func (s *fakeSource) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

func (s *fakeSource) CtxErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctxErr
}

// scriptedDecoder misses until call number succeedOn, which yields payload.
type scriptedDecoder struct {
	clock     *loop.Manual
	succeedOn int
	payload   string
	err       error
	calls     int
	at        []time.Duration
	bounds    []image.Rectangle
}

func (d *scriptedDecoder) Decode(img image.Image) (string, error) {
	d.calls++
	d.at = append(d.at, d.clock.Now())
	d.bounds = append(d.bounds, img.Bounds())

	if d.succeedOn > 0 && d.calls == d.succeedOn {
		return d.payload, nil
	}
	if d.err != nil {
		return "", d.err
	}
	return "", decoder.ErrNotFound
}

type recordingDispatcher struct {
	mu       sync.Mutex
	payloads []string
	rendered []string
	err      error
	panel    *ui.Panel
}

func (d *recordingDispatcher) Verify(ctx context.Context, payload string) (*dto.VerificationResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads = append(d.payloads, payload)
	if d.err != nil {
		return nil, d.err
	}
	return &dto.VerificationResult{Message: "INVALID", Verdict: dto.VerdictInvalid}, nil
}

func (d *recordingDispatcher) Render(result *dto.VerificationResult) {
	d.mu.Lock()
	d.rendered = append(d.rendered, result.Message)
	d.mu.Unlock()
	if d.panel != nil {
		d.panel.ApplyVerdict(result.Message, ui.CueNegative, nil)
	}
}

func (d *recordingDispatcher) Rendered() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.rendered...)
}

func (d *recordingDispatcher) Payloads() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.payloads...)
}

type memoryJournal struct {
	sessions map[string]*model.Session
}

func newMemoryJournal() *memoryJournal {
	return &memoryJournal{sessions: make(map[string]*model.Session)}
}

func (j *memoryJournal) Insert(s *model.Session) error {
	copied := *s
	j.sessions[s.ID] = &copied
	return nil
}

func (j *memoryJournal) Finish(id string, outcome model.Outcome, attempts int, endedAt time.Time) error {
	s, ok := j.sessions[id]
	if !ok {
		return errors.New("unknown session")
	}
	s.Outcome = outcome
	s.DecodeAttempts = attempts
	s.EndedAt = &endedAt
	return nil
}

func (j *memoryJournal) SetDispatchStatus(id string, status model.DispatchStatus) error {
	s, ok := j.sessions[id]
	if !ok {
		return errors.New("unknown session")
	}
	s.DispatchStatus = status
	return nil
}

func (j *memoryJournal) GetByID(id string) (*model.Session, error) {
	s, ok := j.sessions[id]
	if !ok {
		return nil, errors.New("unknown session")
	}
	return s, nil
}

func (j *memoryJournal) GetRecent(limit int) ([]model.Session, error) { return nil, nil }

func (j *memoryJournal) GetStats() (*model.SessionStats, error) { return &model.SessionStats{}, nil }

func (j *memoryJournal) DeleteBefore(t time.Time) (int64, error) { return 0, nil }

func (j *memoryJournal) only(t *testing.T) *model.Session {
	t.Helper()
	if len(j.sessions) != 1 {
		t.Fatalf("Expected exactly one journaled session, got %d", len(j.sessions))
	}
	for _, s := range j.sessions {
		return s
	}
	return nil
}

// ========================================
// Test Setup Helpers
// ========================================

type harness struct {
	clock       *loop.Manual
	source      *fakeSource
	stream      *fakeStream
	decoder     *scriptedDecoder
	dispatcher  *recordingDispatcher
	panel       *ui.Panel
	journal     *memoryJournal
	controller  *Controller
	transitions [][2]State
}

func setupHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		clock:      loop.NewManual(16 * time.Millisecond),
		stream:     newFakeStream(64, 48),
		dispatcher: &recordingDispatcher{},
		panel:      ui.NewPanel(),
		journal:    newMemoryJournal(),
	}
	h.source = &fakeSource{stream: h.stream}
	h.decoder = &scriptedDecoder{clock: h.clock}

	h.controller = NewController(context.Background(), Options{
		Scheduler:    h.clock,
		Source:       h.source,
		Decoder:      h.decoder,
		Dispatcher:   h.dispatcher,
		Panel:        h.panel,
		Journal:      h.journal,
		Logger:       logger.NewWithWriter(io.Discard),
		ScanInterval: 300 * time.Millisecond,
		OnStateChange: func(from, to State) {
			h.transitions = append(h.transitions, [2]State{from, to})
		},
	})
	return h
}

// waitFor drains posted tasks until cond holds. Acquisition and dispatch
// run on goroutines and post their results back.
func (h *harness) waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.clock.RunPending()
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s (state %s)", what, h.controller.State())
}

func (h *harness) startScanning(t *testing.T) {
	t.Helper()

	if !h.controller.Start() {
		t.Fatal("Expected Start to begin a session")
	}
	h.waitFor(t, "scanning", func() bool { return h.controller.State() == StateScanning })
}

func (h *harness) countTransitionsTo(s State) int {
	n := 0
	for _, tr := range h.transitions {
		if tr[1] == s {
			n++
		}
	}
	return n
}
