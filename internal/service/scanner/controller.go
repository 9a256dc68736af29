package scanner

import (
	"context"
	"fmt"
	"time"

	"parkscan/internal/camera"
	"parkscan/internal/decoder"
	"parkscan/internal/dto"
	"parkscan/internal/frame"
	"parkscan/internal/logger"
	"parkscan/internal/loop"
	"parkscan/internal/model"
	"parkscan/internal/repository"
	"parkscan/internal/ui"
)

// State is the controller's position in the scan lifecycle.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateScanning
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateScanning:
		return "scanning"
	case StateResolved:
		return "resolved"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Dispatcher hands a decoded payload to the verification service. Verify
// runs off the loop; Render is only called from the loop.
type Dispatcher interface {
	Verify(ctx context.Context, payload string) (*dto.VerificationResult, error)
	Render(result *dto.VerificationResult)
}

// Options configure a Controller. Journal and OnStateChange are optional.
type Options struct {
	Scheduler     loop.Scheduler
	Source        camera.Source
	Decoder       decoder.Decoder
	Dispatcher    Dispatcher
	Panel         *ui.Panel
	Journal       repository.SessionRepository
	Logger        *logger.Logger
	Constraints   camera.Constraints
	ScanInterval  time.Duration
	OnStateChange func(from, to State)
	Clock         func() time.Time
}

// Status is a read-only view of the controller.
type Status struct {
	State     State  `json:"state"`
	SessionID string `json:"session_id,omitempty"`
	Attempts  int    `json:"decode_attempts"`
}

// Controller is the scanning state machine. Its methods must be called on
// the scheduler's goroutine; use loop.Do from elsewhere.
type Controller struct {
	ctx  context.Context
	opts Options

	state   State
	session *Session
	sampler *Sampler
	scan    *ScanLoop

	cancelAcquire context.CancelFunc
}

// NewController creates an idle controller. ctx bounds camera acquisition
// and verification requests.
func NewController(ctx context.Context, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = DefaultScanInterval
	}
	return &Controller{ctx: ctx, opts: opts, state: StateIdle}
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) Status() Status {
	st := Status{State: c.state}
	if c.session != nil {
		st.SessionID = c.session.ID
		st.Attempts = c.session.attempts
	}
	return st
}

// Start begins a session. It reports false, and does nothing, unless the
// controller is idle.
func (c *Controller) Start() bool {
	if c.state != StateIdle {
		c.opts.Logger.Warning("Scan requested while %s, ignoring", c.state)
		return false
	}

	sess := newSession(c.opts.Clock())
	c.session = sess
	c.setState(StateRequesting)
	c.opts.Panel.SetNotice("")
	c.journalInsert(sess)

	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelAcquire = cancel

	go func() {
		stream, err := c.opts.Source.Open(ctx, c.opts.Constraints)
		c.opts.Scheduler.Post(func() { c.onAcquired(sess, stream, err) })
	}()

	return true
}

// Cancel ends the current session without a result. It reports false when
// there is nothing to cancel.
func (c *Controller) Cancel() bool {
	switch c.state {
	case StateRequesting:
		sess := c.session
		c.stopAcquire()
		c.journalFinish(sess, model.OutcomeCancelled)
		c.session = nil
		c.setState(StateIdle)
		return true
	case StateScanning:
		c.end(c.session, model.OutcomeCancelled)
		return true
	default:
		return false
	}
}

func (c *Controller) onAcquired(sess *Session, stream camera.Stream, err error) {
	if sess != c.session || c.state != StateRequesting {
		// Cancelled while the device was being negotiated.
		if stream != nil {
			stream.Stop()
		}
		return
	}
	c.stopAcquire()

	if err != nil {
		c.opts.Logger.Error("Camera acquisition failed for session %s: %v", sess.ID, err)
		c.opts.Panel.SetNotice(fmt.Sprintf("camera unavailable: %v", err))
		c.journalFinish(sess, model.OutcomeAcquireFailed)
		c.session = nil
		c.setState(StateIdle)
		return
	}

	sess.activate(stream)
	c.setState(StateScanning)
	c.opts.Panel.ShowCapture()

	buffer := frame.NewBuffer()
	c.sampler = newSampler(c.opts.Scheduler, sess, stream, buffer, func() {
		c.opts.Logger.Warning("Camera stream ended during session %s", sess.ID)
		c.end(sess, model.OutcomeStreamEnded)
	})
	c.scan = newScanLoop(c.opts.Scheduler, sess, buffer, c.opts.Decoder, c.opts.ScanInterval, func(payload string) {
		c.onDecoded(sess, payload)
	}, c.opts.Logger)

	c.sampler.Start()
	c.scan.Start()
}

func (c *Controller) onDecoded(sess *Session, payload string) {
	if sess != c.session || c.state != StateScanning {
		return
	}

	c.stopTasks()
	sess.release()
	c.opts.Panel.ShowResult(payload)
	c.setState(StateResolved)
	c.journalFinish(sess, model.OutcomeDecoded)
	c.journalDispatch(sess, model.DispatchPending)

	c.opts.Logger.Info("Session %s decoded a payload after %d attempts", sess.ID, sess.attempts)

	go func() {
		result, err := c.opts.Dispatcher.Verify(c.ctx, payload)
		c.opts.Scheduler.Post(func() { c.onDispatched(sess, result, err) })
	}()
}

func (c *Controller) onDispatched(sess *Session, result *dto.VerificationResult, err error) {
	if sess != c.session || c.state != StateResolved {
		return
	}

	status := model.DispatchDelivered
	if err != nil {
		c.opts.Logger.Error("Verification failed for session %s: %v", sess.ID, err)
		status = model.DispatchFailed
		c.opts.Panel.SetNotice("verification failed, scan again")
	} else {
		c.opts.Dispatcher.Render(result)
	}
	c.journalDispatch(sess, status)

	c.session = nil
	c.setState(StateIdle)
}

// end tears down a scanning session that produced no payload.
func (c *Controller) end(sess *Session, outcome model.Outcome) {
	if sess != c.session || c.state != StateScanning {
		return
	}

	c.stopTasks()
	sess.release()
	c.opts.Panel.ShowTrigger()
	c.journalFinish(sess, outcome)
	c.session = nil
	c.setState(StateIdle)
}

// stopTasks must run before the stream is released.
func (c *Controller) stopTasks() {
	if c.sampler != nil {
		c.sampler.Stop()
		c.sampler = nil
	}
	if c.scan != nil {
		c.scan.Stop()
		c.scan = nil
	}
}

func (c *Controller) stopAcquire() {
	if c.cancelAcquire != nil {
		c.cancelAcquire()
		c.cancelAcquire = nil
	}
}

func (c *Controller) setState(to State) {
	from := c.state
	c.state = to
	c.opts.Logger.Info("Scanner %s -> %s", from, to)
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(from, to)
	}
}

func (c *Controller) journalInsert(sess *Session) {
	if c.opts.Journal == nil {
		return
	}
	err := c.opts.Journal.Insert(&model.Session{
		ID:             sess.ID,
		StartedAt:      sess.StartedAt,
		Outcome:        model.OutcomePending,
		DispatchStatus: model.DispatchNone,
	})
	if err != nil {
		c.opts.Logger.Warning("Failed to journal session %s: %v", sess.ID, err)
	}
}

func (c *Controller) journalFinish(sess *Session, outcome model.Outcome) {
	if c.opts.Journal == nil {
		return
	}
	if err := c.opts.Journal.Finish(sess.ID, outcome, sess.attempts, c.opts.Clock()); err != nil {
		c.opts.Logger.Warning("Failed to journal outcome of session %s: %v", sess.ID, err)
	}
}

func (c *Controller) journalDispatch(sess *Session, status model.DispatchStatus) {
	if c.opts.Journal == nil {
		return
	}
	if err := c.opts.Journal.SetDispatchStatus(sess.ID, status); err != nil {
		c.opts.Logger.Warning("Failed to journal dispatch of session %s: %v", sess.ID, err)
	}
}
