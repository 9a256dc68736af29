package service

import (
	"context"
	"sync/atomic"

	"parkscan/internal/logger"
	"parkscan/internal/loop"
	"parkscan/internal/repository"
	"parkscan/internal/service/scanner"
	"parkscan/internal/service/websocket"
	"parkscan/internal/ui"
)

// Manager is the thread-safe entry point to the scanner. HTTP handlers call
// it from their own goroutines; it hops onto the loop for every controller
// access and mirrors state changes to console viewers.
type Manager struct {
	loop       loop.Scheduler
	controller *scanner.Controller
	panel      *ui.Panel
	hub        *websocket.Hub
	journal    repository.SessionRepository
	logger     *logger.Logger

	state atomic.Int32
}

// NewManager builds the controller from opts and hooks the panel and state
// observers up to hub. hub may be nil.
func NewManager(ctx context.Context, opts scanner.Options, hub *websocket.Hub) *Manager {
	m := &Manager{
		loop:    opts.Scheduler,
		panel:   opts.Panel,
		hub:     hub,
		journal: opts.Journal,
		logger:  opts.Logger,
	}

	observer := opts.OnStateChange
	opts.OnStateChange = func(from, to scanner.State) {
		m.state.Store(int32(to))
		if observer != nil {
			observer(from, to)
		}
		m.publish(m.panel.Snapshot())
	}
	m.controller = scanner.NewController(ctx, opts)
	m.panel.OnChange(m.publish)

	m.logger.Info("Scanner manager ready")
	return m
}

func (m *Manager) publish(panel ui.State) {
	if m.hub == nil {
		return
	}
	m.hub.Publish(websocket.Message{State: m.State().String(), Panel: panel})
}

// StartScan begins a session. It reports false when one is already running.
func (m *Manager) StartScan(ctx context.Context) (bool, error) {
	var started bool
	err := loop.Do(ctx, m.loop, func() { started = m.controller.Start() })
	return started, err
}

// CancelScan ends the current session. It reports false when there is
// nothing to cancel.
func (m *Manager) CancelScan(ctx context.Context) (bool, error) {
	var cancelled bool
	err := loop.Do(ctx, m.loop, func() { cancelled = m.controller.Cancel() })
	return cancelled, err
}

func (m *Manager) Status(ctx context.Context) (scanner.Status, error) {
	var st scanner.Status
	err := loop.Do(ctx, m.loop, func() { st = m.controller.Status() })
	return st, err
}

// State is the last state the controller entered. Safe from any goroutine.
func (m *Manager) State() scanner.State {
	return scanner.State(m.state.Load())
}

func (m *Manager) Panel() ui.State {
	return m.panel.Snapshot()
}

func (m *Manager) GetHub() *websocket.Hub {
	return m.hub
}

// GetJournal returns nil when sessions are not journaled.
func (m *Manager) GetJournal() repository.SessionRepository {
	return m.journal
}
