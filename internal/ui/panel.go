// Package ui holds the abstract state of the attendant console.
package ui

import "sync"

// Cue is the color hint attached to the verdict text.
type Cue string

const (
	CueNone     Cue = "none"
	CuePositive Cue = "positive"
	CueNegative Cue = "negative"
)

// Details are the seven text slots of the additional-data region.
type Details struct {
	User         string `json:"user"`
	Slot         string `json:"slot"`
	StartTime    string `json:"start_time"`
	LicensePlate string `json:"license_plate"`
	VehicleModel string `json:"vehicle_model"`
	VehicleMake  string `json:"vehicle_make"`
	VehicleColor string `json:"vehicle_color"`
}

// State is a snapshot of the console.
type State struct {
	TriggerVisible    bool    `json:"trigger_visible"`
	CaptureVisible    bool    `json:"capture_visible"`
	ResultVisible     bool    `json:"result_visible"`
	Payload           string  `json:"payload"`
	VerdictText       string  `json:"verdict_text"`
	VerdictCue        Cue     `json:"verdict_cue"`
	AdditionalVisible bool    `json:"additional_visible"`
	Details           Details `json:"details"`
	Notice            string  `json:"notice,omitempty"`
}

// Panel is the console state shared between the scan loop, which writes
// it, and viewers, which read snapshots.
type Panel struct {
	mu       sync.Mutex
	state    State
	onChange func(State)
}

// NewPanel returns a panel showing only the scan trigger.
func NewPanel() *Panel {
	return &Panel{state: State{TriggerVisible: true, VerdictCue: CueNone}}
}

// OnChange registers fn to receive a snapshot after every mutation. fn runs
// outside the panel lock.
func (p *Panel) OnChange(fn func(State)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

func (p *Panel) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Panel) update(fn func(s *State)) {
	p.mu.Lock()
	fn(&p.state)
	snapshot := p.state
	notify := p.onChange
	p.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
}

// ShowCapture hides the trigger and the result and shows the live capture.
func (p *Panel) ShowCapture() {
	p.update(func(s *State) {
		s.TriggerVisible = false
		s.ResultVisible = false
		s.CaptureVisible = true
	})
}

// ShowTrigger hides the capture and restores the trigger.
func (p *Panel) ShowTrigger() {
	p.update(func(s *State) {
		s.CaptureVisible = false
		s.TriggerVisible = true
	})
}

// ShowResult hides the capture surface and reveals the decoded payload.
func (p *Panel) ShowResult(payload string) {
	p.update(func(s *State) {
		s.CaptureVisible = false
		s.TriggerVisible = true
		s.ResultVisible = true
		s.Payload = payload
	})
}

// ApplyVerdict renders a verdict. details is nil for a negative verdict, in
// which case the slots keep their previous text but are hidden.
func (p *Panel) ApplyVerdict(text string, cue Cue, details *Details) {
	p.update(func(s *State) {
		s.VerdictText = text
		s.VerdictCue = cue
		if details != nil {
			s.Details = *details
			s.AdditionalVisible = true
		} else {
			s.AdditionalVisible = false
		}
	})
}

// SetNotice shows a short message to the attendant. An empty string clears it.
func (p *Panel) SetNotice(msg string) {
	p.update(func(s *State) {
		s.Notice = msg
	})
}
