package model

import "time"

// Outcome records how a scan session ended.
type Outcome string

const (
	OutcomePending       Outcome = "pending"
	OutcomeDecoded       Outcome = "decoded"
	OutcomeCancelled     Outcome = "cancelled"
	OutcomeAcquireFailed Outcome = "acquire_failed"
	OutcomeStreamEnded   Outcome = "stream_ended"
)

// DispatchStatus tracks the verification hand-off of a decoded session.
type DispatchStatus string

const (
	DispatchNone      DispatchStatus = "none"
	DispatchPending   DispatchStatus = "pending"
	DispatchDelivered DispatchStatus = "delivered"
	DispatchFailed    DispatchStatus = "failed"
)

// Session is the journal record of one scan attempt. It deliberately
// carries no payload or reservation data.
type Session struct {
	ID             string         `json:"id"`
	StartedAt      time.Time      `json:"started_at"`
	EndedAt        *time.Time     `json:"ended_at,omitempty"`
	Outcome        Outcome        `json:"outcome"`
	DispatchStatus DispatchStatus `json:"dispatch_status"`
	DecodeAttempts int            `json:"decode_attempts"`
}

// SessionStats summarises the journal.
type SessionStats struct {
	TotalSessions int                    `json:"total_sessions"`
	ByOutcome     map[Outcome]int        `json:"by_outcome"`
	ByDispatch    map[DispatchStatus]int `json:"by_dispatch"`
}
