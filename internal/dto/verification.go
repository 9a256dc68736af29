package dto

import "time"

// Verdict is the verification service's classification of a payload.
type Verdict string

const (
	VerdictValid   Verdict = "VALID"
	VerdictInvalid Verdict = "INVALID"
)

// VerifyRequest is the body posted to the verification service.
type VerifyRequest struct {
	Data string `json:"data"`
}

// VerifyResponse is the service's reply. Reservation fields are only present
// when Message is VALID.
type VerifyResponse struct {
	Message      string `json:"message"`
	User         string `json:"user,omitempty"`
	Slot         string `json:"slot,omitempty"`
	StartTime    string `json:"start_time,omitempty"`
	LicensePlate string `json:"license_plate,omitempty"`
	VehicleModel string `json:"vehicle_model,omitempty"`
	VehicleMake  string `json:"vehicle_make,omitempty"`
	VehicleColor string `json:"vehicle_color,omitempty"`
}

// Reservation is the booking a VALID payload refers to.
type Reservation struct {
	Holder       string
	Slot         string
	StartTime    time.Time
	LicensePlate string
	VehicleModel string
	VehicleMake  string
	VehicleColor string
}

// VerificationResult is built per request and rendered immediately.
type VerificationResult struct {
	Verdict     Verdict
	Message     string // raw server message shown as the verdict text
	Reservation *Reservation
}
