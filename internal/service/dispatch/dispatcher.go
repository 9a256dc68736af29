package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"parkscan/internal/dto"
	"parkscan/internal/logger"
	"parkscan/internal/ui"
)

var (
	ErrUnexpectedStatus  = errors.New("dispatch: unexpected response status")
	ErrMalformedResponse = errors.New("dispatch: malformed response")
)

// StartTimeLayout renders the reservation start in the attendant's locale.
const StartTimeLayout = "1/2/2006, 3:04:05 PM"

// startTimeLayouts are accepted for start_time. The last one is what the
// reservation service prints for its timezone-aware datetimes.
var startTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
}

// Dispatcher posts decoded payloads to the verification service and renders
// the verdict. It is the only writer of the panel's verdict and
// additional-data state.
type Dispatcher struct {
	url      string
	client   *http.Client
	panel    *ui.Panel
	location *time.Location
	logger   *logger.Logger
}

// NewDispatcher creates a dispatcher. A nil client uses a client with timeout.
func NewDispatcher(url string, client *http.Client, panel *ui.Panel, location *time.Location, logger *logger.Logger) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if location == nil {
		location = time.Local
	}
	return &Dispatcher{
		url:      url,
		client:   client,
		panel:    panel,
		location: location,
		logger:   logger,
	}
}

// Dispatch verifies payload and renders the result in one call. On any
// failure the panel is left as it was and the error is returned. Callers
// that own the panel on another goroutine use Verify and Render instead.
func (d *Dispatcher) Dispatch(ctx context.Context, payload string) error {
	result, err := d.Verify(ctx, payload)
	if err != nil {
		d.logger.Error("Verification failed: %v", err)
		return err
	}

	d.Render(result)
	return nil
}

// Verify performs the request/response exchange without touching the panel.
func (d *Dispatcher) Verify(ctx context.Context, payload string) (*dto.VerificationResult, error) {
	body, err := json.Marshal(dto.VerifyRequest{Data: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach verification service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	var verifyResp dto.VerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&verifyResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return d.parse(&verifyResp)
}

func (d *Dispatcher) parse(resp *dto.VerifyResponse) (*dto.VerificationResult, error) {
	if resp.Message == "" {
		return nil, fmt.Errorf("%w: missing message", ErrMalformedResponse)
	}

	if resp.Message != string(dto.VerdictValid) {
		return &dto.VerificationResult{Verdict: dto.VerdictInvalid, Message: resp.Message}, nil
	}

	start, err := parseStartTime(resp.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &dto.VerificationResult{
		Verdict: dto.VerdictValid,
		Message: resp.Message,
		Reservation: &dto.Reservation{
			Holder:       resp.User,
			Slot:         resp.Slot,
			StartTime:    start,
			LicensePlate: resp.LicensePlate,
			VehicleModel: resp.VehicleModel,
			VehicleMake:  resp.VehicleMake,
			VehicleColor: resp.VehicleColor,
		},
	}, nil
}

func parseStartTime(value string) (time.Time, error) {
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid start_time %q", value)
}

// Render writes a verification result to the panel.
func (d *Dispatcher) Render(result *dto.VerificationResult) {
	d.logger.Info("Verification verdict: %s", result.Message)
	if result.Verdict != dto.VerdictValid || result.Reservation == nil {
		d.panel.ApplyVerdict(result.Message, ui.CueNegative, nil)
		return
	}

	r := result.Reservation
	d.panel.ApplyVerdict(result.Message, ui.CuePositive, &ui.Details{
		User:         r.Holder,
		Slot:         r.Slot,
		StartTime:    r.StartTime.In(d.location).Format(StartTimeLayout),
		LicensePlate: r.LicensePlate,
		VehicleModel: r.VehicleModel,
		VehicleMake:  r.VehicleMake,
		VehicleColor: r.VehicleColor,
	})
}
