package handler

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"parkscan/internal/camera"
	"parkscan/internal/decoder"
	"parkscan/internal/dto"
	"parkscan/internal/logger"
	"parkscan/internal/loop"
	"parkscan/internal/repository/sqlite"
	"parkscan/internal/service"
	"parkscan/internal/service/dispatch"
	"parkscan/internal/service/scanner"
	"parkscan/internal/service/websocket"
	"parkscan/internal/ui"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ========================================
// Test Setup Helpers
// ========================================

type testEnv struct {
	manager *service.Manager
	journal *sqlite.SessionRepository
	logger  *logger.Logger

	// stopLoop ends the event loop and waits for it to exit.
	stopLoop func()

	mu       sync.Mutex
	received []dto.VerifyRequest
}

func (e *testEnv) Received() []dto.VerifyRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]dto.VerifyRequest(nil), e.received...)
}

// setupEnv runs a real event loop over a still camera showing img, with a
// verification server that accepts every payload.
func setupEnv(t *testing.T, img image.Image) *testEnv {
	t.Helper()

	env := &testEnv{logger: logger.NewWithWriter(io.Discard)}

	verify := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req dto.VerifyRequest
		json.NewDecoder(r.Body).Decode(&req)
		env.mu.Lock()
		env.received = append(env.received, req)
		env.mu.Unlock()

		json.NewEncoder(w).Encode(dto.VerifyResponse{
			Message:      "VALID",
			User:         "Jane Doe",
			Slot:         "B-12",
			StartTime:    "2024-01-01T10:00:00Z",
			LicensePlate: "KR 12345",
			VehicleModel: "Corolla",
			VehicleMake:  "Toyota",
			VehicleColor: "Blue",
		})
	}))
	t.Cleanup(verify.Close)

	db, err := sqlite.New(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	env.journal = sqlite.NewSessionRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	l := loop.New(5 * time.Millisecond)
	loopCtx, cancelLoop := context.WithCancel(ctx)
	go l.Run(loopCtx)
	env.stopLoop = func() {
		cancelLoop()
		<-l.Done()
	}
	hub := websocket.NewHub(env.logger)
	go hub.Run(ctx)

	panel := ui.NewPanel()
	env.manager = service.NewManager(ctx, scanner.Options{
		Scheduler:    l,
		Source:       &camera.StillSource{Image: img},
		Decoder:      decoder.NewZXing(false),
		Dispatcher:   dispatch.NewDispatcher(verify.URL, verify.Client(), panel, time.UTC, env.logger),
		Panel:        panel,
		Journal:      env.journal,
		Logger:       env.logger,
		ScanInterval: 20 * time.Millisecond,
	}, hub)

	return env
}

func qrImage(t *testing.T, content string) image.Image {
	t.Helper()

	matrix, err := qrcode.NewQRCodeWriter().Encode(content, gozxing.BarcodeFormat_QR_CODE, 200, 200, nil)
	if err != nil {
		t.Fatalf("Failed to encode QR code: %v", err)
	}
	canvas := blankImage()
	draw.Draw(canvas, image.Rect(60, 20, 260, 220), matrix, image.Point{}, draw.Src)
	return canvas
}

func blankImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return img
}

func do(h http.HandlerFunc, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) StateResponse {
	t.Helper()

	var resp StateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode state %s: %v", rec.Body.String(), err)
	}
	return resp
}

func waitForState(t *testing.T, env *testEnv, cond func(StateResponse) bool) StateResponse {
	t.Helper()

	h := StateHandler(env.manager, env.logger)
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp := decodeState(t, do(h, http.MethodGet, "/api/state"))
		if cond(resp) {
			return resp
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for state, last %+v", resp)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
