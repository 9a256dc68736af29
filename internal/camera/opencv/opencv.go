// Package opencv implements camera capture and QR detection on gocv.
package opencv

import (
	"context"
	"fmt"
	"image"
	"sync"

	"parkscan/internal/camera"
	"parkscan/internal/logger"

	"gocv.io/x/gocv"
)

// DeviceSource opens local capture devices by index.
type DeviceSource struct {
	EnvironmentDevice int // rear camera, preferred
	UserDevice        int // front camera, -1 when absent
	logger            *logger.Logger
}

// NewDeviceSource creates a source for the given rear and front device indexes.
func NewDeviceSource(environmentDevice, userDevice int, logger *logger.Logger) *DeviceSource {
	return &DeviceSource{
		EnvironmentDevice: environmentDevice,
		UserDevice:        userDevice,
		logger:            logger,
	}
}

// Open tries the device matching the preferred facing first and falls back
// to the other camera when one is configured.
func (s *DeviceSource) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	order := []int{s.EnvironmentDevice, s.UserDevice}
	if c.Facing == camera.FacingUser {
		order = []int{s.UserDevice, s.EnvironmentDevice}
	}

	var lastErr error = camera.ErrNoDevice
	for _, device := range order {
		if device < 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		capture, err := gocv.OpenVideoCapture(device)
		if err != nil {
			s.logger.Warning("Failed to open camera device %d: %v", device, err)
			lastErr = fmt.Errorf("failed to open device %d: %w", device, err)
			continue
		}
		if !capture.IsOpened() {
			capture.Close()
			lastErr = fmt.Errorf("device %d: %w", device, camera.ErrNoDevice)
			continue
		}

		if c.Width > 0 && c.Height > 0 {
			capture.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
			capture.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
		}

		s.logger.Info("Camera device %d opened", device)
		return startStream(capture, device, s.logger), nil
	}

	return nil, lastErr
}

// stream keeps reading frames on its own goroutine and holds the newest one
// converted to RGBA.
type stream struct {
	capture *gocv.VideoCapture
	device  int
	logger  *logger.Logger

	mu     sync.Mutex
	latest gocv.Mat
	live   bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func startStream(capture *gocv.VideoCapture, device int, logger *logger.Logger) *stream {
	st := &stream{
		capture: capture,
		device:  device,
		logger:  logger,
		latest:  gocv.NewMat(),
		live:    true,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go st.readLoop()
	return st
}

func (st *stream) readLoop() {
	defer close(st.done)

	raw := gocv.NewMat()
	defer raw.Close()

	for {
		select {
		case <-st.stop:
			return
		default:
		}

		if ok := st.capture.Read(&raw); !ok {
			st.logger.Warning("Camera device %d stopped delivering frames", st.device)
			st.mu.Lock()
			st.live = false
			st.mu.Unlock()
			return
		}
		if raw.Empty() {
			continue
		}

		st.mu.Lock()
		err := gocv.CvtColor(raw, &st.latest, gocv.ColorBGRToRGBA)
		st.mu.Unlock()
		if err != nil {
			st.logger.Error("Failed to convert frame: %v", err)
		}
	}
}

func (st *stream) Size() (int, int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	// latest is closed once the stream stops.
	if !st.live || st.latest.Empty() {
		return 0, 0
	}
	return st.latest.Cols(), st.latest.Rows()
}

func (st *stream) DrawInto(dst *image.RGBA) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.live || st.latest.Empty() {
		return false
	}
	w, h := st.latest.Cols(), st.latest.Rows()
	if dst.Rect.Dx() != w || dst.Rect.Dy() != h {
		return false
	}

	data := st.latest.ToBytes()
	rowBytes := w * 4
	for y := 0; y < h; y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+rowBytes], data[y*rowBytes:(y+1)*rowBytes])
	}
	return true
}

func (st *stream) Live() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.live
}

func (st *stream) Stop() {
	st.stopOnce.Do(func() {
		close(st.stop)
		<-st.done

		st.mu.Lock()
		st.live = false
		st.latest.Close()
		st.mu.Unlock()

		if err := st.capture.Close(); err != nil {
			st.logger.Error("Failed to close camera device %d: %v", st.device, err)
		}
		st.logger.Info("Camera device %d released", st.device)
	})
}
