package camera

import (
	"context"
	"errors"
	"image"
)

// ErrNoDevice is returned when no capture device matches the request.
var ErrNoDevice = errors.New("camera: no device available")

// Facing selects which physical camera is preferred.
type Facing int

const (
	FacingEnvironment Facing = iota // rear camera
	FacingUser                      // front camera
)

func (f Facing) String() string {
	if f == FacingUser {
		return "user"
	}
	return "environment"
}

// Constraints describe the requested stream. Streams are video only.
type Constraints struct {
	Facing Facing
	Width  int
	Height int
}

// Source acquires camera streams.
type Source interface {
	// Open negotiates a stream and blocks until it is available or fails.
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is a live camera feed. Frames keep arriving independently of who
// reads them; DrawInto copies whatever frame is current.
type Stream interface {
	// Size returns the native frame size, 0×0 until the first frame arrives.
	Size() (width, height int)
	// DrawInto copies the current frame into dst, whose bounds must equal
	// Size. It reports false when no frame could be copied.
	DrawInto(dst *image.RGBA) bool
	// Live reports whether the stream's tracks are still running.
	Live() bool
	// Stop ends all tracks and releases the device. Later calls are no-ops.
	Stop()
}
