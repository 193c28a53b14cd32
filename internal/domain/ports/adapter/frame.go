package adapter

import (
	"context"
	"time"
)

// Facing modes for DeviceRequest.
const (
	FacingEnvironment = "environment" // rear camera
	FacingUser        = "user"
)

// DeviceRequest describes the capture capability being requested.
type DeviceRequest struct {
	FacingMode string
}

// Frame is one captured image as raw RGBA bytes, 4 bytes per pixel, row major.
type Frame struct {
	Pixels     []byte
	Width      int
	Height     int
	Seq        uint64
	CapturedAt time.Time
}

// FrameSource wraps a camera-like input device.
type FrameSource interface {
	// Start acquires the device and begins a capture stream.
	// It fails with domain.ErrCameraUnavailable when access is denied or no device exists.
	Start(ctx context.Context, req DeviceRequest) error
	// NextReadyFrame is a non-blocking poll. It returns a frame only when the
	// device has buffered enough data for a reliable decode.
	NextReadyFrame() (Frame, bool)
	// Stop releases the device. Safe to call when not started.
	Stop()
}

// CodeDecoder finds a machine-readable code in a pixel buffer.
// Implementations are pure: no state across calls, no panics on noise.
type CodeDecoder interface {
	Decode(pixels []byte, width, height int) (string, bool)
}
