package camera

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"ticketgate/internal/domain"
	"ticketgate/internal/domain/ports/adapter"
)

var _ adapter.FrameSource = (*PushSource)(nil)

// PushSource is fed frames by a remote client (a phone or browser camera
// uploading over HTTP). Only the latest frame is kept; older ones are dropped.
type PushSource struct {
	log *zerolog.Logger

	mu     sync.Mutex
	closed bool
	active bool
	facing string
	latest *adapter.Frame
	seq    uint64
}

func NewPushSource(logger *zerolog.Logger) *PushSource {
	l := logger.With().Str("component", "PushSource").Logger()
	return &PushSource{log: &l, facing: adapter.FacingEnvironment}
}

func (s *PushSource) Start(ctx context.Context, req adapter.DeviceRequest) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCameraUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: push source closed", domain.ErrCameraUnavailable)
	}
	s.active = true
	s.latest = nil
	if req.FacingMode != "" {
		s.facing = req.FacingMode
	}
	s.log.Debug().Str("facing", s.facing).Msg("capture stream opened")
	return nil
}

func (s *PushSource) NextReadyFrame() (adapter.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || s.latest == nil {
		return adapter.Frame{}, false
	}
	f := *s.latest
	s.latest = nil
	return f, true
}

func (s *PushSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	s.latest = nil
	s.log.Debug().Msg("capture stream closed")
}

// Submit replaces the pending frame. It fails with domain.ErrNoActiveStream
// when no session is capturing.
func (s *PushSource) Submit(f adapter.Frame) error {
	if f.Width <= 0 || f.Height <= 0 || len(f.Pixels) < 4*f.Width*f.Height {
		return fmt.Errorf("%w: frame buffer does not match %dx%d", domain.ErrInvalidArgument, f.Width, f.Height)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return domain.ErrNoActiveStream
	}
	s.seq++
	f.Seq = s.seq
	s.latest = &f
	return nil
}

// SubmitImage decodes an uploaded JPEG or PNG and submits it.
func (s *PushSource) SubmitImage(b []byte) error {
	if !s.Active() {
		return domain.ErrNoActiveStream
	}
	f, err := DecodeImage(b)
	if err != nil {
		return err
	}
	return s.Submit(f)
}

// Active reports whether a capture stream is open.
func (s *PushSource) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// FacingMode is the camera preference requested by the current session.
func (s *PushSource) FacingMode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.facing
}

// Close disables the source; later starts fail with domain.ErrCameraUnavailable.
func (s *PushSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.active = false
	s.latest = nil
}
