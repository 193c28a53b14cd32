package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ticketgate/internal/domain/model"
	"ticketgate/internal/domain/ports/adapter"
	"ticketgate/internal/infra/logging"
	"ticketgate/internal/infra/metrics"
)

// DefaultFrameInterval is roughly one poll per display frame.
const DefaultFrameInterval = 33 * time.Millisecond

type ScanControllerConfig struct {
	FrameInterval time.Duration
	FacingMode    string
}

// ScanStatus is a point-in-time view of the controller.
type ScanStatus struct {
	State       model.ScanState
	Active      bool
	SessionID   string
	LastOutcome *model.Outcome
}

// ScanController runs one scanning session at a time:
//
//	Idle -> Starting -> Scanning -> Decoding -> Transitioning -> Concluded -> Idle
//
// Frames are polled on a ticker. Cancellation is observed only at the tick;
// once a code is decoded the session runs to its outcome.
type ScanController struct {
	source   adapter.FrameSource
	decoder  adapter.CodeDecoder
	redeem   RedeemUseCase
	sink     adapter.PresentationSink
	interval time.Duration
	facing   string
	log      *zerolog.Logger

	mu      sync.Mutex
	active  bool
	closed  bool
	state   model.ScanState
	session *model.ScanSession
	cancel  context.CancelFunc
	done    chan struct{}
	last    *model.Outcome
}

func NewScanController(
	source adapter.FrameSource,
	decoder adapter.CodeDecoder,
	redeem RedeemUseCase,
	sink adapter.PresentationSink,
	cfg ScanControllerConfig,
	logger *zerolog.Logger,
) *ScanController {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if cfg.FacingMode == "" {
		cfg.FacingMode = adapter.FacingEnvironment
	}
	l := logger.With().Str("component", "ScanController").Logger()
	return &ScanController{
		source:   source,
		decoder:  decoder,
		redeem:   redeem,
		sink:     sink,
		interval: cfg.FrameInterval,
		facing:   cfg.FacingMode,
		log:      &l,
		state:    model.ScanStateIdle,
	}
}

// Start opens the frame source and begins polling. It returns false without
// side effects when a session is already active. A camera failure concludes
// the session with an error outcome and is also returned. Sinks must not call
// Start from Publish.
func (c *ScanController) Start(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.active || c.closed {
		c.mu.Unlock()
		return false, nil
	}
	sess := model.NewScanSession()
	runCtx, cancel := context.WithCancel(logging.WithSessID(context.WithoutCancel(ctx), sess.ID))
	prev := c.done
	done := make(chan struct{})
	c.active = true
	c.state = model.ScanStateStarting
	c.session = sess
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	// The guard clears before the previous terminal event is published;
	// wait for it so sinks never see this session's events first.
	if prev != nil {
		<-prev
	}

	log := logging.With(runCtx, c.log)
	log.Debug().Str("facing", c.facing).Msg("starting capture")

	if err := c.source.Start(ctx, adapter.DeviceRequest{FacingMode: c.facing}); err != nil {
		log.Warn().Err(err).Msg("camera unavailable")
		c.conclude(runCtx, sess, model.Failed(model.MsgCameraError, err))
		close(done)
		return false, err
	}

	c.setState(sess, model.ScanStateScanning)
	c.publish(runCtx, model.Event{SessionID: sess.ID, Kind: model.EventScanning, Message: model.MsgScanning})

	go c.run(runCtx, sess, done)
	return true, nil
}

func (c *ScanController) run(ctx context.Context, sess *model.ScanSession, done chan struct{}) {
	defer close(done)
	log := logging.With(ctx, c.log)

	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scan cancelled")
			c.conclude(ctx, sess, model.Cancelled())
			return
		case <-t.C:
		}
		if ctx.Err() != nil {
			continue
		}

		frame, ok := c.source.NextReadyFrame()
		if !ok {
			metrics.IncFrame("not_ready")
			continue
		}
		text, ok := c.decoder.Decode(frame.Pixels, frame.Width, frame.Height)
		if !ok {
			metrics.IncFrame("no_code")
			continue
		}
		metrics.IncFrame("decoded")

		// polling ends here; the outcome is computed without honoring cancel
		work := context.WithoutCancel(ctx)
		c.conclude(work, sess, c.process(work, sess, text))
		return
	}
}

func (c *ScanController) process(ctx context.Context, sess *model.ScanSession, text string) model.Outcome {
	c.mu.Lock()
	sess.RawDecoded = text
	c.mu.Unlock()
	c.setState(sess, model.ScanStateDecoding)
	c.publish(ctx, model.Event{SessionID: sess.ID, Kind: model.EventProcessing, Message: model.MsgProcessing})

	rec, err := c.redeem.Decode(text)
	if err != nil {
		return model.Failed(model.MsgScanError, err)
	}

	c.mu.Lock()
	sess.Record = rec
	c.mu.Unlock()
	c.setState(sess, model.ScanStateTransitioning)
	return c.redeem.Transition(ctx, rec)
}

// conclude is the single cleanup path: stop capture, clear the guard, then publish.
func (c *ScanController) conclude(ctx context.Context, sess *model.ScanSession, out model.Outcome) {
	c.source.Stop()

	c.mu.Lock()
	sess.State = model.ScanStateConcluded
	sess.Outcome = out
	sess.ConcludedAt = time.Now()
	c.last = &out
	c.active = false
	c.state = model.ScanStateIdle
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	metrics.IncScanSession(string(out.Kind))
	logging.With(ctx, c.log).Info().
		Str("outcome", string(out.Kind)).
		Dur("elapsed", sess.ConcludedAt.Sub(sess.StartedAt)).
		Msg("scan concluded")
	c.publish(context.WithoutCancel(ctx), model.OutcomeEvent(sess.ID, out))
}

func (c *ScanController) publish(ctx context.Context, ev model.Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	c.sink.Publish(ctx, ev)
}

func (c *ScanController) setState(sess *model.ScanSession, s model.ScanState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess.State = s
	if c.session == sess && c.active {
		c.state = s
	}
}

// Cancel ends the current session at its next tick. It never touches the store.
func (c *ScanController) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the current session, if any, has concluded.
func (c *ScanController) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any session, waits for it, and refuses further starts.
func (c *ScanController) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.Cancel()
	return c.Wait(ctx)
}

func (c *ScanController) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *ScanController) State() model.ScanState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastOutcome returns the outcome of the most recently concluded session.
func (c *ScanController) LastOutcome() (model.Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return model.Outcome{}, false
	}
	return *c.last, true
}

func (c *ScanController) Status() ScanStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := ScanStatus{State: c.state, Active: c.active}
	if c.session != nil {
		st.SessionID = c.session.ID
	}
	if c.last != nil {
		out := *c.last
		st.LastOutcome = &out
	}
	return st
}
