//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ticketgate/internal/domain/model"
	"ticketgate/internal/domain/ports/adapter"
	"ticketgate/internal/domain/ports/repository"
	"ticketgate/internal/infra/memory"
	"ticketgate/internal/infra/security"
)

const (
	testSecret = "Made_By_BM"

	// Alice / ABCDEF123456 / 5551234 / a@x.com, encrypted with testSecret.
	aliceTicket = "U2FsdGVkX1/v00HwSH0NfWFDclWJOLVTWETdp4taIWnRr5GS5AVzBChe4M5KXnIDPm6hZ5CFFwTU6hIlXDvjFtSRCd1QTI2Vidmf7jbySpVyVSgEulCpZUCvufWheUns"
	aliceDK     = "Alice's ticket ID 123456"
	aliceJSON   = `{"name":"Alice","key":"ABCDEF123456","number":"5551234","email":"a@x.com"}`
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestCodec(t *testing.T) *security.PayloadCodec {
	t.Helper()
	c, err := security.NewOpenSSLCipher(testSecret)
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	return security.NewPayloadCodec(c)
}

// ---- Mock FrameSource ----

// MockFrameSource hands out queued frames, one per poll.
type MockFrameSource struct {
	mu     sync.Mutex
	frames []adapter.Frame
	// Endless repeats the last frame instead of running dry.
	Endless bool

	StartFunc  func(ctx context.Context, req adapter.DeviceRequest) error
	StartCalls int
	StopCalls  int
	PollCalls  int
	LastReq    adapter.DeviceRequest
}

var _ adapter.FrameSource = (*MockFrameSource)(nil)

func (m *MockFrameSource) Start(ctx context.Context, req adapter.DeviceRequest) error {
	m.mu.Lock()
	m.StartCalls++
	m.LastReq = req
	fn := m.StartFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return nil
}

func (m *MockFrameSource) NextReadyFrame() (adapter.Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PollCalls++
	if len(m.frames) == 0 {
		return adapter.Frame{}, false
	}
	f := m.frames[0]
	if len(m.frames) > 1 || !m.Endless {
		m.frames = m.frames[1:]
	}
	return f, true
}

func (m *MockFrameSource) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StopCalls++
}

func (m *MockFrameSource) Push(texts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range texts {
		m.frames = append(m.frames, textFrame(t))
	}
}

func (m *MockFrameSource) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.StopCalls
}

func (m *MockFrameSource) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.StartCalls
}

// textFrame smuggles a code's text through the pixel buffer for MockDecoder.
// An empty text is a frame with no code in it.
func textFrame(text string) adapter.Frame {
	return adapter.Frame{Pixels: []byte("QR:" + text), Width: 1, Height: 1}
}

// ---- Mock CodeDecoder ----

type MockDecoder struct {
	mu    sync.Mutex
	Found []string
}

var _ adapter.CodeDecoder = (*MockDecoder)(nil)

func (d *MockDecoder) Decode(pixels []byte, width, height int) (string, bool) {
	text, ok := strings.CutPrefix(string(pixels), "QR:")
	if !ok || text == "" {
		return "", false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Found = append(d.Found, text)
	return text, true
}

func (d *MockDecoder) Decodes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Found)
}

// ---- Mock TicketStore ----

// MockTicketStore wraps the memory store, records every call, and lets tests inject failures.
type MockTicketStore struct {
	inner *memory.TicketStore

	mu    sync.Mutex
	Calls []string

	ReadFunc   func(ctx context.Context, path string) (*repository.Snapshot, error)
	WriteFunc  func(ctx context.Context, path string, value []byte) error
	DeleteFunc func(ctx context.Context, path string) error
}

var _ repository.TicketStore = (*MockTicketStore)(nil)

func NewMockTicketStore() *MockTicketStore {
	return &MockTicketStore{inner: memory.NewTicketStore()}
}

func (m *MockTicketStore) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

func (m *MockTicketStore) CallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}

func (m *MockTicketStore) ReadIfExists(ctx context.Context, path string) (*repository.Snapshot, error) {
	m.record("read " + path)
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, path)
	}
	return m.inner.ReadIfExists(ctx, path)
}

func (m *MockTicketStore) Write(ctx context.Context, path string, value []byte) error {
	m.record("write " + path)
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, path, value)
	}
	return m.inner.Write(ctx, path, value)
}

func (m *MockTicketStore) Delete(ctx context.Context, path string) error {
	m.record("delete " + path)
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, path)
	}
	return m.inner.Delete(ctx, path)
}

// Seed writes directly, bypassing the call log.
func (m *MockTicketStore) Seed(t *testing.T, path, value string) {
	t.Helper()
	if err := m.inner.Write(context.Background(), path, []byte(value)); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func (m *MockTicketStore) Get(path string) ([]byte, bool) {
	snap, _ := m.inner.ReadIfExists(context.Background(), path)
	if snap == nil {
		return nil, false
	}
	return snap.Value, true
}

// ---- Recording PresentationSink ----

type RecordingSink struct {
	mu       sync.Mutex
	Events   []model.Event
	terminal chan model.Event
}

var _ adapter.PresentationSink = (*RecordingSink)(nil)

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{terminal: make(chan model.Event, 16)}
}

func (s *RecordingSink) Publish(_ context.Context, ev model.Event) {
	s.mu.Lock()
	s.Events = append(s.Events, ev)
	s.mu.Unlock()
	if ev.Kind.Terminal() {
		s.terminal <- ev
	}
}

// WaitTerminal blocks until the next terminal event or fails the test.
func (s *RecordingSink) WaitTerminal(t *testing.T) model.Event {
	t.Helper()
	select {
	case ev := <-s.terminal:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a terminal event")
		return model.Event{}
	}
}

func (s *RecordingSink) Kinds() []model.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.EventKind, len(s.Events))
	for i, ev := range s.Events {
		out[i] = ev.Kind
	}
	return out
}
