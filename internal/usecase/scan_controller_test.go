//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"ticketgate/internal/domain"
	"ticketgate/internal/domain/model"
	"ticketgate/internal/domain/ports/adapter"
	"ticketgate/internal/domain/ports/repository"
	"ticketgate/internal/usecase"
)

type controllerFixture struct {
	source  *MockFrameSource
	decoder *MockDecoder
	store   *MockTicketStore
	sink    *RecordingSink
	ctrl    *usecase.ScanController
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()
	f := &controllerFixture{
		source:  &MockFrameSource{},
		decoder: &MockDecoder{},
		store:   NewMockTicketStore(),
		sink:    NewRecordingSink(),
	}
	redeem := usecase.NewRedeemUseCase(f.store, newTestCodec(t), usecase.RedeemOptions{AtomicTransition: true}, newTestLogger())
	f.ctrl = usecase.NewScanController(f.source, f.decoder, redeem, f.sink,
		usecase.ScanControllerConfig{FrameInterval: time.Millisecond}, newTestLogger())
	t.Cleanup(func() { _ = f.ctrl.Close(context.Background()) })
	return f
}

func (f *controllerFixture) start(t *testing.T) {
	t.Helper()
	started, err := f.ctrl.Start(context.Background())
	if err != nil || !started {
		t.Fatalf("expected session to start, got started=%v err=%v", started, err)
	}
}

func (f *controllerFixture) waitIdle(t *testing.T) {
	t.Helper()
	if err := f.ctrl.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestScanController_Redemption(t *testing.T) {
	unused := model.PartitionUnused.Path(aliceDK)
	used := model.PartitionUsed.Path(aliceDK)

	t.Run("should approve an unused ticket and move it to used", func(t *testing.T) {
		// --- Arrange ---
		f := newControllerFixture(t)
		f.store.Seed(t, unused, aliceJSON)
		f.source.Push("", "", aliceTicket)

		// --- Act ---
		f.start(t)
		ev := f.sink.WaitTerminal(t)
		f.waitIdle(t)

		// --- Assert ---
		if ev.Kind != model.EventApproved || !ev.Success || ev.Message != model.MsgApproved {
			t.Fatalf("expected approved event, got %+v", ev)
		}
		if ev.Record == nil || ev.Record.Name != "Alice" || ev.Record.Email != "a@x.com" {
			t.Errorf("expected Alice's record on the event, got %+v", ev.Record)
		}
		if _, ok := f.store.Get(unused); ok {
			t.Error("expected unused entry to be gone")
		}
		got, ok := f.store.Get(used)
		if !ok {
			t.Fatal("expected used entry to exist")
		}
		var want, have model.TicketRecord
		_ = want.UnmarshalJSON([]byte(aliceJSON))
		_ = have.UnmarshalJSON(got)
		if !reflect.DeepEqual(want, have) {
			t.Errorf("fields changed across partitions: %+v vs %+v", want, have)
		}
		wantCalls := []string{"read " + unused, "write " + used, "delete " + unused}
		if calls := f.store.CallLog(); !reflect.DeepEqual(calls, wantCalls) {
			t.Errorf("expected calls %v, got %v", wantCalls, calls)
		}
		wantKinds := []model.EventKind{model.EventScanning, model.EventProcessing, model.EventApproved}
		if kinds := f.sink.Kinds(); !reflect.DeepEqual(kinds, wantKinds) {
			t.Errorf("expected events %v, got %v", wantKinds, kinds)
		}
		if f.source.Stops() != 1 {
			t.Errorf("expected exactly one Stop, got %d", f.source.Stops())
		}
		if f.ctrl.Active() || f.ctrl.State() != model.ScanStateIdle {
			t.Errorf("expected idle controller, got active=%v state=%s", f.ctrl.Active(), f.ctrl.State())
		}
		last, ok := f.ctrl.LastOutcome()
		if !ok || last.Kind != model.OutcomeApproved {
			t.Errorf("expected last outcome approved, got %+v", last)
		}
	})

	t.Run("should reject a ticket missing from unused without mutating", func(t *testing.T) {
		f := newControllerFixture(t)
		f.source.Push(aliceTicket)

		f.start(t)
		ev := f.sink.WaitTerminal(t)
		f.waitIdle(t)

		if ev.Kind != model.EventInvalid || ev.Success || ev.Message != model.MsgInvalidOrUsed {
			t.Fatalf("expected invalid event, got %+v", ev)
		}
		if calls := f.store.CallLog(); !reflect.DeepEqual(calls, []string{"read " + unused}) {
			t.Errorf("expected a single read, got %v", calls)
		}
		last, _ := f.ctrl.LastOutcome()
		if !errors.Is(last.Err, domain.ErrTicketNotFound) {
			t.Errorf("expected ErrTicketNotFound, got %v", last.Err)
		}
		if f.source.Stops() != 1 {
			t.Errorf("expected exactly one Stop, got %d", f.source.Stops())
		}
	})

	t.Run("a second scan of a redeemed ticket is rejected", func(t *testing.T) {
		f := newControllerFixture(t)
		f.store.Seed(t, unused, aliceJSON)

		f.source.Push(aliceTicket)
		f.start(t)
		if ev := f.sink.WaitTerminal(t); ev.Kind != model.EventApproved {
			t.Fatalf("first scan: expected approved, got %s", ev.Kind)
		}
		f.waitIdle(t)

		f.source.Push(aliceTicket)
		f.start(t)
		if ev := f.sink.WaitTerminal(t); ev.Kind != model.EventInvalid {
			t.Fatalf("second scan: expected invalid, got %s", ev.Kind)
		}
		f.waitIdle(t)
		if f.source.Stops() != 2 || f.source.Starts() != 2 {
			t.Errorf("expected one Stop per Start, got starts=%d stops=%d", f.source.Starts(), f.source.Stops())
		}
	})

	t.Run("should report a scan error and never touch the store on a bad payload", func(t *testing.T) {
		for _, payload := range []string{"garbage", "U2FsdGVkX1/iOBa6+tM+2SkCYVT1jgch3ykT+IzNt6w="} {
			f := newControllerFixture(t)
			f.store.Seed(t, unused, aliceJSON)
			f.source.Push(payload)

			f.start(t)
			ev := f.sink.WaitTerminal(t)
			f.waitIdle(t)

			if ev.Kind != model.EventError || ev.Message != model.MsgScanError {
				t.Fatalf("%q: expected scan error, got %+v", payload, ev)
			}
			if calls := f.store.CallLog(); len(calls) != 0 {
				t.Errorf("%q: expected no store calls, got %v", payload, calls)
			}
			last, _ := f.ctrl.LastOutcome()
			if !errors.Is(last.Err, domain.ErrPayloadInvalid) {
				t.Errorf("%q: expected ErrPayloadInvalid, got %v", payload, last.Err)
			}
			if f.source.Stops() != 1 {
				t.Errorf("expected exactly one Stop, got %d", f.source.Stops())
			}
		}
	})

	t.Run("store failures surface as scan errors", func(t *testing.T) {
		boom := fmt.Errorf("%w: connection reset", domain.ErrStore)
		cases := []struct {
			name          string
			arrange       func(s *MockTicketStore)
			wantUnused    bool
			wantUsed      bool
			wantCallCount int
		}{
			{
				name:          "read",
				arrange: func(s *MockTicketStore) {
					s.ReadFunc = func(context.Context, string) (*repository.Snapshot, error) { return nil, boom }
				},
				wantUnused:    true,
				wantCallCount: 1,
			},
			{
				name:          "write",
				arrange: func(s *MockTicketStore) {
					s.WriteFunc = func(context.Context, string, []byte) error { return boom }
				},
				wantUnused:    true,
				wantCallCount: 2,
			},
			{
				name:          "delete",
				arrange: func(s *MockTicketStore) {
					s.DeleteFunc = func(context.Context, string) error { return boom }
				},
				wantUnused:    true,
				wantUsed:      true,
				wantCallCount: 3,
			},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				f := newControllerFixture(t)
				f.store.Seed(t, unused, aliceJSON)
				tc.arrange(f.store)
				f.source.Push(aliceTicket)

				f.start(t)
				ev := f.sink.WaitTerminal(t)
				f.waitIdle(t)

				if ev.Kind != model.EventError || ev.Message != model.MsgScanError {
					t.Fatalf("expected scan error, got %+v", ev)
				}
				if n := len(f.store.CallLog()); n != tc.wantCallCount {
					t.Errorf("expected %d store calls, got %d", tc.wantCallCount, n)
				}
				if _, ok := f.store.Get(unused); ok != tc.wantUnused {
					t.Errorf("unused present=%v, want %v", ok, tc.wantUnused)
				}
				if _, ok := f.store.Get(used); ok != tc.wantUsed {
					t.Errorf("used present=%v, want %v", ok, tc.wantUsed)
				}
				if f.source.Stops() != 1 {
					t.Errorf("expected exactly one Stop, got %d", f.source.Stops())
				}
				if f.ctrl.Active() {
					t.Error("expected guard cleared")
				}
			})
		}
	})

	t.Run("only the first decode in a session is acted upon", func(t *testing.T) {
		f := newControllerFixture(t)
		f.store.Seed(t, unused, aliceJSON)
		f.source.Endless = true
		f.source.Push(aliceTicket, aliceTicket)

		f.start(t)
		ev := f.sink.WaitTerminal(t)
		f.waitIdle(t)
		time.Sleep(10 * time.Millisecond)

		if ev.Kind != model.EventApproved {
			t.Fatalf("expected approved, got %s", ev.Kind)
		}
		if n := f.decoder.Decodes(); n != 1 {
			t.Errorf("expected one decode, got %d", n)
		}
		if kinds := f.sink.Kinds(); len(kinds) != 3 {
			t.Errorf("expected exactly one session's events, got %v", kinds)
		}
	})
}

func TestScanController_Start(t *testing.T) {
	t.Run("should be a no-op while a session is active", func(t *testing.T) {
		f := newControllerFixture(t)
		f.start(t)

		started, err := f.ctrl.Start(context.Background())

		if started || err != nil {
			t.Fatalf("expected no-op start, got started=%v err=%v", started, err)
		}
		if f.source.Starts() != 1 {
			t.Errorf("expected one capture stream, got %d", f.source.Starts())
		}
		if !f.ctrl.Active() {
			t.Error("expected guard to stay set")
		}
	})

	t.Run("should request the rear camera by default", func(t *testing.T) {
		f := newControllerFixture(t)
		f.start(t)
		if f.source.LastReq.FacingMode != adapter.FacingEnvironment {
			t.Errorf("expected facing mode %q, got %q", adapter.FacingEnvironment, f.source.LastReq.FacingMode)
		}
	})

	t.Run("camera failure never starts the loop and leaves the guard clear", func(t *testing.T) {
		f := newControllerFixture(t)
		f.source.StartFunc = func(context.Context, adapter.DeviceRequest) error {
			return fmt.Errorf("%w: permission denied", domain.ErrCameraUnavailable)
		}

		started, err := f.ctrl.Start(context.Background())
		ev := f.sink.WaitTerminal(t)

		if started || !errors.Is(err, domain.ErrCameraUnavailable) {
			t.Fatalf("expected camera error, got started=%v err=%v", started, err)
		}
		if ev.Kind != model.EventError || ev.Message != model.MsgCameraError || ev.Success {
			t.Errorf("expected camera error event, got %+v", ev)
		}
		if f.ctrl.Active() {
			t.Error("expected guard to be clear")
		}
		time.Sleep(5 * time.Millisecond)
		if f.source.PollCalls != 0 {
			t.Errorf("expected no frame polls, got %d", f.source.PollCalls)
		}
		if f.source.Stops() != 1 {
			t.Errorf("expected exactly one Stop, got %d", f.source.Stops())
		}
		if kinds := f.sink.Kinds(); !reflect.DeepEqual(kinds, []model.EventKind{model.EventError}) {
			t.Errorf("expected a single error event, got %v", kinds)
		}

		// a fresh start is possible afterwards
		f.source.StartFunc = nil
		f.start(t)
	})

	t.Run("a new session's events follow the previous terminal event", func(t *testing.T) {
		// --- Arrange ---
		var (
			mu    sync.Mutex
			kinds []model.EventKind
		)
		entered := make(chan struct{})
		release := make(chan struct{})
		var once sync.Once
		sink := adapter.SinkFunc(func(_ context.Context, ev model.Event) {
			if ev.Kind.Terminal() {
				once.Do(func() { close(entered) })
				<-release
			}
			mu.Lock()
			kinds = append(kinds, ev.Kind)
			mu.Unlock()
		})
		source := &MockFrameSource{}
		redeem := usecase.NewRedeemUseCase(NewMockTicketStore(), newTestCodec(t), usecase.RedeemOptions{}, newTestLogger())
		ctrl := usecase.NewScanController(source, &MockDecoder{}, redeem, sink,
			usecase.ScanControllerConfig{FrameInterval: time.Millisecond}, newTestLogger())

		if started, err := ctrl.Start(context.Background()); !started || err != nil {
			t.Fatalf("expected first session to start, got started=%v err=%v", started, err)
		}

		// --- Act ---
		ctrl.Cancel()
		<-entered // guard is already clear, terminal publish is in flight
		restarted := make(chan bool, 1)
		go func() {
			started, _ := ctrl.Start(context.Background())
			restarted <- started
		}()

		select {
		case <-restarted:
			t.Fatal("expected Start to wait for the previous terminal event")
		case <-time.After(20 * time.Millisecond):
		}
		close(release)

		// --- Assert ---
		select {
		case started := <-restarted:
			if !started {
				t.Fatal("expected second session to start")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("second Start never returned")
		}
		ctrl.Cancel()
		_ = ctrl.Close(context.Background())

		mu.Lock()
		defer mu.Unlock()
		want := []model.EventKind{model.EventScanning, model.EventCancelled, model.EventScanning, model.EventCancelled}
		if !reflect.DeepEqual(kinds, want) {
			t.Errorf("expected events %v, got %v", want, kinds)
		}
	})

	t.Run("closed controller refuses to start", func(t *testing.T) {
		f := newControllerFixture(t)
		_ = f.ctrl.Close(context.Background())
		started, err := f.ctrl.Start(context.Background())
		if started || err != nil {
			t.Fatalf("expected refusal, got started=%v err=%v", started, err)
		}
		if f.source.Starts() != 0 {
			t.Error("expected no capture stream")
		}
	})
}

func TestScanController_Cancel(t *testing.T) {
	t.Run("should conclude cancelled without touching the store", func(t *testing.T) {
		f := newControllerFixture(t)
		f.store.Seed(t, model.PartitionUnused.Path(aliceDK), aliceJSON)
		f.start(t)

		f.ctrl.Cancel()
		ev := f.sink.WaitTerminal(t)
		f.waitIdle(t)

		if ev.Kind != model.EventCancelled || ev.Success {
			t.Fatalf("expected cancelled event, got %+v", ev)
		}
		if calls := f.store.CallLog(); len(calls) != 0 {
			t.Errorf("expected no store calls, got %v", calls)
		}
		if f.source.Stops() != 1 {
			t.Errorf("expected exactly one Stop, got %d", f.source.Stops())
		}
		if f.ctrl.Active() {
			t.Error("expected guard cleared")
		}
		st := f.ctrl.Status()
		if st.LastOutcome == nil || st.LastOutcome.Kind != model.OutcomeCancelled {
			t.Errorf("expected cancelled last outcome, got %+v", st.LastOutcome)
		}
	})

	t.Run("cancel when idle is harmless", func(t *testing.T) {
		f := newControllerFixture(t)
		f.ctrl.Cancel()
		if f.source.Stops() != 0 {
			t.Errorf("expected no Stop, got %d", f.source.Stops())
		}
		if _, ok := f.ctrl.LastOutcome(); ok {
			t.Error("expected no outcome yet")
		}
	})

	t.Run("cancel after decode lets redemption finish", func(t *testing.T) {
		f := newControllerFixture(t)
		unused := model.PartitionUnused.Path(aliceDK)
		f.store.Seed(t, unused, aliceJSON)
		reading := make(chan struct{})
		release := make(chan struct{})
		f.store.ReadFunc = func(ctx context.Context, path string) (*repository.Snapshot, error) {
			close(reading)
			<-release
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return &repository.Snapshot{Path: path, Value: []byte(aliceJSON)}, nil
		}
		f.source.Push(aliceTicket)

		f.start(t)
		<-reading
		f.ctrl.Cancel()
		close(release)
		ev := f.sink.WaitTerminal(t)

		if ev.Kind != model.EventApproved {
			t.Fatalf("expected approved, got %s", ev.Kind)
		}
		if _, ok := f.store.Get(model.PartitionUsed.Path(aliceDK)); !ok {
			t.Error("expected used entry to be written")
		}
	})
}
