package events

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/b3hniya/tenderd-fms-sub000/internal/domain"
)

type recordingHandler struct {
	name   string
	events []domain.Event
	err    error
	panics bool
}

func (h *recordingHandler) Name() string { return h.name }

func (h *recordingHandler) Handle(ctx context.Context, event domain.Event) error {
	if h.panics {
		panic("handler exploded")
	}
	h.events = append(h.events, event)
	return h.err
}

func TestPublishFansOutToAllHandlers(t *testing.T) {
	a := &recordingHandler{name: "a"}
	b := &recordingHandler{name: "b"}
	bus := NewBus(zap.NewNop(), a, b)

	bus.Publish(context.Background(), domain.VehicleOfflineEvent{VehicleID: "v1"})

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("expected both handlers invoked, got %d and %d", len(a.events), len(b.events))
	}
}

func TestHandlerErrorDoesNotBlockOthers(t *testing.T) {
	failing := &recordingHandler{name: "failing", err: errors.New("broker down")}
	ok := &recordingHandler{name: "ok"}
	bus := NewBus(zap.NewNop(), failing, ok)

	bus.Publish(context.Background(), domain.VehicleOfflineEvent{VehicleID: "v1"})

	if len(ok.events) != 1 {
		t.Fatalf("healthy handler skipped after sibling failure")
	}
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	panicking := &recordingHandler{name: "panicking", panics: true}
	ok := &recordingHandler{name: "ok"}
	bus := NewBus(zap.NewNop(), panicking, ok)

	bus.Publish(context.Background(), domain.VehicleReconnectedEvent{VehicleID: "v1"})

	if len(ok.events) != 1 {
		t.Fatalf("healthy handler skipped after sibling panic")
	}
}

func TestBusWithNoHandlers(t *testing.T) {
	bus := NewBus(zap.NewNop())
	bus.Publish(context.Background(), domain.VehicleOfflineEvent{VehicleID: "v1"})
}

type fakeBroadcaster struct {
	channels []string
	payloads [][]byte
}

func (f *fakeBroadcaster) Emit(ctx context.Context, channel string, payload []byte) error {
	f.channels = append(f.channels, channel)
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestBroadcastHandlerRoutesByEvent(t *testing.T) {
	fb := &fakeBroadcaster{}
	h := NewBroadcastHandler(fb)
	ctx := context.Background()

	rec := &domain.TelemetryRecord{VehicleID: "v1"}
	if err := h.Handle(ctx, domain.NewTelemetryReceivedEvent(rec)); err != nil {
		t.Fatal(err)
	}
	if err := h.Handle(ctx, domain.VehicleOfflineEvent{VehicleID: "v1"}); err != nil {
		t.Fatal(err)
	}

	if fb.channels[0] != ChannelTelemetry {
		t.Fatalf("telemetry event on %q, want %q", fb.channels[0], ChannelTelemetry)
	}
	if fb.channels[1] != ChannelStatus {
		t.Fatalf("status event on %q, want %q", fb.channels[1], ChannelStatus)
	}
}
