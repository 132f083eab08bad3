package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/b3hniya/tenderd-fms-sub000/internal/domain"
)

// Channels the live broadcast fans out on. The websocket feed and the
// dashboard subscribe to these.
const (
	ChannelTelemetry = "fleet:telemetry"
	ChannelStatus    = "fleet:status"
)

// Broadcaster is the optional live channel; absence is tolerated, the
// handler is simply not registered.
type Broadcaster interface {
	Emit(ctx context.Context, channel string, payload []byte) error
}

// BroadcastHandler pushes every domain event onto the live channel:
// telemetry events on fleet:telemetry, connectivity transitions on
// fleet:status.
type BroadcastHandler struct {
	broadcaster Broadcaster
}

func NewBroadcastHandler(b Broadcaster) *BroadcastHandler {
	return &BroadcastHandler{broadcaster: b}
}

func (h *BroadcastHandler) Name() string { return "broadcast" }

func (h *BroadcastHandler) Handle(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(envelope{Event: event.EventName(), Data: event})
	if err != nil {
		return fmt.Errorf("marshal broadcast payload: %w", err)
	}

	channel := ChannelStatus
	if event.EventName() == domain.EventTelemetryReceived {
		channel = ChannelTelemetry
	}
	return h.broadcaster.Emit(ctx, channel, payload)
}

type envelope struct {
	Event string       `json:"event"`
	Data  domain.Event `json:"data"`
}
