package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/b3hniya/tenderd-fms-sub000/internal/domain"
)

// AnalyticsHandler ships domain events to the analytics pipeline over
// Kafka. Delivery is best-effort like every bus handler; the ingestion
// path never waits on a broker retry.
type AnalyticsHandler struct {
	writer *kafka.Writer
}

func NewAnalyticsHandler(brokers []string, topic string) *AnalyticsHandler {
	return &AnalyticsHandler{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

func (h *AnalyticsHandler) Name() string { return "analytics" }

func (h *AnalyticsHandler) Handle(ctx context.Context, event domain.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal analytics event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.EventName()),
		Value: value,
	}
	if err := h.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write analytics event: %w", err)
	}
	return nil
}

func (h *AnalyticsHandler) Close() error {
	return h.writer.Close()
}
