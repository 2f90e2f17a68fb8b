package kafkax

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Envelope headers carried on every message this module produces.
const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
)

func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// NewMessage keys the message by aggregate so per-appointment order holds
// within a partition, and attaches the envelope and trace headers.
func NewMessage(ctx context.Context, key, eventID, eventType string, payload []byte) kafka.Message {
	headers := []kafka.Header{
		{Key: HeaderEventID, Value: []byte(eventID)},
		{Key: HeaderEventType, Value: []byte(eventType)},
	}
	return kafka.Message{
		Key:     []byte(key),
		Value:   payload,
		Headers: InjectTraceHeaders(ctx, headers),
	}
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
