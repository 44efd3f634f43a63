// Package events delivers outbox messages to subscribers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tillpoint/internal/core/id"
	"tillpoint/internal/infrastructure/storage/postgres"
	"tillpoint/pkg/logger"
)

// Message is the wire form of a delivered outbox message.
type Message struct {
	ID          id.ID           `json:"id"`
	TenantID    string          `json:"tenant_id"`
	EventType   string          `json:"event_type"`
	AggregateID id.ID           `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newMessage(msg *postgres.OutboxMessage) Message {
	return Message{
		ID:          msg.ID,
		TenantID:    msg.TenantID,
		EventType:   msg.EventType,
		AggregateID: msg.AggregateID,
		Payload:     json.RawMessage(msg.Payload),
		CreatedAt:   msg.CreatedAt,
	}
}

// Channel returns the pub/sub channel of an event type.
func Channel(prefix, eventType string) string {
	return prefix + eventType
}

// RedisHandler publishes outbox messages on Redis pub/sub. A delivered
// message id is remembered for dedupTTL so a redelivery after a failed
// status update is not published twice.
type RedisHandler struct {
	client        redis.UniversalClient
	channelPrefix string
	dedupTTL      time.Duration
}

var _ postgres.OutboxHandler = (*RedisHandler)(nil)

func NewRedisHandler(client redis.UniversalClient, channelPrefix string, dedupTTL time.Duration) *RedisHandler {
	if channelPrefix == "" {
		channelPrefix = "tillpoint."
	}
	if dedupTTL <= 0 {
		dedupTTL = 24 * time.Hour
	}
	return &RedisHandler{client: client, channelPrefix: channelPrefix, dedupTTL: dedupTTL}
}

func (h *RedisHandler) dedupKey(msgID id.ID) string {
	return "tillpoint:outbox:delivered:" + msgID.String()
}

func (h *RedisHandler) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	isNew, err := h.client.SetNX(ctx, h.dedupKey(msg.ID), "1", h.dedupTTL).Result()
	if err != nil {
		logger.Warn(ctx, "outbox dedup check failed, publishing anyway",
			"message_id", msg.ID, "error", err)
	} else if !isNew {
		return nil
	}

	body, err := json.Marshal(newMessage(msg))
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := h.client.Publish(ctx, Channel(h.channelPrefix, msg.EventType), body).Err(); err != nil {
		// Forget the mark so the retry publishes.
		h.client.Del(ctx, h.dedupKey(msg.ID))
		return fmt.Errorf("publish %s: %w", msg.EventType, err)
	}
	return nil
}

// LogHandler only logs delivered messages. It backs deployments without a broker.
type LogHandler struct{}

var _ postgres.OutboxHandler = LogHandler{}

func (LogHandler) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	logger.Info(ctx, "outbox message delivered",
		"message_id", msg.ID,
		"tenant_id", msg.TenantID,
		"event_type", msg.EventType,
		"aggregate_id", msg.AggregateID,
		"payload_bytes", len(msg.Payload),
	)
	return nil
}

// Fanout delivers to every handler in order and stops at the first error.
type Fanout []postgres.OutboxHandler

func (f Fanout) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	for _, h := range f {
		if err := h.Handle(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}
