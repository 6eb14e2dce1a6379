package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/darwin/pkg/config"

	"github.com/redis/go-redis/v9"
)

// RedisEmitter publishes events as JSON on a Redis pub/sub channel, so
// that an orchestrator in another process can advance the pipeline.
type RedisEmitter struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisEmitter connects to Redis and verifies the connection.
func NewRedisEmitter(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*RedisEmitter, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}
	return NewRedisEmitterWithClient(client, cfg.Channel, logger), nil
}

// NewRedisEmitterWithClient wraps an existing client.
func NewRedisEmitterWithClient(client *redis.Client, channel string, logger *slog.Logger) *RedisEmitter {
	if channel == "" {
		channel = config.DefaultRedisChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisEmitter{
		client:  client,
		channel: channel,
		logger:  logger.With("component", "events.redis", "channel", channel),
	}
}

// Emit publishes evt.
func (r *RedisEmitter) Emit(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", evt.Name, err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", evt.Name, err)
	}
	return nil
}

// Listen subscribes to the channel and forwards every event to sink until
// ctx is cancelled. Undecodable messages are logged and skipped.
func (r *RedisEmitter) Listen(ctx context.Context, sink Emitter) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	r.logger.InfoContext(ctx, "listening for events")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			evt, err := DecodeMessage([]byte(msg.Payload))
			if err != nil {
				r.logger.WarnContext(ctx, "skipping undecodable event", "error", err)
				continue
			}
			if err := sink.Emit(ctx, evt); err != nil {
				r.logger.ErrorContext(ctx, "failed to forward event", "event", evt.Name, "error", err)
			}
		}
	}
}

// Close closes the Redis client.
func (r *RedisEmitter) Close() error {
	return r.client.Close()
}

// DecodeMessage decodes a published event.
func DecodeMessage(payload []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if evt.Name == "" {
		return Event{}, fmt.Errorf("event has no name")
	}
	return evt, nil
}
