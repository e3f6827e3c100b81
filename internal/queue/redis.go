package queue

import (
	"context"
	"errors"
	"strings"

	"github.com/emrgen/digidoc/internal/model"
	"github.com/redis/go-redis/v9"
)

var _ Publisher = (*RedisPublisher)(nil)

type RedisConfig struct {
	Addr     string
	Password string
	Stream   string
	MaxLen   int64
}

// RedisPublisher appends events to a capped redis stream.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisPublisher(cfg RedisConfig) (*RedisPublisher, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = DefaultTopic
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}

	return &RedisPublisher{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream: stream,
		maxLen: maxLen,
	}, nil
}

func (r *RedisPublisher) Publish(ctx context.Context, events ...*model.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, event := range events {
		payload, err := encode(event)
		if err != nil {
			return err
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: r.stream,
			MaxLen: r.maxLen,
			Approx: true,
			Values: map[string]interface{}{
				"event_id":    event.ID,
				"document_id": event.DocumentID,
				"action":      string(event.Action),
				"payload":     string(payload),
			},
		})
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisPublisher) Close() error {
	return r.client.Close()
}
