// Package notify provisions notification topics and publishes run
// summaries to them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stackcheck-labs/stackcheck-go/internal/platform/env"
)

// Notifier is the external notification service seen by the core.
// EnsureTopic is idempotent and returns the topic's opaque handle.
type Notifier interface {
	EnsureTopic(ctx context.Context, name, subscriber string) (string, error)
	Publish(ctx context.Context, topic, subject, message string) error
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

func ConfigFromEnv() (Config, error) {
	db, err := env.Int("STACKCHECK_REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Addr:     env.String("STACKCHECK_REDIS_ADDR", "localhost:6379"),
		Password: env.String("STACKCHECK_REDIS_PASSWORD", ""),
		DB:       db,
	}, nil
}

// Redis backs topics with pub/sub channels and keeps the subscriber
// set alongside for inspection.
type Redis struct {
	client *redis.Client
}

func NewRedis(cfg Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// NewRedisWithClient wraps an existing client. Used by tests and by
// callers that share one connection pool.
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) Client() *redis.Client {
	if r == nil {
		return nil
	}
	return r.client
}

func (r *Redis) EnsureTopic(ctx context.Context, name, subscriber string) (string, error) {
	if r == nil || r.client == nil {
		return "", errors.New("notifier not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("topic name is required")
	}

	handle := "topic:" + name
	if subscriber = strings.TrimSpace(subscriber); subscriber != "" {
		if err := r.client.SAdd(ctx, handle+":subscribers", subscriber).Err(); err != nil {
			return "", fmt.Errorf("subscribe %s to %s: %w", subscriber, handle, err)
		}
	}
	return handle, nil
}

func (r *Redis) Publish(ctx context.Context, topic, subject, message string) error {
	if r == nil || r.client == nil {
		return errors.New("notifier not initialized")
	}
	if strings.TrimSpace(topic) == "" {
		return errors.New("topic is required")
	}
	payload := subject + "\n\n" + message
	if err := r.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}
