package notify

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/osdajiba/autotrade/internal/execution"
	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const defaultPublishTimeout = 2 * time.Second

// Publisher is the subset of *redis.Client used by Redis.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Redis publishes every outcome as JSON on a pub/sub channel.
type Redis struct {
	client  Publisher
	channel string
	timeout time.Duration
}

func NewRedis(client Publisher, channel string, timeout time.Duration) *Redis {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Redis{client: client, channel: channel, timeout: timeout}
}

func (r *Redis) Notify(title, message string) {
	if err := r.publish(Message{Title: title, Message: message}); err != nil {
		logs.Errorf("publish notification, channel: %s, err: %+v", r.channel, err)
	}
}

func (r *Redis) NotifyOutcome(out execution.Outcome) {
	if err := r.publish(out); err != nil {
		logs.Errorf("publish outcome, channel: %s, request: %s, err: %+v", r.channel, out.RequestID, err)
	}
}

func (r *Redis) publish(v any) error {
	payload, err := sonic.ConfigFastest.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return errors.Wrap(err, "publish")
	}
	return nil
}
