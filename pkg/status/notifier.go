package status

import (
	"context"
	"encoding/json"

	"sdm-platform-be/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const moduleName = "status"

// Notifier delivers status events. Delivery is best effort: failures are logged.
type Notifier interface {
	Send(ctx context.Context, threadID string, event Event)
}

// RedisNotifier publishes events to status_<thread_id>.
type RedisNotifier struct {
	client *redis.Client
	logger logger.ILogger
}

func NewRedisNotifier(client *redis.Client, log logger.ILogger) *RedisNotifier {
	return &RedisNotifier{client: client, logger: log}
}

func (n *RedisNotifier) Send(ctx context.Context, threadID string, event Event) {
	if threadID == "" {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn(moduleName, "Failed to encode status event", map[string]interface{}{
			"type":  event.Type,
			"error": err.Error(),
		})
		return
	}
	if err := n.client.Publish(ctx, Channel(threadID), payload).Err(); err != nil {
		n.logger.Warn(moduleName, "Failed to publish status event", map[string]interface{}{
			"thread_id": threadID,
			"type":      event.Type,
			"error":     err.Error(),
		})
	}
}

// NopNotifier drops every event. Used when Redis is not configured.
type NopNotifier struct{}

func (NopNotifier) Send(context.Context, string, Event) {}
