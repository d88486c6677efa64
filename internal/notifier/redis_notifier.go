package notifier

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/loanflow/loan-engine/internal/domain"
)

// Notifier is the boundary to the notification collaborator. The
// engine's only obligation is to emit the status-changed envelope;
// whatever listens on the channel handles delivery.
type Notifier interface {
	PublishStatusChanged(ctx context.Context, event *domain.StatusChangedEvent) error
	PublishPendingReminder(ctx context.Context, event *domain.PendingReminderEvent) error
}

type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisNotifier(client *redis.Client, channel string, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

func (n *RedisNotifier) PublishStatusChanged(ctx context.Context, event *domain.StatusChangedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return err
	}

	n.logger.Debug("status changed event published",
		zap.String("application_id", event.ApplicationID.String()),
		zap.String("old_status", string(event.OldStatus)),
		zap.String("new_status", string(event.NewStatus)))
	return nil
}

func (n *RedisNotifier) PublishPendingReminder(ctx context.Context, event *domain.PendingReminderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return n.client.Publish(ctx, n.channel+":reminders", payload).Err()
}
