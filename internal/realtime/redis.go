package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"agenda-eventos/internal/domain"
)

const channelPrefix = "records:"

type redisBroker struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisBroker(client *redis.Client, logger *slog.Logger) Broker {
	return &redisBroker{client: client, logger: logger}
}

func channelFor(c domain.Collection) string {
	return channelPrefix + string(c)
}

func (b *redisBroker) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelFor(ev.Collection), payload).Err()
}

func (b *redisBroker) Subscribe(ctx context.Context, fn func(domain.ChangeEvent), collections ...domain.Collection) (func(), error) {
	channels := make([]string, len(collections))
	for i, c := range collections {
		channels[i] = channelFor(c)
	}

	ps := b.client.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	go func() {
		for msg := range ps.Channel() {
			var ev domain.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn("dropping malformed change event",
					slog.String("channel", msg.Channel), slog.Any("error", err))
				continue
			}
			fn(ev)
		}
	}()

	return func() { _ = ps.Close() }, nil
}
