package service

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RoomChannelPrefix prefixes the pub/sub channel of each session room.
const RoomChannelPrefix = "live:room:"

// RedisRelay publishes room broadcasts on Redis so every gateway instance delivers them
// to its own members.
type RedisRelay struct {
	rdb redis.UniversalClient
	log *zap.Logger
}

func NewRedisRelay(rdb redis.UniversalClient, log *zap.Logger) *RedisRelay {
	return &RedisRelay{rdb: rdb, log: log}
}

func (r *RedisRelay) Publish(ctx context.Context, sessionID string, payload []byte) error {
	return r.rdb.Publish(ctx, RoomChannelPrefix+sessionID, payload).Err()
}

// Start subscribes to all room channels and hands each message to deliver until ctx is done.
// It returns once the subscription is confirmed by the server.
func (r *RedisRelay) Start(ctx context.Context, deliver func(sessionID string, payload []byte)) error {
	sub := r.rdb.PSubscribe(ctx, RoomChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				sessionID := strings.TrimPrefix(msg.Channel, RoomChannelPrefix)
				deliver(sessionID, []byte(msg.Payload))
			}
		}
	}()
	r.log.Info("gateway relay subscribed", zap.String("pattern", RoomChannelPrefix+"*"))
	return nil
}
