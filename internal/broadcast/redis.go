package broadcast

import (
	"context"
	"log"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const redisChannelPrefix = "chat:channel:"

// RedisRelay раздаёт события между инстансами через Redis Pub/Sub.
// Каждый инстанс подписан на все каналы и отдаёт события своему локальному hub.
type RedisRelay struct {
	rdb   *redis.Client
	local Deliverer
}

func NewRedisRelay(rdb *redis.Client, local Deliverer) *RedisRelay {
	return &RedisRelay{rdb: rdb, local: local}
}

func (r *RedisRelay) Publish(ctx context.Context, topic uuid.UUID, payload []byte) error {
	return r.rdb.Publish(ctx, redisChannelPrefix+topic.String(), payload).Err()
}

// Run слушает Redis до отмены ctx
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.rdb.PSubscribe(ctx, redisChannelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			topic, err := uuid.Parse(strings.TrimPrefix(msg.Channel, redisChannelPrefix))
			if err != nil {
				log.Printf("Redis relay: bad channel %q", msg.Channel)
				continue
			}
			r.local.Deliver(topic, []byte(msg.Payload))
		}
	}
}
