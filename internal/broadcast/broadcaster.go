// Package broadcast доставляет события подписчикам каналов в реальном времени.
// Доставка best-effort: не больше одной попытки за раз, ограниченное число повторов.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

var ErrDegraded = errors.New("broadcast degraded")

// Publisher отправляет payload всем подписчикам топика (топик = id канала)
type Publisher interface {
	Publish(ctx context.Context, topic uuid.UUID, payload []byte) error
}

// Deliverer локальная раздача уже полученного события (websocket hub)
type Deliverer interface {
	Deliver(topic uuid.UUID, payload []byte)
}

type EventType string

const (
	EventMessageCreated EventType = "chat:recv"
	EventMessageDeleted EventType = "chat:delete"
)

// Event кадр, который получают подписчики
type Event struct {
	Type      EventType       `json:"type"`
	ChannelID uuid.UUID       `json:"channel_id"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

func EncodeEvent(eventType EventType, channelID uuid.UUID, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{
		Type:      eventType,
		ChannelID: channelID,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	})
}

// RetryPolicy параметры повторов: задержка удваивается от BaseDelay до MaxDelay,
// все попытки укладываются в Budget.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Budget    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		BaseDelay: time.Second,
		MaxDelay:  10 * time.Second,
		Budget:    30 * time.Second,
	}
}

// Delay задержка перед повтором после attempt-й неудачной попытки (attempt >= 1)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

type Broadcaster struct {
	publisher Publisher
	policy    RetryPolicy
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewBroadcaster(publisher Publisher, policy RetryPolicy) *Broadcaster {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &Broadcaster{publisher: publisher, policy: policy, sleep: sleepContext}
}

// Broadcast пытается доставить payload с повторами. Ошибка оборачивает ErrDegraded
// и предназначена только для логирования.
func (b *Broadcaster) Broadcast(ctx context.Context, topic uuid.UUID, payload []byte) error {
	if b.policy.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.policy.Budget)
		defer cancel()
	}

	var lastErr error
	attempts := 0
	for attempts < b.policy.Attempts {
		attempts++

		lastErr = b.publisher.Publish(ctx, topic, payload)
		if lastErr == nil {
			return nil
		}

		if attempts == b.policy.Attempts {
			break
		}
		if err := b.sleep(ctx, b.policy.Delay(attempts)); err != nil {
			break
		}
	}

	err := fmt.Errorf("%w: topic %s after %d attempt(s): %v", ErrDegraded, topic, attempts, lastErr)
	log.Printf("Broadcast failed: %v", err)
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
