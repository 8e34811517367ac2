package broadcast

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// KafkaRelay раздаёт события между инстансами через топик Kafka.
// Ключ сообщения = id канала, поэтому события одного канала идут в одну партицию.
type KafkaRelay struct {
	writer *kafka.Writer
	reader *kafka.Reader
	local  Deliverer
}

// NewKafkaRelay groupID должен быть уникален для инстанса: каждый инстанс читает весь поток
func NewKafkaRelay(brokers []string, topic, groupID string, local Deliverer) *KafkaRelay {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
	})

	return &KafkaRelay{writer: writer, reader: reader, local: local}
}

func (k *KafkaRelay) Publish(ctx context.Context, topic uuid.UUID, payload []byte) error {
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(topic.String()),
		Value: payload,
		Time:  time.Now(),
	})
}

// Run читает топик до отмены ctx
func (k *KafkaRelay) Run(ctx context.Context) error {
	for {
		m, err := k.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			log.Printf("Kafka relay read error: %v. Retrying in 1s...", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		topic, err := uuid.ParseBytes(m.Key)
		if err != nil {
			log.Printf("Kafka relay: bad key %q", m.Key)
			continue
		}
		k.local.Deliver(topic, m.Value)
	}
}

func (k *KafkaRelay) Close() error {
	return errors.Join(k.writer.Close(), k.reader.Close())
}
