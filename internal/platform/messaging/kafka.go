package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	contractsv1 "gridgate/contracts/gen/events/v1"

	"github.com/segmentio/kafka-go"
)

// consumeRetryBackoff paces handler retries on the same message.
const consumeRetryBackoff = 5 * time.Second

// Kafka is the broker-backed event bus adapter. Envelopes travel as JSON
// with the partition key as the message key so events for one receiver
// stay ordered.
type Kafka struct {
	brokers []string
	writer  *kafka.Writer
	logger  *slog.Logger
}

func NewKafka(brokers []string, logger *slog.Logger) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka requires at least one broker")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Kafka{
		brokers: brokers,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		logger: logger,
	}, nil
}

func (k *Kafka) Publish(ctx context.Context, topic string, event contractsv1.Envelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(event.PartitionKey),
		Value: payload,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	k.logger.Info("event published",
		"event", "kafka_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
	)
	return nil
}

// Subscribe starts a consumer-group reader for topic and dispatches each
// envelope to handler. Offsets commit only after the handler succeeds; a
// failing handler is retried with backoff on the same message, so consumers
// classify poison input themselves and return nil for it.
func (k *Kafka) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, contractsv1.Envelope) error,
) error {
	if consumerGroup == "" {
		return errors.New("kafka subscribe requires a consumer group")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		GroupID:  consumerGroup,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})

	go func() {
		defer reader.Close()
		for {
			msg, err := reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				k.logger.Error("kafka fetch failed",
					"event", "kafka_fetch_failed",
					"module", "internal/platform/messaging",
					"layer", "platform",
					"topic", topic,
					"consumer_group", consumerGroup,
					"error", err.Error(),
				)
				continue
			}

			var event contractsv1.Envelope
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				k.logger.Error("kafka envelope decode failed",
					"event", "kafka_decode_failed",
					"module", "internal/platform/messaging",
					"layer", "platform",
					"topic", topic,
					"consumer_group", consumerGroup,
					"error", err.Error(),
				)
				// Undecodable bytes can never succeed; commit and move on.
				k.commit(ctx, reader, msg, topic, consumerGroup)
				continue
			}

			for {
				err := handler(ctx, event)
				if err == nil {
					break
				}
				k.logger.Error("consumer handler failed",
					"event", "kafka_consume_failed",
					"module", "internal/platform/messaging",
					"layer", "platform",
					"topic", topic,
					"consumer_group", consumerGroup,
					"event_id", event.EventID,
					"event_type", event.EventType,
					"error", err.Error(),
				)
				select {
				case <-ctx.Done():
					return
				case <-time.After(consumeRetryBackoff):
				}
			}
			k.commit(ctx, reader, msg, topic, consumerGroup)
		}
	}()
	return nil
}

func (k *Kafka) commit(
	ctx context.Context,
	reader *kafka.Reader,
	msg kafka.Message,
	topic string,
	consumerGroup string,
) {
	if err := reader.CommitMessages(ctx, msg); err != nil {
		k.logger.Error("kafka commit failed",
			"event", "kafka_commit_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"consumer_group", consumerGroup,
			"error", err.Error(),
		)
	}
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
