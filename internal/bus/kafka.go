package bus

import (
	"context"
	"encoding/json"
	"time"

	"huntflow-sync/internal/common/config"
	apperrors "huntflow-sync/internal/common/errors"
	"huntflow-sync/internal/common/logger"
	"huntflow-sync/internal/common/metrics"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaBus implements Publisher and runs the inbound consumer loop over a
// Kafka topic pair. Inbound records are dispatched through the registry;
// handler errors are logged and left to the broker's redelivery semantics.
type KafkaBus struct {
	client   *kgo.Client
	outTopic string
	sender   string
	registry *Registry
	logger   logger.Logger
}

func NewKafkaBus(cfg config.BusConfig, registry *Registry, log logger.Logger) (*KafkaBus, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.ConsumeTopics(cfg.InboundTopic),
	)
	if err != nil {
		return nil, err
	}

	return &KafkaBus{
		client:   client,
		outTopic: cfg.OutboundTopic,
		sender:   cfg.ServiceName,
		registry: registry,
		logger:   log,
	}, nil
}

// Publish wraps the payload in an envelope and produces it to the outbound
// topic, keyed so that events for one case stay in one partition.
func (b *KafkaBus) Publish(ctx context.Context, eventType string, key string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	env := Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		Sender:     b.sender,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}

	record := &kgo.Record{
		Topic: b.outTopic,
		Key:   []byte(key),
		Value: value,
	}
	if err := b.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return err
	}

	metrics.EventsPublished.WithLabelValues(eventType).Inc()
	b.logger.Info("published event", map[string]interface{}{
		"eventType": eventType,
		"key":       key,
	})
	return nil
}

// Listen polls the inbound topic until the context is cancelled or the
// client is closed.
func (b *KafkaBus) Listen(ctx context.Context) error {
	for {
		fetches := b.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			b.logger.Error("fetch error", map[string]interface{}{
				"topic":     topic,
				"partition": partition,
				"error":     err.Error(),
			})
		})

		fetches.EachRecord(func(record *kgo.Record) {
			b.handleRecord(ctx, record)
		})
	}
}

func (b *KafkaBus) handleRecord(ctx context.Context, record *kgo.Record) {
	var env Envelope
	if err := json.Unmarshal(record.Value, &env); err != nil {
		b.logger.Error("failed to decode event envelope", map[string]interface{}{
			"topic":  record.Topic,
			"offset": record.Offset,
			"error":  err.Error(),
		})
		metrics.EventsFailed.WithLabelValues("unknown", string(apperrors.ErrCodeInvalidEventPayload)).Inc()
		return
	}

	if !b.registry.Handles(env.Type) {
		return
	}

	metrics.EventsConsumed.WithLabelValues(env.Type).Inc()
	if err := b.registry.Dispatch(ctx, env); err != nil {
		metrics.EventsFailed.WithLabelValues(env.Type, string(apperrors.CodeOf(err))).Inc()
		b.logger.Error("event handler failed", map[string]interface{}{
			"eventType": env.Type,
			"eventId":   env.ID,
			"error":     err.Error(),
		})
	}
}

// Close shuts the Kafka client down, stopping Listen.
func (b *KafkaBus) Close() {
	b.client.Close()
}
