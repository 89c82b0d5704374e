// Package producer publishes rule.changed and alert.triggered events to Kafka.
package producer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/finsightx/alert-engine/internal/events"
	"github.com/finsightx/alert-engine/internal/metrics"
	kafkautil "github.com/finsightx/alert-engine/pkg/kafka"
)

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer wraps a Kafka writer for one topic.
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer creates a new Kafka producer with the specified brokers and topic.
// The producer is configured for at-least-once delivery semantics with synchronous writes.
func NewProducer(brokers string, topic string) (*Producer, error) {
	if err := kafkautil.ValidateProducerParams(brokers, topic); err != nil {
		return nil, err
	}
	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka producer",
		"brokers", brokerList,
		"topic", topic,
	)

	createTopicIfNotExists(brokerList[0], topic)

	return &Producer{
		writer: kafkautil.NewWriter(brokerList, topic),
		topic:  topic,
	}, nil
}

// createTopicIfNotExists attempts to create the topic if it doesn't exist.
// Failures are logged and do not prevent producer creation.
func createTopicIfNotExists(broker, topic string) {
	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		slog.Warn("Could not connect to Kafka to check/create topic",
			"broker", broker,
			"topic", topic,
			"error", err,
		)
		return
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(topic)
	if err == nil && len(partitions) > 0 {
		slog.Info("Topic already exists", "topic", topic, "partitions", len(partitions))
		return
	}

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	})
	if err != nil {
		slog.Warn("Could not create topic (may need to be created manually)", "topic", topic, "error", err)
		return
	}
	slog.Info("Created topic", "topic", topic, "partitions", 3)
}

// PublishRuleChanged publishes a rule change keyed by rule id. Scope changes
// carry no rule id and are keyed by organization.
func (p *Producer) PublishRuleChanged(ctx context.Context, changed *events.RuleChanged) error {
	payload, err := events.EncodeRuleChanged(changed)
	if err != nil {
		return err
	}

	key := changed.RuleID
	if key == "" {
		key = changed.OrganizationID
	}

	return p.write(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "schema_version", Value: []byte(strconv.Itoa(changed.SchemaVersion))},
			{Key: "action", Value: []byte(changed.Action)},
			{Key: "rule_id", Value: []byte(changed.RuleID)},
		},
		Time: time.Unix(changed.UpdatedAt, 0),
	})
}

// PublishAlertTriggered publishes a committed alert keyed by alert id.
func (p *Producer) PublishAlertTriggered(ctx context.Context, triggered *events.AlertTriggered) error {
	payload, err := events.EncodeAlertTriggered(triggered)
	if err != nil {
		return err
	}

	return p.write(ctx, kafka.Message{
		Key:   []byte(triggered.AlertID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "schema_version", Value: []byte(strconv.Itoa(events.SchemaVersion))},
			{Key: "content_type", Value: []byte("application/x-protobuf")},
			{Key: "organization_id", Value: []byte(triggered.OrganizationID)},
		},
		Time: triggered.TriggeredAt,
	})
}

func (p *Producer) write(ctx context.Context, msg kafka.Message) error {
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.KafkaPublishTotal.WithLabelValues(p.topic, "failed").Inc()
		slog.Error("Failed to write message to Kafka",
			"topic", p.topic,
			"key", string(msg.Key),
			"error", err,
		)
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}
	metrics.KafkaPublishTotal.WithLabelValues(p.topic, "success").Inc()
	return nil
}

// Close gracefully closes the Kafka writer and releases resources.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		slog.Error("Error closing Kafka producer", "error", err)
		return err
	}
	return nil
}
