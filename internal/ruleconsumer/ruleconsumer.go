// Package ruleconsumer consumes rule.changed events and schedules an immediate
// evaluation cycle for each one.
package ruleconsumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/finsightx/alert-engine/internal/events"
	kafkautil "github.com/finsightx/alert-engine/pkg/kafka"
)

// DefaultReadRetryDelay is the pause after a failed read from Kafka.
const DefaultReadRetryDelay = time.Second

var errUndecodable = errors.New("undecodable rule.changed event")

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Trigger requests an out-of-band evaluation cycle.
type Trigger interface {
	TriggerNow()
}

// Consumer wraps a Kafka reader for the rule.changed topic.
type Consumer struct {
	reader     messageReader
	topic      string
	retryDelay time.Duration
}

// NewConsumer creates a rule.changed consumer in the given group.
func NewConsumer(brokers, topic, groupID string) (*Consumer, error) {
	if err := kafkautil.ValidateConsumerParams(brokers, topic, groupID); err != nil {
		return nil, err
	}

	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing rule.changed Kafka consumer",
		"brokers", brokerList,
		"topic", topic,
		"group_id", groupID,
	)

	readerCfg := kafkautil.NewReaderConfig(brokerList, topic, groupID)
	kafkautil.LogReaderConfig(readerCfg)

	return &Consumer{
		reader: kafka.NewReader(readerCfg),
		topic:  topic,
	}, nil
}

// ReadMessage reads and decodes the next rule.changed event.
func (c *Consumer) ReadMessage(ctx context.Context) (*events.RuleChanged, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read message from Kafka: %w", err)
	}

	evt, err := events.DecodeRuleChanged(msg.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode message at offset %d: %w: %w", msg.Offset, errUndecodable, err)
	}
	return evt, nil
}

// Run consumes events until ctx is cancelled, calling TriggerNow for each.
// Undecodable messages are logged and skipped. Read failures pause for the
// retry delay before the next read.
func (c *Consumer) Run(ctx context.Context, trigger Trigger) {
	slog.Info("Starting rule.changed event handler", "topic", c.topic)

	retryDelay := c.retryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultReadRetryDelay
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Rule.changed event handler stopped")
			return
		default:
		}

		evt, err := c.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("Rule.changed event handler stopped")
				return
			}
			if errors.Is(err, errUndecodable) {
				slog.Error("Skipping undecodable rule.changed event", "error", err)
				continue
			}
			slog.Error("Failed to read rule.changed event", "error", err, "retry_in", retryDelay)
			select {
			case <-ctx.Done():
				slog.Info("Rule.changed event handler stopped")
				return
			case <-time.After(retryDelay):
			}
			continue
		}

		slog.Info("Received rule.changed event",
			"rule_id", evt.RuleID,
			"organization_id", evt.OrganizationID,
			"action", evt.Action,
			"version", evt.Version,
		)
		trigger.TriggerNow()
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	slog.Info("Closing rule.changed consumer", "topic", c.topic)
	if err := c.reader.Close(); err != nil {
		slog.Error("Error closing rule.changed consumer", "error", err)
		return err
	}
	slog.Info("Rule.changed consumer closed successfully")
	return nil
}
