package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tourbook/listing/pkg/model"
	"tourbook/pkg/logging"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const pollTimeout = time.Second

// Ingester defines a Kafka ingester of review moderation events.
type Ingester struct {
	consumer *kafka.Consumer
	topic    string
	validate *validator.Validate
	logger   *zap.Logger
}

// NewIngester creates a new Kafka ingester.
func NewIngester(addr string, groupID string, topic string, logger *zap.Logger) (*Ingester, error) {
	logger = logger.With(
		zap.String(logging.FieldComponent, "kafka-ingester"),
		zap.String("topic", topic),
	)
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": addr,
		"group.id":          groupID,
		"auto.offset.reset": "earliest",
	})
	if err != nil {
		return nil, err
	}
	return &Ingester{consumer: consumer, topic: topic, validate: validator.New(), logger: logger}, nil
}

type moderationMessage struct {
	ReviewID    string `json:"reviewId" validate:"required"`
	Action      string `json:"action" validate:"required,oneof=approve reject delete"`
	ModeratorID string `json:"moderatorId"`
}

func decode(v *validator.Validate, value []byte) (model.ModerationEvent, error) {
	var msg moderationMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return model.ModerationEvent{}, err
	}
	if err := v.Struct(msg); err != nil {
		return model.ModerationEvent{}, fmt.Errorf("invalid moderation event: %w", err)
	}
	return model.ModerationEvent{
		ReviewID:    model.ReviewID(msg.ReviewID),
		Action:      model.ModerationAction(msg.Action),
		ModeratorID: model.UserID(msg.ModeratorID),
	}, nil
}

// Ingest starts ingestion from Kafka and returns a channel of the
// moderation events consumed from the topic. The channel is closed
// once ctx is done. Malformed messages are logged and skipped.
func (i *Ingester) Ingest(ctx context.Context) (chan model.ModerationEvent, error) {
	i.logger.Info("Starting Kafka ingester")
	if err := i.consumer.SubscribeTopics([]string{i.topic}, nil); err != nil {
		return nil, err
	}

	ch := make(chan model.ModerationEvent, 1)
	go func() {
		defer func() {
			close(ch)
			if err := i.consumer.Close(); err != nil {
				i.logger.Warn("Failed to close consumer", zap.Error(err))
			}
		}()
		for {
			if ctx.Err() != nil {
				return
			}
			msg, err := i.consumer.ReadMessage(pollTimeout)
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			} else if err != nil {
				i.logger.Warn("Consumer error", zap.Error(err))
				continue
			}
			event, err := decode(i.validate, msg.Value)
			if err != nil {
				i.logger.Warn("Skipping malformed message", zap.Error(err), zap.Stringer("offset", msg.TopicPartition.Offset))
				continue
			}
			i.logger.Debug("Processing a message", zap.Stringer("event", &event))
			select {
			case ch <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
