package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
)

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RecordEventProducer publishes confirmed-record events keyed by natural key,
// so every event for one record lands on the same partition.
type RecordEventProducer struct {
	writer MessageWriter
	topic  string
	logger *zap.Logger
}

func NewRecordEventProducer(brokers []string, topic string, logger *zap.Logger) *RecordEventProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	logger.Info("Kafka producer initialized", zap.String("topic", topic), zap.Strings("brokers", brokers))
	return &RecordEventProducer{writer: w, topic: topic, logger: logger}
}

// NewRecordEventProducerWithWriter is used by tests.
func NewRecordEventProducerWithWriter(w MessageWriter, topic string, logger *zap.Logger) *RecordEventProducer {
	return &RecordEventProducer{writer: w, topic: topic, logger: logger}
}

func (p *RecordEventProducer) PublishRecordEvent(ctx context.Context, event models.RecordEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.NaturalKey),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
			{Key: "payment_type", Value: []byte(event.PaymentType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to send record event",
			zap.String("topic", p.topic),
			zap.String("natural_key", event.NaturalKey),
			zap.Error(err),
		)
		return err
	}

	p.logger.Info("Record event sent",
		zap.String("topic", p.topic),
		zap.String("type", event.Type),
		zap.String("natural_key", event.NaturalKey),
	)
	return nil
}

func (p *RecordEventProducer) Close() {
	if err := p.writer.Close(); err != nil {
		p.logger.Warn("Kafka producer close failed", zap.Error(err))
		return
	}
	p.logger.Info("Kafka producer closed")
}
