package messaging

import (
	"context"
	"fmt"
	"time"

	"currencyexchange/pkg/metrics"
	"currencyexchange/rates-service/internal/app/rates/infrastructure"

	"github.com/segmentio/kafka-go"
)

const metricsService = "rates-service"

type KafkaProducer struct {
	writer *kafka.Writer
	topic  string
}

var _ infrastructure.MessagePublisher = (*KafkaProducer)(nil)

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	// Ключ сообщения - код валюты, Hash сохраняет порядок событий одной валюты в партиции
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaProducer{writer: writer, topic: topic}
}

func (p *KafkaProducer) PublishMessage(ctx context.Context, key string, value []byte) error {
	timer := metrics.NewKafkaProduceTimer(metricsService, p.topic)

	message := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		timer.Error()
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	timer.Success()
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
