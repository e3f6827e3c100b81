package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/emrgen/digidoc/internal/model"
	"github.com/sirupsen/logrus"
)

var _ Publisher = (*KafkaPublisher)(nil)

type KafkaConfig struct {
	Brokers string
	Topic   string
}

// KafkaPublisher produces events keyed by lineage so one lineage stays ordered within a partition.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	brokers := strings.TrimSpace(cfg.Brokers)
	if brokers == "" {
		return nil, errors.New("kafka brokers required")
	}
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		topic = strings.ReplaceAll(DefaultTopic, ":", ".")
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "all",
	})
	if err != nil {
		return nil, err
	}

	p := &KafkaPublisher{producer: producer, topic: topic}
	go p.drain()

	return p, nil
}

// drain logs asynchronous delivery failures.
func (k *KafkaPublisher) drain() {
	for e := range k.producer.Events() {
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			logrus.Errorf("kafka delivery failed: %v", m.TopicPartition.Error)
		}
	}
}

func (k *KafkaPublisher) Publish(ctx context.Context, events ...*model.AuditEvent) error {
	for _, event := range events {
		payload, err := encode(event)
		if err != nil {
			return err
		}
		key := event.LineageID
		if key == "" {
			key = event.DocumentID
		}
		err = k.producer.Produce(&kafka.Message{
			TopicPartition: kafka.TopicPartition{Topic: &k.topic, Partition: kafka.PartitionAny},
			Key:            []byte(key),
			Value:          payload,
			Headers:        []kafka.Header{{Key: "action", Value: []byte(event.Action)}},
		}, nil)
		if err != nil {
			return fmt.Errorf("produce %s: %w", event.ID, err)
		}
	}
	return nil
}

func (k *KafkaPublisher) Close() error {
	k.producer.Flush(5000)
	k.producer.Close()
	return nil
}
