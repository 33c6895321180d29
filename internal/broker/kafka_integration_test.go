package broker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compliance/internal/broker"
	"compliance/internal/config"
	"compliance/internal/logger"
	"compliance/internal/testinfra"
)

func createTopic(t *testing.T, brokers []string, topic string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := &kafka.Client{Addr: kafka.TCP(brokers...)}
	resp, err := client.CreateTopics(ctx, &kafka.CreateTopicsRequest{
		Topics: []kafka.TopicConfig{{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}},
	})
	require.NoError(t, err)
	for _, topicErr := range resp.Errors {
		require.NoError(t, topicErr)
	}
}

func TestKafkaConsumerRedeliversUncommittedMessages(t *testing.T) {
	brokers := testinfra.Kafka(t)
	const topic = "platform.inventory.events"
	createTopic(t, brokers, topic)

	cfg := config.KafkaConfig{
		Brokers:  brokers,
		GroupID:  "compliance-redelivery",
		ClientID: "compliance-test",
		Batch:    config.BatchConfig{MaxMessages: 1},
		Redelivery: config.RetryConfig{
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     time.Second,
			Multiplier:      2,
		},
	}

	producer, err := broker.NewKafkaProducer(cfg, logger.NopLogger())
	require.NoError(t, err)
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, key := range []string{"m1", "m2", "m3"} {
		require.NoError(t, producer.Publish(ctx, topic, key, map[string]string{"id": key}))
	}

	consumer, err := broker.NewKafkaConsumer(cfg, logger.NopLogger())
	require.NoError(t, err)
	defer consumer.Close()

	var (
		mu        sync.Mutex
		delivered []string
		failed    bool
	)
	err = consumer.Consume(ctx, topic, func(ctx context.Context, batch []broker.Message, commit broker.CommitFunc) error {
		for _, msg := range batch {
			key := string(msg.Key)
			mu.Lock()
			delivered = append(delivered, key)
			fail := key == "m2" && !failed
			if fail {
				failed = true
			}
			mu.Unlock()

			if fail {
				return errors.New("store unavailable")
			}
			if err := commit(ctx, msg); err != nil {
				return err
			}
			if key == "m3" {
				cancel()
			}
		}
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"m1", "m2", "m2", "m3"}, delivered)
}
