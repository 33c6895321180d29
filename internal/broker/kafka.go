package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"

	"compliance/internal/config"
	"compliance/internal/constants"
	"compliance/internal/logger"
	apperrors "compliance/pkg/errors"
	"compliance/pkg/logging"
	"compliance/pkg/metrics"
	"compliance/pkg/retry"
	"compliance/pkg/tracing"
)

const defaultMaxMessages = 100

type KafkaProducer struct {
	writer      *kafka.Writer
	logger      logger.Logger
	serviceName string
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) (*KafkaProducer, error) {
	sec, err := newSecurity(cfg)
	if err != nil {
		return nil, err
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           constants.KafkaBatchTimeout,
		WriteTimeout:           constants.KafkaWriteTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: false,
		Transport:              sec.transport(cfg.ClientID),
	}
	return &KafkaProducer{writer: w, logger: log, serviceName: constants.AppName}, nil
}

func (p *KafkaProducer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	headers := tracing.InjectTraceContext(ctx, []kafka.Header{})

	msg := kafka.Message{
		Topic:   topic,
		Value:   body,
		Headers: headers,
		Time:    time.Now(),
	}
	if key != "" {
		msg.Key = []byte(key)
	}

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return apperrors.Unavailable(fmt.Errorf("failed to write kafka message to %s: %w", topic, err))
	}

	metrics.ObserveKafkaWriteDuration(p.serviceName, topic, time.Since(start))
	metrics.IncKafkaMessagesWritten(p.serviceName, topic)
	return nil
}

// Ping fetches cluster metadata through the producer's transport.
func (p *KafkaProducer) Ping(ctx context.Context) error {
	client := &kafka.Client{Addr: p.writer.Addr, Transport: p.writer.Transport}
	resp, err := client.Metadata(ctx, &kafka.MetadataRequest{})
	if err != nil {
		return fmt.Errorf("kafka metadata request failed: %w", err)
	}
	if len(resp.Brokers) == 0 {
		return fmt.Errorf("kafka cluster reported no brokers")
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// messageReader is the subset of *kafka.Reader the consumer drives.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type readerFactory func(topic string) messageReader

// KafkaConsumer reads batches from a consumer group. A handler error ends
// the current reader session; the next session resumes at the committed
// offset, which redelivers every uncommitted message.
type KafkaConsumer struct {
	cfg         config.KafkaConfig
	logger      logger.Logger
	serviceName string
	newReader   readerFactory
	newBackOff  func() backoff.BackOff

	mu     sync.Mutex
	reader messageReader
}

func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) (*KafkaConsumer, error) {
	sec, err := newSecurity(cfg)
	if err != nil {
		return nil, err
	}

	c := &KafkaConsumer{
		cfg:         cfg,
		logger:      log,
		serviceName: "unknown",
	}

	c.newReader = func(topic string) messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			GroupID:        cfg.GroupID,
			Topic:          topic,
			Dialer:         sec.dialer(cfg.ClientID),
			MinBytes:       1,
			MaxBytes:       10e6,
			StartOffset:    kafka.FirstOffset,
			CommitInterval: 0,
		})
	}
	c.newBackOff = func() backoff.BackOff {
		r := cfg.Redelivery
		initial, maxInterval, multiplier := r.InitialInterval, r.MaxInterval, r.Multiplier
		if initial <= 0 {
			initial = time.Second
		}
		if maxInterval < initial {
			maxInterval = 30 * time.Second
		}
		if multiplier <= 0 {
			multiplier = 2.0
		}
		return retry.ExponentialBackoff(initial, maxInterval, multiplier)
	}

	return c, nil
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
}

// Consume blocks until ctx is cancelled.
func (c *KafkaConsumer) Consume(ctx context.Context, topic string, handler BatchHandler) error {
	consumeCtx := logging.WithServiceName(ctx, c.serviceName)
	c.logger.InfowCtx(consumeCtx, "Started consuming",
		"topic", topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
		"security_protocol", c.cfg.SecurityProtocol,
	)

	bo := c.newBackOff()
	for {
		err := c.runSession(consumeCtx, topic, handler, bo)
		if ctx.Err() != nil {
			c.logger.InfowCtx(consumeCtx, "Stopped consuming",
				"topic", topic,
				"reason", "context canceled",
			)
			return ctx.Err()
		}

		delay := bo.NextBackOff()
		metrics.IncConsumerRestart(topic)
		c.logger.WarnwCtx(consumeCtx, "Restarting consumer session, uncommitted messages will be redelivered",
			"topic", topic,
			"error", err,
			"retry_in", delay,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *KafkaConsumer) runSession(ctx context.Context, topic string, handler BatchHandler, bo backoff.BackOff) error {
	reader := c.newReader(topic)
	c.setReader(reader)
	defer func() {
		c.setReader(nil)
		if err := reader.Close(); err != nil {
			c.logger.WarnwCtx(ctx, "Failed to close kafka reader", "error", err, "topic", topic)
		}
	}()

	commit := func(ctx context.Context, msg Message) error {
		err := reader.CommitMessages(ctx, kafka.Message{
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
		})
		if err != nil {
			return apperrors.Unavailable(fmt.Errorf("failed to commit offset %d on %s/%d: %w", msg.Offset, msg.Topic, msg.Partition, err))
		}
		return nil
	}

	for {
		batch, err := c.fetchBatch(ctx, reader)
		if err != nil {
			return err
		}

		for _, partition := range groupByPartition(batch) {
			if err := c.handle(ctx, handler, partition, commit); err != nil {
				return err
			}
		}
		bo.Reset()
	}
}

// fetchBatch blocks for the first message, then collects more until the
// batch is full or max_wait elapses.
func (c *KafkaConsumer) fetchBatch(ctx context.Context, reader messageReader) ([]Message, error) {
	first, err := reader.FetchMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch kafka message: %w", err)
	}

	maxMessages := c.cfg.Batch.MaxMessages
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}

	batch := make([]Message, 0, maxMessages)
	batch = append(batch, c.fromKafka(first))
	if maxMessages == 1 || c.cfg.Batch.MaxWait <= 0 {
		return batch, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.Batch.MaxWait)
	defer cancel()

	for len(batch) < maxMessages {
		m, err := reader.FetchMessage(waitCtx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if waitCtx.Err() != nil {
				break
			}
			return nil, fmt.Errorf("failed to fetch kafka message: %w", err)
		}
		batch = append(batch, c.fromKafka(m))
	}

	return batch, nil
}

func (c *KafkaConsumer) handle(ctx context.Context, handler BatchHandler, batch []Message, commit CommitFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.RecoverPanic(r)
			c.logger.ErrorwCtx(ctx, "Panic recovered during batch processing",
				"error", err,
				"topic", batch[0].Topic,
				"partition", batch[0].Partition,
			)
		}
	}()

	last := batch[len(batch)-1]
	metrics.SetKafkaConsumerLag(c.serviceName, last.Topic, last.Partition, last.HighWaterMark-last.Offset-1)

	return handler(ctx, batch, commit)
}

func (c *KafkaConsumer) fromKafka(m kafka.Message) Message {
	metrics.IncKafkaMessagesRead(c.serviceName, m.Topic)
	return Message{
		Topic:         m.Topic,
		Partition:     m.Partition,
		Offset:        m.Offset,
		HighWaterMark: m.HighWaterMark,
		Key:           m.Key,
		Value:         m.Value,
		Headers:       m.Headers,
		Time:          m.Time,
	}
}

func (c *KafkaConsumer) setReader(r messageReader) {
	c.mu.Lock()
	c.reader = r
	c.mu.Unlock()
}

// Close interrupts a blocked fetch; Consume returns once its context is done.
func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}

// groupByPartition splits a batch into per-partition runs, keeping arrival
// order inside each partition and first-seen order across partitions.
func groupByPartition(batch []Message) [][]Message {
	index := make(map[int]int)
	var groups [][]Message
	for _, m := range batch {
		i, ok := index[m.Partition]
		if !ok {
			i = len(groups)
			index[m.Partition] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], m)
	}
	return groups
}
