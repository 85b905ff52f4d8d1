package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler processes one notification. A failing notification is retried in
// place with backoff; once the retries are exhausted it is logged and
// committed so later messages keep flowing.
type Handler func(context.Context, *Notification) error

// handlerRetryWindow bounds how long one notification is retried.
const handlerRetryWindow = 30 * time.Second

type Consumer struct {
	reader  KafkaReader
	logger  *zap.Logger
	handler Handler
	wg      sync.WaitGroup
	cancel  context.CancelFunc

	// handlerRetry builds the retry policy for one notification.
	handlerRetry func() backoff.BackOff
}

func NewConsumer(brokers []string, groupID, topic string, logger *zap.Logger) *Consumer {
	return newConsumer(kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   topic,
		Dialer:  kafka.DefaultDialer,
	}), logger)
}

func newConsumer(reader KafkaReader, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader: reader,
		logger: logger.Named("kafka_consumer"),
		handlerRetry: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = handlerRetryWindow
			return b
		},
	}
}

func (c *Consumer) RegisterHandler(fn Handler) {
	c.handler = fn
}

// Start consumes in the background until ctx is cancelled or the consumer
// is closed.
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
}

func (c *Consumer) run(ctx context.Context) {
	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = 0

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			wait := retry.NextBackOff()
			c.logger.Error("Failed to fetch message", zap.Error(err), zap.Duration("retry_in", wait))
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		retry.Reset()

		var n Notification
		if err := json.Unmarshal(msg.Value, &n); err != nil {
			c.logger.Error("Failed to parse notification",
				zap.Error(err),
				zap.ByteString("value", msg.Value),
			)
			// A malformed message would otherwise block the partition.
			c.commit(ctx, msg)
			continue
		}

		if c.handler == nil {
			c.logger.Warn("No handler registered, skipping notification", n.fields()...)
			continue
		}
		if err := c.handle(ctx, &n); err != nil {
			if ctx.Err() != nil {
				// Left uncommitted; the group resumes here on restart.
				return
			}
			c.logger.Error("Giving up on notification",
				append(n.fields(), zap.Error(err), zap.Int64("offset", msg.Offset))...)
		}
		c.commit(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, n *Notification) error {
	policy := backoff.WithContext(c.handlerRetry(), ctx)
	return backoff.RetryNotify(func() error {
		return c.handler(ctx, n)
	}, policy, func(err error, wait time.Duration) {
		c.logger.Warn("Failed to handle notification",
			append(n.fields(), zap.Error(err), zap.Duration("retry_in", wait))...)
	})
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("Failed to commit message",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
		)
	}
}

// Close closes the reader and waits for the consume loop to return.
func (c *Consumer) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if err := c.reader.Close(); err != nil {
		c.logger.Error("Failed to close Kafka reader", zap.Error(err))
	}
	c.wg.Wait()
}
