package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gartstein/certify/internal/certification/metrics"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var jsonMarshal = json.Marshal

const (
	defaultBufferSize = 1000
	sendTimeout       = 10 * time.Second
)

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes notifications in the background. Notify never blocks:
// when the queue is full the notification is dropped and logged.
type Producer struct {
	writer     KafkaWriter
	events     chan *Notification
	logger     *zap.Logger
	metrics    *metrics.Metrics
	bufferSize int
	closeChan  chan struct{}
	done       chan struct{}
}

type ProducerOption func(*Producer)

func WithProducerMetrics(m *metrics.Metrics) ProducerOption {
	return func(p *Producer) { p.metrics = m }
}

func WithBufferSize(n int) ProducerOption {
	return func(p *Producer) {
		if n > 0 {
			p.bufferSize = n
		}
	}
}

func NewProducer(brokers []string, topic string, logger *zap.Logger, opts ...ProducerOption) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Warn("failed to create topic (may already exist)", zap.Error(err))
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
	}
	return newProducer(writer, logger, opts...), nil
}

func newProducer(writer KafkaWriter, logger *zap.Logger, opts ...ProducerOption) *Producer {
	p := &Producer{
		writer:     writer,
		logger:     logger.Named("kafka_producer"),
		bufferSize: defaultBufferSize,
		closeChan:  make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.events = make(chan *Notification, p.bufferSize)

	go p.eventLoop()
	return p
}

// Notify queues n for delivery.
func (p *Producer) Notify(n *Notification) {
	select {
	case p.events <- n:
	default:
		p.metrics.Notification(metrics.NotificationDropped)
		p.logger.Warn("Kafka producer queue full, dropping notification", n.fields()...)
	}
}

func (p *Producer) eventLoop() {
	defer close(p.done)
	for {
		select {
		case n := <-p.events:
			p.send(n)
		case <-p.closeChan:
			p.drain()
			return
		}
	}
}

// drain flushes whatever is still queued at shutdown.
func (p *Producer) drain() {
	for {
		select {
		case n := <-p.events:
			p.send(n)
		default:
			return
		}
	}
}

func (p *Producer) send(n *Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	p.sendEvent(ctx, n)
}

func (p *Producer) sendEvent(ctx context.Context, n *Notification) {
	value, err := jsonMarshal(n)
	if err != nil {
		p.metrics.Notification(metrics.NotificationFailed)
		p.logger.Error("Failed to serialize notification", append(n.fields(), zap.Error(err))...)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   n.Key(),
		Value: value,
	})
	if err != nil {
		p.metrics.Notification(metrics.NotificationFailed)
		p.logger.Error("Failed to produce notification", append(n.fields(), zap.Error(err))...)
		return
	}
	p.metrics.Notification(metrics.NotificationSent)
}

// Close stops the loop after flushing the queue and closes the writer.
func (p *Producer) Close() {
	close(p.closeChan)
	<-p.done
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka writer", zap.Error(err))
	}
}
