package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("events: publisher closed")

// KafkaPublisher sends events through a sarama AsyncProducer keyed by token.
type KafkaPublisher struct {
	producer sarama.AsyncProducer
	topic    string
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewProducerConfig returns the producer settings used for checkout events.
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "checkout"
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Flush.Frequency = 500 * time.Millisecond
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Errors = true
	return cfg
}

// DialKafka connects an AsyncProducer to the brokers and wraps it.
func DialKafka(brokers []string, topic string, logger *zap.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("events: kafka brokers are required")
	}
	producer, err := sarama.NewAsyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("events: start kafka producer: %w", err)
	}
	return NewKafkaPublisher(producer, topic, logger)
}

// NewKafkaPublisher wraps an existing producer and starts draining its error channel.
func NewKafkaPublisher(producer sarama.AsyncProducer, topic string, logger *zap.Logger) (*KafkaPublisher, error) {
	if producer == nil {
		return nil, errors.New("events: producer is required")
	}
	if topic == "" {
		return nil, errors.New("events: topic is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &KafkaPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
	p.wg.Add(1)
	go p.drainErrors()
	return p, nil
}

func (p *KafkaPublisher) drainErrors() {
	defer p.wg.Done()
	for perr := range p.producer.Errors() {
		fields := []zap.Field{zap.Error(perr.Err), zap.String("topic", p.topic)}
		if perr.Msg != nil {
			if key, err := perr.Msg.Key.Encode(); err == nil {
				fields = append(fields, zap.String("key", string(key)))
			}
		}
		p.logger.Warn("kafka publish failed", fields...)
	}
}

// Publish enqueues the event. It returns once the producer accepts the message or ctx ends.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", event.Type, err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.Token),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
		Timestamp: event.OccurredAt,
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes buffered messages and stops the producer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.producer.Close()
	p.wg.Wait()
	return err
}
