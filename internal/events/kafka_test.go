package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func sampleEvent() Event {
	return Event{
		Type:       TypeConfirmed,
		SessionID:  "01JABCDEF",
		Token:      "tok-123",
		Status:     "approved",
		Method:     "pix",
		Total:      424,
		OccurredAt: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublisherSendsKeyedJSON(t *testing.T) {
	producer := mocks.NewAsyncProducer(t, NewProducerConfig())
	producer.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "checkout-events" {
			return fmt.Errorf("unexpected topic %q", msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil || string(key) != "tok-123" {
			return fmt.Errorf("unexpected key %q (%v)", key, err)
		}
		raw, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var decoded Event
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return err
		}
		if decoded.Type != TypeConfirmed || decoded.Total != 424 {
			return fmt.Errorf("unexpected payload %s", raw)
		}
		return nil
	})

	publisher, err := NewKafkaPublisher(producer, "checkout-events", zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, publisher.Publish(context.Background(), sampleEvent()))
	require.NoError(t, publisher.Close())
	require.NoError(t, publisher.Close())

	assert.ErrorIs(t, publisher.Publish(context.Background(), sampleEvent()), ErrPublisherClosed)
}

func TestKafkaPublisherLogsDeliveryFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	producer := mocks.NewAsyncProducer(t, NewProducerConfig())
	producer.ExpectInputAndFail(errors.New("broker down"))

	publisher, err := NewKafkaPublisher(producer, "checkout-events", zap.New(core))
	require.NoError(t, err)

	require.NoError(t, publisher.Publish(context.Background(), sampleEvent()))
	require.NoError(t, publisher.Close())

	entries := logs.FilterMessage("kafka publish failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "tok-123", entries[0].ContextMap()["key"])
}

func TestNewKafkaPublisherValidates(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "topic", nil)
	assert.Error(t, err)

	producer := mocks.NewAsyncProducer(t, NewProducerConfig())
	_, err = NewKafkaPublisher(producer, "", nil)
	assert.Error(t, err)
	require.NoError(t, producer.Close())

	_, err = DialKafka(nil, "topic", nil)
	assert.Error(t, err)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), sampleEvent()))
}
