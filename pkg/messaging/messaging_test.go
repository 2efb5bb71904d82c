package messaging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/config"
)

func TestNewWithoutBrokersLogsOnly(t *testing.T) {
	config.Set("KAFKA_BROKERS", "")
	p := New()
	_, ok := p.(LogPublisher)
	assert.True(t, ok)
	assert.NoError(t, p.Publish(context.Background(), "orders.placed", "o-1", map[string]string{}))
}

func TestNewWithBrokersUsesKafka(t *testing.T) {
	config.Set("KAFKA_BROKERS", "localhost:9092,localhost:9093")
	t.Cleanup(func() { config.Set("KAFKA_BROKERS", "") })

	p := New()
	kp, ok := p.(*KafkaPublisher)
	require.True(t, ok)
	assert.Equal(t, []string{"localhost:9092", "localhost:9093"}, kp.brokers)

	w1 := kp.writer("orders.placed")
	assert.Same(t, w1, kp.writer("orders.placed"))
	assert.Equal(t, "orders.placed", w1.Topic)
	assert.NoError(t, kp.Close())
}

func TestMemoryPublisherCaptures(t *testing.T) {
	p := &MemoryPublisher{}
	require.NoError(t, p.Publish(context.Background(), "orders.placed", "o-9", map[string]int{"items": 2}))

	msgs := p.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "o-9", msgs[0].Key)
	assert.JSONEq(t, `{"items":2}`, string(msgs[0].Value))
}
