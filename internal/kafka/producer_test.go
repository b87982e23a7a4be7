package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-grouporder/internal/logger"
)

func TestNewProducer_WriterConfig(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, logger.Discard())
	defer p.Close()

	require.NotNil(t, p.Writer)
	assert.Equal(t, "localhost:9092", p.Writer.Addr.String())
	assert.True(t, p.Writer.AllowAutoTopicCreation)
	assert.Empty(t, p.Writer.Topic, "topic is chosen per message")
}

func TestPublishJSON_RejectsUnencodableValue(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, logger.Discard())
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := p.PublishJSON(ctx, "topic", "key", map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode topic message")
}

func TestEnsureTopicsExist_NoBrokers(t *testing.T) {
	err := EnsureTopicsExist(nil, []string{"t"}, logger.Discard())
	assert.Error(t, err)
}
