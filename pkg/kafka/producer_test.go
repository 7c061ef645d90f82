package kafka

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prohmpiriya/multicore-crm/pkg/logger"
)

func TestLogPublisher_NeverFails(t *testing.T) {
	p := NewLogPublisher(logger.NewNop())
	defer p.Close()

	err := p.Publish(context.Background(), "crm.identity.events", Event{Type: "identity.registered", Key: "id-1"})
	assert.NoError(t, err)
}

func TestProducer_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	brokers := os.Getenv("TEST_KAFKA_BROKERS")
	if brokers == "" {
		brokers = "localhost:9092"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := NewProducer(ctx, ProducerConfig{Brokers: strings.Split(brokers, ","), ClientID: "producer-test"})
	require.NoError(t, err)
	defer p.Close()

	err = p.Publish(ctx, "crm.test.events", Event{Type: "test", Key: "k", Payload: map[string]string{"a": "b"}})
	assert.NoError(t, err)
}
