package queue

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/config"
)

func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{
		Enabled:       true,
		URL:           "nats://localhost:4222",
		Stream:        "lead_delivery",
		Subject:       "v1.leads.delivery",
		Workers:       4,
		MaxAgeDays:    7,
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
	}
}

func TestDeliveryStreamConfig(t *testing.T) {
	sc := DeliveryStreamConfig(testQueueConfig())

	assert.Equal(t, "lead_delivery", sc.Name)
	assert.Equal(t, []string{"v1.leads.delivery"}, sc.Subjects)
	assert.Equal(t, nats.WorkQueuePolicy, sc.Retention)
	assert.Equal(t, 7*24*time.Hour, sc.MaxAge)
	assert.Equal(t, nats.FileStorage, sc.Storage)
}

func TestDeliveryConsumerConfig(t *testing.T) {
	cc := DeliveryConsumerConfig(testQueueConfig())

	assert.Equal(t, "lead_delivery_worker", cc.Durable)
	assert.Equal(t, nats.AckExplicitPolicy, cc.AckPolicy)
	assert.Equal(t, 30*time.Second, cc.AckWait)
	assert.Equal(t, 5, cc.MaxDeliver)
	assert.Equal(t, 100, cc.MaxAckPending)
	assert.Equal(t, "v1.leads.delivery", cc.FilterSubject)
}

func TestDeliveryConsumerName(t *testing.T) {
	assert.Equal(t, "lead_delivery_worker", DeliveryConsumerName("lead_delivery"))
}

func TestStreamConfigDrifted(t *testing.T) {
	want := *DeliveryStreamConfig(testQueueConfig())

	assert.False(t, streamConfigDrifted(want, want))

	aged := want
	aged.MaxAge = 24 * time.Hour
	assert.True(t, streamConfigDrifted(aged, want))

	moved := want
	moved.Subjects = []string{"v1.leads.other"}
	assert.True(t, streamConfigDrifted(moved, want))
}

func TestConsumerConfigDrifted(t *testing.T) {
	want := *DeliveryConsumerConfig(testQueueConfig())

	assert.False(t, consumerConfigDrifted(want, want))

	impatient := want
	impatient.AckWait = 5 * time.Second
	assert.True(t, consumerConfigDrifted(impatient, want))

	widened := want
	widened.MaxAckPending = 500
	assert.True(t, consumerConfigDrifted(widened, want))
}

func TestReady_WithoutConnection(t *testing.T) {
	c := &Client{}

	err := c.Ready(context.Background())
	assert.ErrorContains(t, err, "not established")
}
