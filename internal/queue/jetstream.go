package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/config"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/logger"
)

// HeaderCorrelationID carries the request correlation id across the queue hop.
const HeaderCorrelationID = "X-Correlation-ID"

// Client wraps NATS JetStream functionality for the lead delivery queue
type Client struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new NATS JetStream client
func NewClient(url string) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Log.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, s *nats.Subscription, err error) {
			logger.Log.Error("NATS error", zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &Client{
		nc: nc,
		js: js,
	}, nil
}

// DeliveryStreamConfig builds the stream configuration for the lead delivery
// queue from service config.
func DeliveryStreamConfig(cfg config.QueueConfig) *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject},
		Retention: nats.WorkQueuePolicy,
		MaxAge:    time.Duration(cfg.MaxAgeDays) * 24 * time.Hour,
		Storage:   nats.FileStorage,
	}
}

// DeliveryConsumerName returns the durable consumer name for a stream.
func DeliveryConsumerName(stream string) string {
	return stream + "_worker"
}

// DeliveryConsumerConfig builds the pull consumer configuration for the lead
// delivery queue from service config.
func DeliveryConsumerConfig(cfg config.QueueConfig) *nats.ConsumerConfig {
	return &nats.ConsumerConfig{
		Durable:       DeliveryConsumerName(cfg.Stream),
		AckPolicy:     nats.AckExplicitPolicy,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: cfg.MaxAckPending,
		FilterSubject: cfg.Subject,
	}
}

// SetupStream ensures the stream exists with the given configuration
func (c *Client) SetupStream(ctx context.Context, streamConfig *nats.StreamConfig) error {
	log := logger.FromContext(ctx)

	stream, err := c.js.StreamInfo(streamConfig.Name)
	if err != nil && !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to get stream info for '%s': %w", streamConfig.Name, err)
	}

	if stream == nil {
		_, err = c.js.AddStream(streamConfig)
		if err != nil {
			return fmt.Errorf("failed to add stream '%s': %w", streamConfig.Name, err)
		}
		log.Info("Created stream",
			zap.String("name", streamConfig.Name),
			zap.Any("subjects", streamConfig.Subjects),
		)
		return nil
	}

	// Update the stream if the provided config drifted from the live one
	if streamConfigDrifted(stream.Config, *streamConfig) {
		_, err = c.js.UpdateStream(streamConfig)
		if err != nil {
			return fmt.Errorf("failed to update stream '%s': %w", streamConfig.Name, err)
		}
		log.Info("Updated stream",
			zap.String("name", streamConfig.Name),
			zap.Any("subjects", streamConfig.Subjects),
		)
	}

	return nil
}

// SetupConsumer ensures the consumer exists with the given configuration for a specific stream
func (c *Client) SetupConsumer(ctx context.Context, streamName string, consumerConfig *nats.ConsumerConfig) error {
	log := logger.FromContext(ctx).With(zap.String("stream", streamName), zap.String("consumer", consumerConfig.Durable))

	consumer, err := c.js.ConsumerInfo(streamName, consumerConfig.Durable)
	if err != nil && !errors.Is(err, nats.ErrConsumerNotFound) {
		return fmt.Errorf("failed to get consumer info for stream '%s', consumer '%s': %w", streamName, consumerConfig.Durable, err)
	}

	if consumer == nil {
		_, err = c.js.AddConsumer(streamName, consumerConfig)
		if err != nil {
			return fmt.Errorf("failed to add consumer '%s' to stream '%s': %w", consumerConfig.Durable, streamName, err)
		}
		log.Info("Created consumer", zap.String("filter_subject", consumerConfig.FilterSubject))
		return nil
	}

	// Consumer updates are delete/add; most fields are immutable in place.
	if consumerConfigDrifted(consumer.Config, *consumerConfig) {
		log.Warn("Consumer config mismatch, attempting update by delete/add")
		err = c.js.DeleteConsumer(streamName, consumerConfig.Durable)
		if err != nil {
			return fmt.Errorf("failed to delete existing consumer '%s' from stream '%s' for update: %w", consumerConfig.Durable, streamName, err)
		}
		_, err = c.js.AddConsumer(streamName, consumerConfig)
		if err != nil {
			return fmt.Errorf("failed to re-add consumer '%s' to stream '%s' during update: %w", consumerConfig.Durable, streamName, err)
		}
		log.Info("Updated consumer", zap.String("filter_subject", consumerConfig.FilterSubject))
	}

	return nil
}

// streamConfigDrifted reports whether the live delivery stream differs from
// the desired configuration on the fields this service manages.
func streamConfigDrifted(live, want nats.StreamConfig) bool {
	if live.Name != want.Name ||
		live.Retention != want.Retention ||
		live.MaxAge != want.MaxAge ||
		live.Storage != want.Storage {
		return true
	}
	if len(live.Subjects) != len(want.Subjects) {
		return true
	}
	for i := range want.Subjects {
		if live.Subjects[i] != want.Subjects[i] {
			return true
		}
	}
	return false
}

// consumerConfigDrifted reports whether the live delivery consumer differs
// from the desired configuration on the fields this service manages.
func consumerConfigDrifted(live, want nats.ConsumerConfig) bool {
	return live.Durable != want.Durable ||
		live.AckPolicy != want.AckPolicy ||
		live.AckWait != want.AckWait ||
		live.MaxDeliver != want.MaxDeliver ||
		live.MaxAckPending != want.MaxAckPending ||
		live.FilterSubject != want.FilterSubject
}

// SubscribePull creates a pull-based consumer subscription
func (c *Client) SubscribePull(streamName, subject, consumer string) (*nats.Subscription, error) {
	sub, err := c.js.PullSubscribe(
		subject,
		consumer,
		nats.Bind(streamName, consumer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pull subscription for stream '%s', consumer '%s': %w", streamName, consumer, err)
	}

	return sub, nil
}

// Publish publishes a message to a subject with optional headers
func (c *Client) Publish(subject string, data []byte, headers map[string]string) error {
	msg := nats.NewMsg(subject)
	msg.Data = data

	if headers != nil {
		for k, v := range headers {
			msg.Header.Add(k, v)
		}
	}

	_, err := c.js.PublishMsg(msg)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	return nil
}

// NatsConn returns the underlying *nats.Conn
func (c *Client) NatsConn() *nats.Conn {
	return c.nc
}

// Ready verifies the NATS connection is established, used by the readiness
// probe.
func (c *Client) Ready(_ context.Context) error {
	if c.nc == nil {
		return errors.New("nats connection is not established")
	}
	if status := c.nc.Status(); status != nats.CONNECTED {
		return fmt.Errorf("nats connection status %s", status)
	}
	return nil
}

// Close closes the NATS connection
func (c *Client) Close() {
	if c.nc != nil {
		c.nc.Close()
	}
}
