package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/llmify/llmstxt-service/common/config"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// NatsBroker wraps the NATS connection and its JetStream context. All queue
// traffic in the service goes through JetStream; plain subjects are used
// only for fire-and-forget notifications.
type NatsBroker struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	config config.Config
}

// NewNatsBroker creates a new NATS message broker
func NewNatsBroker(cfg config.Config) (*NatsBroker, error) {
	client := &NatsBroker{
		config: cfg,
	}

	if err := client.connect(); err != nil {
		return nil, err
	}

	return client, nil
}

// connect connects to the NATS server
func (c *NatsBroker) connect() error {
	var err error

	opts := []nats.Option{
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("server", nc.ConnectedUrl()).Msg("Reconnected to NATS")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).
				Str("subject", sub.Subject).
				Msg("Error handling NATS message")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info().Msg("NATS connection closed")
		}),
	}

	if c.config.Nats.Username != "" && c.config.Nats.Password != "" {
		opts = append(opts, nats.UserInfo(c.config.Nats.Username, c.config.Nats.Password))
	}

	c.conn, err = nats.Connect(c.config.Nats.URL(), opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(c.conn)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}
	c.js = js

	log.Info().Str("server", c.conn.ConnectedUrl()).Msg("Connected to NATS")
	return nil
}

// Close drains the connection, gracefully unsubscribing consumers
func (c *NatsBroker) Close() error {
	if c.conn != nil && c.conn.IsConnected() {
		return c.conn.Drain()
	}
	return nil
}

// PublishSync publishes to a JetStream subject and waits for the ack
func (c *NatsBroker) PublishSync(ctx context.Context, subject string, data []byte) error {
	if c.js == nil {
		return fmt.Errorf("JetStream not initialized")
	}

	_, err := c.js.Publish(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish message to %s: %w", subject, err)
	}

	return nil
}

// PublishMsg publishes a prepared message (headers included) to JetStream
// and waits for the ack. The returned ack carries the Duplicate flag when
// the server deduplicated by Nats-Msg-Id.
func (c *NatsBroker) PublishMsg(ctx context.Context, msg *nats.Msg) (*jetstream.PubAck, error) {
	if c.js == nil {
		return nil, fmt.Errorf("JetStream not initialized")
	}

	ack, err := c.js.PublishMsg(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to publish message to %s: %w", msg.Subject, err)
	}
	return ack, nil
}

// Notify publishes a fire-and-forget message on a core NATS subject
func (c *NatsBroker) Notify(subject string, data []byte) error {
	if c.conn == nil || !c.conn.IsConnected() {
		return fmt.Errorf("not connected to NATS")
	}
	return c.conn.Publish(subject, data)
}

// CreateStream creates or updates a JetStream stream
func (c *NatsBroker) CreateStream(ctx context.Context, config jetstream.StreamConfig) (jetstream.Stream, error) {
	if c.js == nil {
		return nil, fmt.Errorf("JetStream not initialized")
	}

	stream, err := c.js.CreateOrUpdateStream(ctx, config)
	if err != nil {
		log.Error().Err(err).Str("stream", config.Name).Msg("Failed to create or update stream")
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream info: %w", err)
	}

	log.Info().
		Str("name", info.Config.Name).
		Strs("subjects", info.Config.Subjects).
		Msg("Created JetStream stream")

	return stream, nil
}

// GetStream gets a JetStream stream
func (c *NatsBroker) GetStream(ctx context.Context, streamName string) (jetstream.Stream, error) {
	if c.js == nil {
		return nil, fmt.Errorf("JetStream not initialized")
	}

	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream: %w", err)
	}

	return stream, nil
}

// EnsureStream ensures a stream exists with the specified subjects
func (c *NatsBroker) EnsureStream(ctx context.Context, config jetstream.StreamConfig) (jetstream.Stream, error) {
	stream, err := c.GetStream(ctx, config.Name)
	if err != nil {
		if !errors.Is(err, jetstream.ErrStreamNotFound) && !strings.Contains(err.Error(), "stream not found") {
			log.Error().Err(err).Str("stream_name", config.Name).Msg("Failed to get stream for unknown reasons")
			return nil, err
		}
		return c.CreateStream(ctx, config)
	}
	return stream, nil
}

// CreateConsumer creates or updates a durable consumer on a stream
func (c *NatsBroker) CreateConsumer(ctx context.Context, streamName string, config jetstream.ConsumerConfig) (jetstream.Consumer, error) {
	if c.js == nil {
		return nil, fmt.Errorf("JetStream not initialized")
	}

	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream: %w", err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	info, err := consumer.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get consumer info: %w", err)
	}

	log.Info().
		Str("name", info.Name).
		Str("stream", streamName).
		Msg("Created JetStream consumer")

	return consumer, nil
}

// GetJetStream returns the JetStream context
func (c *NatsBroker) GetJetStream() jetstream.JetStream {
	return c.js
}

// GetConn returns the NATS connection
func (c *NatsBroker) GetConn() *nats.Conn {
	return c.conn
}

// SetupNatsBroker initializes the NATS broker
func SetupNatsBroker(cfg config.Config) (*NatsBroker, error) {
	client, err := NewNatsBroker(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating NATS client: %w", err)
	}

	return client, nil
}
