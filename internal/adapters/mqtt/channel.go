// Package mqtt implements the sender channel over an MQTT broker.
//
// Senders publish records to <prefix>/in/<sender> and receive replies on
// <prefix>/out/<sender>. The payload encoding is detected per message.
package mqtt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/bft-labs/subcast/internal/codec"
	"github.com/bft-labs/subcast/internal/domain"
	"github.com/bft-labs/subcast/internal/ports"
	"github.com/bft-labs/subcast/pkg/log"
)

const (
	connectTimeout   = 5 * time.Second
	subscribeTimeout = 5 * time.Second
	publishTimeout   = 2 * time.Second
)

// Config describes the broker connection.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the channel logger.
func WithLogger(l log.Logger) Option {
	return func(c *Channel) {
		c.logger = log.OrNoop(l)
	}
}

// WithClient injects a preconfigured client instead of dialing Config.Broker.
func WithClient(client paho.Client) Option {
	return func(c *Channel) {
		c.client = client
	}
}

// Channel implements ports.Channel on an MQTT client.
type Channel struct {
	cfg    Config
	logger log.Logger

	mu        sync.RWMutex
	client    paho.Client
	connected bool
	closed    bool
}

// New creates an MQTT channel.
func New(cfg Config, opts ...Option) *Channel {
	c := &Channel{cfg: cfg, logger: log.NoopLogger{}}
	if c.cfg.TopicPrefix == "" {
		c.cfg.TopicPrefix = "subcast"
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InTopic returns the topic a sender publishes to.
func (c *Channel) InTopic(senderID string) string {
	return c.cfg.TopicPrefix + "/in/" + senderID
}

// OutTopic returns the topic replies to a sender are published on.
func (c *Channel) OutTopic(senderID string) string {
	return c.cfg.TopicPrefix + "/out/" + senderID
}

// Start implements ports.Channel. It connects, subscribes to every sender's
// inbound topic and returns once the subscription is acknowledged.
func (c *Channel) Start(ctx context.Context, deliver ports.DeliverFunc) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrChannelClosed
	}
	if c.client == nil {
		c.client = paho.NewClient(c.clientOptions())
	}
	client := c.client
	c.mu.Unlock()

	if !client.IsConnected() {
		c.logger.Info("connecting to mqtt broker", log.String("broker", c.cfg.Broker))
		token := client.Connect()
		if !token.WaitTimeout(connectTimeout) {
			return fmt.Errorf("mqtt connection timeout")
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connection failed: %w", err)
		}
	}
	c.setConnected(true)

	filter := c.InTopic("+")
	token := client.Subscribe(filter, c.cfg.QoS, func(_ paho.Client, msg paho.Message) {
		senderID, ok := c.senderFromTopic(msg.Topic())
		if !ok {
			return
		}
		payload := msg.Payload()
		deliver(ports.Inbound{
			SenderID: senderID,
			Format:   codec.DetectFormat(payload),
			Data:     payload,
		})
	})
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("mqtt subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscription failed: %w", err)
	}
	c.logger.Info("mqtt channel subscribed", log.String("topic", filter))

	go func() {
		<-ctx.Done()
		c.Close()
	}()
	return nil
}

// Send implements ports.Channel.
func (c *Channel) Send(ctx context.Context, senderID string, data []byte, _ ports.Format) error {
	c.mu.RLock()
	client, closed, connected := c.client, c.closed, c.connected
	c.mu.RUnlock()
	if closed || client == nil {
		return domain.ErrChannelClosed
	}
	if !connected {
		return fmt.Errorf("mqtt not connected")
	}

	token := client.Publish(c.OutTopic(senderID), c.cfg.QoS, false, data)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// Close implements ports.Channel.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	client := c.client
	c.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Unsubscribe(c.InTopic("+")).WaitTimeout(subscribeTimeout)
		client.Disconnect(250)
		c.logger.Info("mqtt disconnected")
	}
	return nil
}

// Connected reports whether the broker connection is up.
func (c *Channel) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Channel) clientOptions() *paho.ClientOptions {
	opts := paho.NewClientOptions()
	broker := c.cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	opts.AddBroker(broker)
	opts.SetClientID(c.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(paho.Client) {
		c.setConnected(true)
		c.logger.Info("mqtt connection established",
			log.String("broker", c.cfg.Broker),
			log.String("client_id", c.cfg.ClientID))
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		c.setConnected(false)
		c.logger.Warn("mqtt connection lost, will auto-reconnect",
			log.String("broker", c.cfg.Broker),
			log.Err(err))
	}
	return opts
}

func (c *Channel) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *Channel) senderFromTopic(topic string) (string, bool) {
	prefix := c.cfg.TopicPrefix + "/in/"
	id, ok := strings.CutPrefix(topic, prefix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

var _ ports.Channel = (*Channel)(nil)
