// Package messaging provides a NATS client wrapper for the pairing server.
// The transport front-end publishes tagged engine commands on a shared
// subject; the engine publishes outbound events on per-connection subjects
// and a global broadcast subject.
package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pairchat/server/internal/protocol"
)

// NATS subject patterns.
const (
	SubjectCommand   = "core.command"
	SubjectUser      = "core.user" // + .<conn_id>
	SubjectBroadcast = "core.broadcast"
)

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "pairchat",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// PublishCommand publishes a tagged engine command.
func (c *NATSClient) PublishCommand(cmd protocol.Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("nats: marshal command: %w", err)
	}
	return c.Publish(SubjectCommand, data)
}

// SubscribeCommands registers the engine-side command consumer. Malformed
// commands are logged and dropped.
func (c *NATSClient) SubscribeCommands(handler func(protocol.Command)) error {
	return c.subscribe(SubjectCommand, func(msg *nats.Msg) {
		var cmd protocol.Command
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			log.Printf("[nats] invalid command: %v", err)
			return
		}
		handler(cmd)
	})
}

// PublishUser publishes an event to a single connection's subject.
func (c *NATSClient) PublishUser(connID string, data []byte) error {
	return c.Publish(SubjectUser+"."+connID, data)
}

// SubscribeUser subscribes to one connection's event subject.
func (c *NATSClient) SubscribeUser(connID string, handler func(data []byte)) error {
	return c.subscribe(SubjectUser+"."+connID, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// UnsubscribeUser drops the subscription for one connection's subject.
func (c *NATSClient) UnsubscribeUser(connID string) error {
	return c.unsubscribe(SubjectUser + "." + connID)
}

// PublishBroadcast publishes an event destined for every connected client.
func (c *NATSClient) PublishBroadcast(data []byte) error {
	return c.Publish(SubjectBroadcast, data)
}

// SubscribeBroadcast subscribes to the global broadcast subject.
func (c *NATSClient) SubscribeBroadcast(handler func(data []byte)) error {
	return c.subscribe(SubjectBroadcast, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}

// subscribe registers a handler and stores the subscription for cleanup.
func (c *NATSClient) subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()

	return nil
}

// unsubscribe removes and unsubscribes from a specific subject.
func (c *NATSClient) unsubscribe(subject string) error {
	c.mu.Lock()
	sub, ok := c.subs[subject]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for subject %s", subject)
	}
	delete(c.subs, subject)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", subject, err)
	}
	return nil
}
