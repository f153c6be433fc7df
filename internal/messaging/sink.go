package messaging

import "log"

// Sink adapts the NATS client to the engine's event sink. Publishes are
// fire-and-forget: failures are logged and dropped, since a missing
// subscriber just means the connection is already gone.
type Sink struct {
	nc *NATSClient
}

// NewSink creates a Sink over an established NATS client.
func NewSink(nc *NATSClient) *Sink {
	return &Sink{nc: nc}
}

// Send publishes an event to a single connection's subject.
func (s *Sink) Send(connID string, data []byte) {
	if err := s.nc.PublishUser(connID, data); err != nil {
		log.Printf("[nats] publish user event for %s: %v", connID, err)
	}
}

// Broadcast publishes an event to the global broadcast subject.
func (s *Sink) Broadcast(data []byte) {
	if err := s.nc.PublishBroadcast(data); err != nil {
		log.Printf("[nats] publish broadcast: %v", err)
	}
}
