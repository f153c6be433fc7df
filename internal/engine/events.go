package engine

import (
	"log"
	"time"

	"github.com/pairchat/server/internal/protocol"
)

// Sink delivers outbound notifications produced by the engine. Delivery is
// fire-and-forget: implementations must not block and must silently drop
// events for connections that no longer exist. Both methods may be called
// while the engine holds its internal lock.
type Sink interface {
	// Send delivers an event to a single connection.
	Send(connID string, data []byte)
	// Broadcast delivers an event to every connected client.
	Broadcast(data []byte)
}

// Recorder observes pairing episodes for offline bookkeeping. Implementations
// must not block; the engine calls these inline.
type Recorder interface {
	EpisodeStarted(ep EpisodeStart)
	EpisodeEnded(episodeID, reason string, endedAt time.Time)
}

// EpisodeStart describes a fresh pairing. Session tokens, not connection IDs,
// identify the participants so records stay meaningful across reconnects.
type EpisodeStart struct {
	ID        string
	SessionA  string
	SessionB  string
	CountryA  string
	CountryB  string
	StartedAt time.Time
}

// NopRecorder discards all episode notifications.
type NopRecorder struct{}

func (NopRecorder) EpisodeStarted(EpisodeStart)            {}
func (NopRecorder) EpisodeEnded(string, string, time.Time) {}

// send builds a server message and hands it to the sink. Build failures are
// logged and dropped; there is nobody to surface them to.
func (e *Engine) send(connID, msgType string, payload interface{}) {
	data, err := protocol.NewServerMessage(msgType, payload)
	if err != nil {
		log.Printf("[engine] build %s for %s: %v", msgType, connID, err)
		return
	}
	e.sink.Send(connID, data)
}

// broadcastCountsLocked pushes the connected-user count and the monotonic
// connection total to every client. Caller must hold e.mu.
func (e *Engine) broadcastCountsLocked() {
	if data, err := protocol.NewServerMessage(protocol.TypeUserCount, protocol.UserCountMsg{
		Count: e.sessions.Len(),
	}); err == nil {
		e.sink.Broadcast(data)
	}
	if data, err := protocol.NewServerMessage(protocol.TypeTotalConnections, protocol.TotalConnectionsMsg{
		Count: e.totalConnections,
	}); err == nil {
		e.sink.Broadcast(data)
	}
}
