package ws

import (
	"log"
	"time"

	"github.com/gobwas/ws"
)

// HeartbeatConfig tunes the liveness monitor.
type HeartbeatConfig struct {
	Interval time.Duration // time between ping rounds
	Timeout  time.Duration // grace period after a ping before the connection counts as dead
}

// DefaultHeartbeatConfig returns the production heartbeat parameters.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// StartHeartbeat launches the background liveness monitor. Each round it
// evicts connections with no activity inside Interval+Timeout and pings the
// rest at the WebSocket protocol level (opcode 0x9), which browsers answer
// automatically. The goroutine exits with the server's done channel.
func StartHeartbeat(server *Server, config HeartbeatConfig) {
	go func() {
		ticker := time.NewTicker(config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-server.done:
				return
			case <-ticker.C:
				heartbeatRound(server, config)
			}
		}
	}()
}

// heartbeatRound walks the current connections once.
func heartbeatRound(server *Server, config HeartbeatConfig) {
	stale := config.Interval + config.Timeout
	now := time.Now()

	for _, c := range server.Connections().All() {
		idle := now.Sub(c.LastPing)
		if idle > stale {
			log.Printf("ws: heartbeat timeout conn=%s idle=%s", c.ID, idle.Round(time.Second))
			server.RemoveConnection(c)
			continue
		}

		if err := c.WritePing(); err != nil {
			log.Printf("ws: heartbeat ping failed conn=%s: %v", c.ID, err)
			server.RemoveConnection(c)
		}
	}
}

// WritePing sends a protocol-level ping frame. The write mutex keeps it from
// interleaving with application frames.
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPingFrame(nil))
}
