package engine

import (
	"log"
	"time"

	"github.com/pairchat/server/internal/metrics"
	"github.com/pairchat/server/internal/protocol"
)

// sweepLoop runs the periodic expiry sweep until the engine is stopped.
func (e *Engine) sweepLoop() {
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			log.Println("[engine] sweep loop stopped")
			return
		case <-ticker.C:
			e.sweep(time.Now())
		}
	}
}

// sweep evicts sessions idle past the session timeout, cascading removal of
// their queue, pairing, and retry state, then removes blocked-pair records
// whose expiry has passed. Expiry checks compare actual timestamps; nothing
// here is probabilistic.
func (e *Engine) sweep(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	evicted := 0
	for _, sess := range e.sessions.All() {
		if now.Sub(sess.LastActivity) <= e.cfg.SessionTimeout {
			continue
		}

		e.queue.Remove(sess.ConnID)
		e.retries.Reset(sess.ConnID)

		if partner, episodeID, ok := e.pairs.Unpair(sess.ConnID); ok {
			if psess := e.sessions.Get(partner); psess != nil {
				psess.PreviousPartners = append(psess.PreviousPartners, sess.ConnID)
				e.send(partner, protocol.TypePartnerDisconnected, protocol.PartnerDisconnectedMsg{Reason: "session_expired"})
			}
			e.blocked.Block(sess.ConnID, partner, now.Add(e.cfg.BlockedPairTTL))
			e.recorder.EpisodeEnded(episodeID, "session_expired", now)
		}

		e.sessions.Close(sess.ConnID)
		evicted++
	}

	expired := e.blocked.SweepExpired(now)

	if evicted > 0 {
		e.broadcastCountsLocked()
	}
	if evicted > 0 || expired > 0 {
		log.Printf("[engine] sweep: evicted %d stale sessions, expired %d blocked pairs", evicted, expired)
	}

	metrics.ConnectedUsers.Set(float64(e.sessions.Len()))
	metrics.QueueSize.Set(float64(e.queue.Size()))
	metrics.ActivePairs.Set(float64(e.pairs.Len()))
}
