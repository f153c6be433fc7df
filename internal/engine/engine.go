// Package engine implements the matchmaking and connection-lifecycle core:
// the session registry, waiting queue, partner scoring, pairing table,
// blocked-pair exclusions, retry backoff, and the periodic expiry sweep.
//
// One Engine value owns all of this state behind a single mutex. Inbound
// events arrive as tagged commands (Dispatch) or direct method calls;
// outbound notifications leave through the Sink. Timers fire asynchronously
// but re-check state under the same lock, so a stale timer is always a
// no-op.
package engine

import (
	"context"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pairchat/server/internal/metrics"
	"github.com/pairchat/server/internal/protocol"
)

// Engine is the matchmaking engine. All exported methods are goroutine safe.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	sink     Sink
	recorder Recorder
	jitter   func() float64 // returns [0, 1); replaceable in tests

	sessions *Registry
	queue    *WaitingQueue
	pairs    *PairingTable
	blocked  *BlockedPairSet
	retries  *RetryController

	totalConnections int64

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an Engine with the given configuration and event sink. A nil
// recorder disables episode bookkeeping.
func New(cfg Config, sink Sink, recorder Recorder) *Engine {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:      cfg,
		sink:     sink,
		recorder: recorder,
		jitter:   rand.Float64,
		sessions: NewRegistry(),
		queue:    NewWaitingQueue(),
		pairs:    NewPairingTable(),
		blocked:  NewBlockedPairSet(),
		retries:  NewRetryController(cfg.MaxRetryAttempts, cfg.RetryBaseDelay),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the background expiry sweep.
func (e *Engine) Start() {
	go e.sweepLoop()
	log.Printf("[engine] started (retry_max=%d, waiting_deadline=%s, blocked_ttl=%s, session_timeout=%s)",
		e.cfg.MaxRetryAttempts, e.cfg.WaitingDeadline, e.cfg.BlockedPairTTL, e.cfg.SessionTimeout)
}

// Stop terminates the background sweep. Pending one-shot timers become
// no-ops on their own.
func (e *Engine) Stop() {
	e.cancel()
	log.Println("[engine] stopped")
}

// Dispatch consumes one tagged inbound command.
func (e *Engine) Dispatch(cmd protocol.Command) {
	switch cmd.Type {
	case protocol.CmdConnect:
		e.Connect(cmd.ConnID)
	case protocol.CmdDisconnect:
		reason := cmd.Reason
		if reason == "" {
			reason = "disconnect"
		}
		e.Disconnect(cmd.ConnID, reason)
	case protocol.TypeReportLocation:
		var m protocol.ReportLocationMsg
		if err := cmd.DecodePayload(&m); err != nil {
			log.Printf("[engine] %v", err)
			return
		}
		e.ReportLocation(cmd.ConnID, m.Country, m.Continent, m.Timezone)
	case protocol.TypeFindPartner:
		var m protocol.FindPartnerMsg
		if err := cmd.DecodePayload(&m); err != nil {
			log.Printf("[engine] %v", err)
			return
		}
		e.FindPartner(cmd.ConnID, m.Interests, m.PreferSameCountry)
	case protocol.TypeRetryConnection:
		e.RetryConnection(cmd.ConnID)
	case protocol.TypeSendMessage:
		var m protocol.SendMessageMsg
		if err := cmd.DecodePayload(&m); err != nil {
			log.Printf("[engine] %v", err)
			return
		}
		e.SendMessage(cmd.ConnID, m.Message)
	case protocol.TypeTyping:
		e.Typing(cmd.ConnID)
	case protocol.TypeStopTyping:
		e.StopTyping(cmd.ConnID)
	case protocol.TypeNewChat:
		e.NewChat(cmd.ConnID)
	default:
		log.Printf("[engine] unknown command type %q from %s", cmd.Type, cmd.ConnID)
	}
}

// Connect opens a session for a fresh connection and broadcasts the updated
// counters. Reconnecting an already-known connID is a no-op.
func (e *Engine) Connect(connID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sessions.Get(connID) != nil {
		return
	}
	now := time.Now()
	sess := e.sessions.Open(connID, now)
	e.totalConnections++

	metrics.ConnectedUsers.Set(float64(e.sessions.Len()))

	e.send(connID, protocol.TypeSessionCreated, protocol.SessionCreatedMsg{SessionID: sess.Token})
	e.send(connID, protocol.TypeRequestLocation, protocol.RequestLocationMsg{})
	e.broadcastCountsLocked()

	log.Printf("[engine] connected conn=%s session=%s (users=%d, total=%d)",
		connID, sess.Token, e.sessions.Len(), e.totalConnections)
}

// Disconnect removes the user everywhere, notifies a current partner, and
// blocks the separated pair for the configured TTL.
func (e *Engine) Disconnect(connID, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sessions.Get(connID) == nil {
		return
	}
	now := time.Now()

	e.queue.Remove(connID)
	e.retries.Reset(connID)

	if partner, episodeID, ok := e.pairs.Unpair(connID); ok {
		if psess := e.sessions.Get(partner); psess != nil {
			psess.PreviousPartners = append(psess.PreviousPartners, connID)
			e.send(partner, protocol.TypePartnerDisconnected, protocol.PartnerDisconnectedMsg{Reason: reason})
		}
		e.blocked.Block(connID, partner, now.Add(e.cfg.BlockedPairTTL))
		e.recorder.EpisodeEnded(episodeID, reason, now)
		metrics.ActivePairs.Set(float64(e.pairs.Len()))
	}

	e.sessions.Close(connID)
	e.broadcastCountsLocked()

	metrics.ConnectedUsers.Set(float64(e.sessions.Len()))
	metrics.QueueSize.Set(float64(e.queue.Size()))

	log.Printf("[engine] disconnected conn=%s reason=%s (users=%d)", connID, reason, e.sessions.Len())
}

// ReportLocation stores the client's geolocation hint. Reports without a
// country are ignored, matching the best-effort contract.
func (e *Engine) ReportLocation(connID, country, continent, timezone string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if country == "" {
		return
	}
	if continent == "" {
		continent = "Unknown"
	}
	e.sessions.SetLocation(connID, Location{
		Country:   country,
		Continent: continent,
		Timezone:  timezone,
	})
}

// FindPartner stores the user's preferences and runs a partner search. On
// success both sides get partner_found; otherwise the user enters the
// waiting queue with a deadline.
func (e *Engine) FindPartner(connID string, interests []string, preferSameCountry bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess := e.sessions.Get(connID)
	if sess == nil {
		return
	}
	now := time.Now()
	sess.LastActivity = now
	sess.Prefs = &Preferences{
		Interests:         interests,
		PreferSameCountry: preferSameCountry,
		SetAt:             now,
	}

	if _, ok := e.pairs.PartnerOf(connID); ok {
		log.Printf("[engine] find_partner from paired conn=%s ignored", connID)
		return
	}

	e.findPartnerLocked(sess, now)
}

// findPartnerLocked runs the match-or-enqueue step. Caller must hold e.mu
// and have verified the session exists and is unpaired.
func (e *Engine) findPartnerLocked(sess *Session, now time.Time) {
	best := e.findBestMatchLocked(sess, now)
	if best != "" {
		waited := now.Sub(e.queue.Get(best).JoinedAt)
		e.queue.Remove(best)
		e.queue.Remove(sess.ConnID)
		e.pairLocked(sess, e.sessions.Get(best), now)
		metrics.MatchWaitSeconds.Observe(waited.Seconds())
		metrics.QueueSize.Set(float64(e.queue.Size()))
		return
	}

	seq, ok := e.queue.Enqueue(sess.ConnID, sess.Prefs, now)
	if !ok {
		log.Printf("[engine] conn=%s already in waiting queue", sess.ConnID)
		return
	}
	metrics.QueueSize.Set(float64(e.queue.Size()))

	e.send(sess.ConnID, protocol.TypeWaiting, protocol.WaitingMsg{QueuePosition: e.queue.Size()})
	log.Printf("[engine] conn=%s added to waiting queue (%d waiting)", sess.ConnID, e.queue.Size())

	e.scheduleWaitingDeadline(sess.ConnID, seq)
}

// scheduleWaitingDeadline arms the one-shot waiting timer. At fire time the
// entry must still exist with the same generation number, otherwise the
// timer is stale (matched, disconnected, or re-enqueued) and does nothing.
func (e *Engine) scheduleWaitingDeadline(connID string, seq uint64) {
	time.AfterFunc(e.cfg.WaitingDeadline, func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		entry := e.queue.Get(connID)
		if entry == nil || entry.Seq != seq {
			return
		}
		e.queue.Remove(connID)
		e.send(connID, protocol.TypeWaitingTimeout, protocol.WaitingTimeoutMsg{})

		metrics.WaitTimeoutsTotal.Inc()
		metrics.QueueSize.Set(float64(e.queue.Size()))
		log.Printf("[engine] waiting timeout conn=%s", connID)
	})
}

// findBestMatchLocked scores every waiting candidate against the requester
// and returns the best one, or "" if nobody survives exclusion. Greedy,
// single pass, O(queue size). Caller must hold e.mu.
func (e *Engine) findBestMatchLocked(req *Session, now time.Time) string {
	if req.Prefs == nil {
		return ""
	}

	hour := now.Hour()
	best := ""
	bestScore := math.Inf(-1)

	for _, entry := range e.queue.Snapshot() {
		if entry.ConnID == req.ConnID {
			continue
		}
		cand := e.sessions.Get(entry.ConnID)
		if cand == nil || cand.Prefs == nil {
			continue
		}
		if e.blocked.IsBlocked(req.ConnID, entry.ConnID) {
			continue
		}

		score := ScoreCandidate(req, cand, now.Sub(entry.JoinedAt), hour, e.jitter())
		if score > bestScore {
			bestScore = score
			best = entry.ConnID
		}
	}

	if best != "" {
		log.Printf("[engine] matched conn=%s with conn=%s (score=%.2f)", req.ConnID, best, bestScore)
	}
	return best
}

// pairLocked installs the pairing, resets both retry counters, notifies both
// sides, and records the episode. Caller must hold e.mu.
func (e *Engine) pairLocked(a, b *Session, now time.Time) {
	episodeID := uuid.New().String()
	if err := e.pairs.Pair(a.ConnID, b.ConnID, episodeID); err != nil {
		log.Printf("[engine] pair failed: %v", err)
		return
	}

	e.retries.Reset(a.ConnID)
	e.retries.Reset(b.ConnID)
	a.LastActivity = now
	b.LastActivity = now

	ts := now.UTC().Format(time.RFC3339)
	e.send(a.ConnID, protocol.TypePartnerFound, protocol.PartnerFoundMsg{
		PartnerID:      b.ConnID,
		PartnerCountry: countryOf(b),
		ConnectionID:   episodeID,
		Timestamp:      ts,
	})
	e.send(b.ConnID, protocol.TypePartnerFound, protocol.PartnerFoundMsg{
		PartnerID:      a.ConnID,
		PartnerCountry: countryOf(a),
		ConnectionID:   episodeID,
		Timestamp:      ts,
	})

	e.recorder.EpisodeStarted(EpisodeStart{
		ID:        episodeID,
		SessionA:  a.Token,
		SessionB:  b.Token,
		CountryA:  countryOf(a),
		CountryB:  countryOf(b),
		StartedAt: now,
	})

	metrics.MatchesTotal.Inc()
	metrics.ActivePairs.Set(float64(e.pairs.Len()))

	log.Printf("[engine] paired conn=%s (%s) with conn=%s (%s) episode=%s",
		a.ConnID, countryOf(a), b.ConnID, countryOf(b), episodeID)
}

// RetryConnection serves an explicit client retry request with linear
// backoff. The scheduled re-attempt only runs if the user is still connected
// and unpaired when the delay expires.
func (e *Engine) RetryConnection(connID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess := e.sessions.Get(connID)
	if sess == nil {
		return
	}
	now := time.Now()
	sess.LastActivity = now

	out := e.retries.Request(connID, now)
	if out.Exhausted {
		e.send(connID, protocol.TypeMaxRetriesReached, protocol.MaxRetriesReachedMsg{})
		metrics.RetryRequestsTotal.WithLabelValues("exhausted").Inc()
		log.Printf("[engine] max retries reached conn=%s", connID)
		return
	}

	e.send(connID, protocol.TypeRetryAttempt, protocol.RetryAttemptMsg{
		Attempt:     out.Attempt,
		MaxAttempts: e.cfg.MaxRetryAttempts,
		NextRetryIn: int(out.Delay.Milliseconds()),
	})
	metrics.RetryRequestsTotal.WithLabelValues("scheduled").Inc()
	log.Printf("[engine] retry %d/%d conn=%s in %s", out.Attempt, e.cfg.MaxRetryAttempts, connID, out.Delay)

	time.AfterFunc(out.Delay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		sess := e.sessions.Get(connID)
		if sess == nil || sess.Prefs == nil {
			return
		}
		if _, ok := e.pairs.PartnerOf(connID); ok {
			return
		}
		e.queue.Remove(connID)
		e.findPartnerLocked(sess, time.Now())
	})
}

// SendMessage relays a text message to the current partner. With no partner
// the message is silently dropped.
func (e *Engine) SendMessage(connID, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess := e.sessions.Get(connID)
	if sess == nil {
		return
	}
	sess.LastActivity = time.Now()

	partner, ok := e.pairs.PartnerOf(connID)
	if !ok {
		return
	}
	e.send(partner, protocol.TypeReceiveMessage, protocol.ReceiveMessageMsg{
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	metrics.MessagesRelayedTotal.WithLabelValues("message").Inc()
}

// Typing relays a typing indicator to the current partner.
func (e *Engine) Typing(connID string) {
	e.relayIndicator(connID, protocol.TypePartnerTyping)
}

// StopTyping relays a stopped-typing indicator to the current partner.
func (e *Engine) StopTyping(connID string) {
	e.relayIndicator(connID, protocol.TypePartnerStoppedTyping)
}

func (e *Engine) relayIndicator(connID, msgType string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess := e.sessions.Get(connID)
	if sess == nil {
		return
	}
	sess.LastActivity = time.Now()

	partner, ok := e.pairs.PartnerOf(connID)
	if !ok {
		return
	}
	e.send(partner, msgType, struct{}{})
	metrics.MessagesRelayedTotal.WithLabelValues("typing").Inc()
}

// NewChat voluntarily ends the current pairing. The partner is notified; the
// pair is not blocked, so an immediate rematch stays possible.
func (e *Engine) NewChat(connID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess := e.sessions.Get(connID)
	if sess == nil {
		return
	}
	now := time.Now()
	sess.LastActivity = now

	if partner, episodeID, ok := e.pairs.Unpair(connID); ok {
		if e.sessions.Get(partner) != nil {
			e.send(partner, protocol.TypePartnerDisconnected, protocol.PartnerDisconnectedMsg{Reason: "new_chat"})
		}
		e.recorder.EpisodeEnded(episodeID, "new_chat", now)
		metrics.ActivePairs.Set(float64(e.pairs.Len()))
		log.Printf("[engine] chat ended conn=%s partner=%s", connID, partner)
	}

	e.send(connID, protocol.TypeChatEnded, protocol.ChatEndedMsg{})
}

// countryOf returns the session's reported country or "Unknown".
func countryOf(s *Session) string {
	if s == nil || s.Location == nil || s.Location.Country == "" {
		return "Unknown"
	}
	return s.Location.Country
}
