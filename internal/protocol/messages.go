// Package protocol defines the JSON message types exchanged between clients
// and the server, and the command envelope carried between the transport
// front-end and the matching engine. All messages are serialized as JSON and
// follow a consistent envelope format with a type discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeReportLocation  = "report_location"
	TypeFindPartner     = "find_partner"
	TypeRetryConnection = "retry_connection"
	TypeSendMessage     = "send_message"
	TypeTyping          = "typing"
	TypeStopTyping      = "stop_typing"
	TypeNewChat         = "new_chat"
	TypePing            = "ping"
)

// Server -> Client message types.
const (
	TypeSessionCreated       = "session_created"
	TypeRequestLocation      = "request_location"
	TypeWaiting              = "waiting"
	TypeWaitingTimeout       = "waiting_timeout"
	TypePartnerFound         = "partner_found"
	TypeReceiveMessage       = "receive_message"
	TypePartnerTyping        = "partner_typing"
	TypePartnerStoppedTyping = "partner_stopped_typing"
	TypePartnerDisconnected  = "partner_disconnected"
	TypeChatEnded            = "chat_ended"
	TypeRetryAttempt         = "retry_attempt"
	TypeMaxRetriesReached    = "max_retries_reached"
	TypeUserCount            = "user_count"
	TypeTotalConnections     = "total_connections"
	TypeRateLimited          = "rate_limited"
	TypeError                = "error"
	TypePong                 = "pong"
)

// ---------------------------------------------------------------------------
// Envelope: initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the full raw bytes and extracts only the "type"
// field so that the rest of the payload can be decoded later into the
// appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// ReportLocationMsg carries the client's best-effort geolocation hint. Any
// field may be empty; a report without a country is ignored.
type ReportLocationMsg struct {
	Type      string `json:"type"`
	Country   string `json:"country"`
	Continent string `json:"continent"`
	Timezone  string `json:"timezone"`
}

// FindPartnerMsg is sent by the client to request a partner search with
// optional interest tags and a same-country preference.
type FindPartnerMsg struct {
	Type              string   `json:"type"`
	Interests         []string `json:"interests"`
	PreferSameCountry bool     `json:"prefer_same_country"`
}

// RetryConnectionMsg asks the server to schedule another partner search
// after a failed or timed-out one.
type RetryConnectionMsg struct {
	Type string `json:"type"`
}

// SendMessageMsg is a text message destined for the current chat partner.
type SendMessageMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// TypingMsg signals that the client started typing.
type TypingMsg struct {
	Type string `json:"type"`
}

// StopTypingMsg signals that the client stopped typing.
type StopTypingMsg struct {
	Type string `json:"type"`
}

// NewChatMsg voluntarily ends the current pairing so the client can search
// again.
type NewChatMsg struct {
	Type string `json:"type"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// SessionCreatedMsg is sent once when a new session is established. The
// session ID is the ephemeral random token, not the connection ID.
type SessionCreatedMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// RequestLocationMsg asks the client to report its geolocation hint.
type RequestLocationMsg struct {
	Type string `json:"type"`
}

// WaitingMsg confirms the client entered the waiting queue.
type WaitingMsg struct {
	Type          string `json:"type"`
	QueuePosition int    `json:"queue_position"`
}

// WaitingTimeoutMsg is sent when the waiting deadline elapsed with no match.
type WaitingTimeoutMsg struct {
	Type string `json:"type"`
}

// PartnerFoundMsg is sent to both sides of a fresh pairing.
type PartnerFoundMsg struct {
	Type           string `json:"type"`
	PartnerID      string `json:"partner_id"`
	PartnerCountry string `json:"partner_country"`
	ConnectionID   string `json:"connection_id"`
	Timestamp      string `json:"timestamp"`
}

// ReceiveMessageMsg relays a partner's text message.
type ReceiveMessageMsg struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// PartnerTypingMsg relays that the partner started typing.
type PartnerTypingMsg struct {
	Type string `json:"type"`
}

// PartnerStoppedTypingMsg relays that the partner stopped typing.
type PartnerStoppedTypingMsg struct {
	Type string `json:"type"`
}

// PartnerDisconnectedMsg is sent when the chat partner left, disconnected,
// or was evicted.
type PartnerDisconnectedMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// ChatEndedMsg confirms to the requester that their pairing was torn down.
type ChatEndedMsg struct {
	Type string `json:"type"`
}

// RetryAttemptMsg reports a scheduled retry: which attempt this is and when
// the next search will run, in milliseconds.
type RetryAttemptMsg struct {
	Type        string `json:"type"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
	NextRetryIn int    `json:"next_retry_in"`
}

// MaxRetriesReachedMsg is the terminal failure after the retry budget is
// spent; the client must explicitly start over.
type MaxRetriesReachedMsg struct {
	Type string `json:"type"`
}

// UserCountMsg is broadcast to all clients with the number of currently
// connected users.
type UserCountMsg struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// TotalConnectionsMsg is broadcast with the monotonic total of connections
// seen since the engine started.
type TotalConnectionsMsg struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// RateLimitedMsg is sent when the client exceeded a rate limit.
type RateLimitedMsg struct {
	Type       string `json:"type"`
	RetryAfter int    `json:"retry_after"`
}

// ErrorMsg communicates an error condition to the client.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeReportLocation:
		var m ReportLocationMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeFindPartner:
		var m FindPartnerMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeRetryConnection:
		var m RetryConnectionMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSendMessage:
		var m SendMessageMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeTyping:
		var m TypingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeStopTyping:
		var m StopTypingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeNewChat:
		var m NewChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
