package protocol

import (
	"encoding/json"
	"fmt"
)

// Engine command types carried over NATS from the transport front-end to the
// matching engine. Client message types double as command types; connect and
// disconnect originate from the transport itself, not from a client message.
const (
	CmdConnect    = "connect"
	CmdDisconnect = "disconnect"
)

// Command is the tagged envelope for one inbound engine event. ConnID is the
// transport-assigned connection identifier; Payload holds the original client
// message, if any.
type Command struct {
	Type    string          `json:"type"`
	ConnID  string          `json:"conn_id"`
	Reason  string          `json:"reason,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewCommand builds a Command for a connection, marshalling the payload
// struct if one is given.
func NewCommand(cmdType, connID string, payload interface{}) (Command, error) {
	cmd := Command{Type: cmdType, ConnID: connID}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Command{}, fmt.Errorf("protocol: marshal command payload: %w", err)
		}
		cmd.Payload = raw
	}
	return cmd, nil
}

// DecodePayload unmarshals the command payload into dst. It is an error to
// call it on a command without a payload.
func (c Command) DecodePayload(dst interface{}) error {
	if len(c.Payload) == 0 {
		return fmt.Errorf("protocol: command %q has no payload", c.Type)
	}
	if err := json.Unmarshal(c.Payload, dst); err != nil {
		return fmt.Errorf("protocol: decode %q payload: %w", c.Type, err)
	}
	return nil
}
