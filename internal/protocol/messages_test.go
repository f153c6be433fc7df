package protocol

import (
	"encoding/json"
	"testing"
)

// ---------------------------------------------------------------------------
// Test: Parsing a valid find_partner message
// ---------------------------------------------------------------------------

func TestParseClientMessage_FindPartner(t *testing.T) {
	input := []byte(`{"type":"find_partner","interests":["music","gaming","anime"],"prefer_same_country":true}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeFindPartner {
		t.Fatalf("expected type %q, got %q", TypeFindPartner, msgType)
	}

	fp, ok := msg.(FindPartnerMsg)
	if !ok {
		t.Fatalf("expected FindPartnerMsg, got %T", msg)
	}
	if len(fp.Interests) != 3 {
		t.Fatalf("expected 3 interests, got %d", len(fp.Interests))
	}
	expected := []string{"music", "gaming", "anime"}
	for i, v := range expected {
		if fp.Interests[i] != v {
			t.Errorf("interest[%d]: expected %q, got %q", i, v, fp.Interests[i])
		}
	}
	if !fp.PreferSameCountry {
		t.Error("expected prefer_same_country to be true")
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing a valid send_message message
// ---------------------------------------------------------------------------

func TestParseClientMessage_SendMessage(t *testing.T) {
	input := []byte(`{"type":"send_message","message":"Hello!"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeSendMessage {
		t.Fatalf("expected type %q, got %q", TypeSendMessage, msgType)
	}

	sm, ok := msg.(SendMessageMsg)
	if !ok {
		t.Fatalf("expected SendMessageMsg, got %T", msg)
	}
	if sm.Message != "Hello!" {
		t.Errorf("expected message %q, got %q", "Hello!", sm.Message)
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing a report_location message with partial fields
// ---------------------------------------------------------------------------

func TestParseClientMessage_ReportLocationPartial(t *testing.T) {
	input := []byte(`{"type":"report_location","country":"DE"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeReportLocation {
		t.Fatalf("expected type %q, got %q", TypeReportLocation, msgType)
	}

	rl, ok := msg.(ReportLocationMsg)
	if !ok {
		t.Fatalf("expected ReportLocationMsg, got %T", msg)
	}
	if rl.Country != "DE" {
		t.Errorf("expected country DE, got %q", rl.Country)
	}
	if rl.Continent != "" || rl.Timezone != "" {
		t.Errorf("expected missing fields to stay empty, got %q / %q", rl.Continent, rl.Timezone)
	}
}

// ---------------------------------------------------------------------------
// Test: Malformed and unknown inputs
// ---------------------------------------------------------------------------

func TestParseClientMessage_InvalidJSON(t *testing.T) {
	if _, _, err := ParseClientMessage([]byte(`{not json`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseClientMessage_UnknownType(t *testing.T) {
	_, _, err := ParseClientMessage([]byte(`{"type":"self_destruct"}`))
	if err == nil {
		t.Fatal("expected error for unknown client type")
	}
}

func TestParseClientMessage_ServerTypeRejected(t *testing.T) {
	// Server-to-client types must not be accepted from clients.
	if _, _, err := ParseClientMessage([]byte(`{"type":"partner_found"}`)); err == nil {
		t.Fatal("expected error when a client sends a server-only type")
	}
}

// ---------------------------------------------------------------------------
// Test: Creating a partner_found server message
// ---------------------------------------------------------------------------

func TestNewServerMessage_PartnerFound(t *testing.T) {
	payload := PartnerFoundMsg{
		PartnerID:      "conn-456",
		PartnerCountry: "DE",
		ConnectionID:   "uuid-789",
		Timestamp:      "2026-09-01T12:00:00Z",
	}

	data, err := NewServerMessage(TypePartnerFound, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Decode back and verify structure.
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["type"] != TypePartnerFound {
		t.Errorf("expected type %q, got %v", TypePartnerFound, result["type"])
	}
	if result["partner_id"] != "conn-456" {
		t.Errorf("expected partner_id conn-456, got %v", result["partner_id"])
	}
	if result["partner_country"] != "DE" {
		t.Errorf("expected partner_country DE, got %v", result["partner_country"])
	}
	if result["connection_id"] != "uuid-789" {
		t.Errorf("expected connection_id uuid-789, got %v", result["connection_id"])
	}
}

// ---------------------------------------------------------------------------
// Test: The injected type key always wins
// ---------------------------------------------------------------------------

func TestNewServerMessage_TypeFieldInjected(t *testing.T) {
	data, err := NewServerMessage(TypeChatEnded, ChatEndedMsg{Type: "bogus"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if result["type"] != TypeChatEnded {
		t.Errorf("expected injected type %q, got %v", TypeChatEnded, result["type"])
	}
}
