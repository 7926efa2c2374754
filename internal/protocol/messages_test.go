package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseClientMessage_JoinQueue(t *testing.T) {
	raw := []byte(`{
		"type": "join_queue",
		"data": {
			"userId": "user-1",
			"tier": "premium",
			"gender": "female",
			"country": "US",
			"filters": {"gender": "male", "country": "DE"}
		}
	}`)

	msgType, msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage error: %v", err)
	}
	if msgType != TypeJoinQueue {
		t.Fatalf("msgType = %q, want %q", msgType, TypeJoinQueue)
	}

	m, ok := msg.(JoinQueueMsg)
	if !ok {
		t.Fatalf("msg is %T, want JoinQueueMsg", msg)
	}
	if m.UserID != "user-1" || m.Tier != "premium" || m.Gender != "female" || m.Country != "US" {
		t.Errorf("unexpected payload: %+v", m)
	}
	if m.Filters.Gender != "male" || m.Filters.Country != "DE" {
		t.Errorf("unexpected filters: %+v", m.Filters)
	}
}

func TestParseClientMessage_SendMessage(t *testing.T) {
	raw := []byte(`{
		"type": "send_message",
		"data": {"room": "r-1", "message": "hello", "type": "text", "replyTo": "m-7"}
	}`)

	msgType, msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage error: %v", err)
	}
	if msgType != TypeSendMessage {
		t.Fatalf("msgType = %q, want %q", msgType, TypeSendMessage)
	}

	m := msg.(SendMessageMsg)
	if m.Room != "r-1" || m.Message != "hello" {
		t.Errorf("unexpected payload: %+v", m)
	}
	if m.ContentType != ContentText {
		t.Errorf("ContentType = %q, want %q", m.ContentType, ContentText)
	}
	if m.ReplyTo != "m-7" {
		t.Errorf("ReplyTo = %q, want m-7", m.ReplyTo)
	}
}

func TestParseClientMessage_EmptyPayloadEvents(t *testing.T) {
	for _, raw := range []string{
		`{"type": "leave_chat"}`,
		`{"type": "leave_chat", "data": null}`,
		`{"type": "ping"}`,
	} {
		if _, _, err := ParseClientMessage([]byte(raw)); err != nil {
			t.Errorf("ParseClientMessage(%s) error: %v", raw, err)
		}
	}
}

func TestParseClientMessage_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid json", `{not json`},
		{"missing type", `{"data": {}}`},
		{"empty type", `{"type": ""}`},
		{"unknown type", `{"type": "self_destruct"}`},
		{"server-only type", `{"type": "match_found"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseClientMessage([]byte(tt.raw)); err == nil {
				t.Errorf("ParseClientMessage(%s) succeeded, want error", tt.raw)
			}
		})
	}
}

func TestNewServerMessage_MatchFound(t *testing.T) {
	data, err := NewServerMessage(TypeMatchFound, MatchFoundMsg{
		Room:           "r-1",
		PartnerGender:  "male",
		PartnerTier:    "free",
		PartnerCountry: "DE",
	})
	if err != nil {
		t.Fatalf("NewServerMessage error: %v", err)
	}

	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != TypeMatchFound {
		t.Errorf("envelope type = %q, want %q", env.Type, TypeMatchFound)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	for _, field := range []string{"room", "partnerGender", "partnerTier", "partnerCountry"} {
		if _, ok := payload[field]; !ok {
			t.Errorf("payload missing field %q: %s", field, env.Data)
		}
	}
}

func TestNewServerMessage_ReceiveMessageFieldNames(t *testing.T) {
	data, err := NewServerMessage(TypeReceiveMessage, ReceiveMessageMsg{
		Message:     "hi",
		SenderID:    "user-1",
		Timestamp:   1700000000000,
		ContentType: ContentText,
	})
	if err != nil {
		t.Fatalf("NewServerMessage error: %v", err)
	}

	s := string(data)
	for _, field := range []string{`"message"`, `"senderId"`, `"timestamp"`, `"type":"text"`} {
		if !strings.Contains(s, field) {
			t.Errorf("encoded message missing %s: %s", field, s)
		}
	}
	// replyTo is omitted when empty.
	if strings.Contains(s, "replyTo") {
		t.Errorf("empty replyTo should be omitted: %s", s)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	out, err := NewServerMessage(TypeSystemMessage, SystemMessageMsg{Text: "no match found, please try again"})
	if err != nil {
		t.Fatalf("NewServerMessage error: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(out, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var m SystemMessageMsg
	if err := json.Unmarshal(env.Data, &m); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if m.Text != "no match found, please try again" {
		t.Errorf("round trip lost text: %q", m.Text)
	}
}
