// Package protocol defines the WebSocket event types and payload structures
// exchanged between the client and server. Every frame is a JSON envelope
// {"type": <event name>, "data": <payload>} so that payload field names never
// collide with the event discriminator (send_message payloads carry their own
// "type" field naming the content kind).
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Event type constants
// ---------------------------------------------------------------------------

// Client -> Server event types.
const (
	TypeReconnectUser = "reconnect_user"
	TypeJoinQueue     = "join_queue"
	TypeSendMessage   = "send_message"
	TypeTyping        = "typing"
	TypeStopTyping    = "stop_typing"
	TypeReportUser    = "report_user"
	TypeLeaveChat     = "leave_chat"
	TypePing          = "ping"
)

// Server -> Client event types.
const (
	TypeMatchFound          = "match_found"
	TypeReceiveMessage      = "receive_message"
	TypePartnerTyping       = "partner_typing"
	TypePartnerStopTyping   = "partner_stop_typing"
	TypePartnerDisconnected = "partner_disconnected"
	TypeSystemMessage       = "system_message"
	TypeError               = "error"
	TypePong                = "pong"
)

// Content kinds carried in the "type" field of send_message and
// receive_message payloads. Text passes through the moderation filter;
// image and voice payloads are opaque upload URLs relayed untouched.
const (
	ContentText  = "text"
	ContentImage = "image"
	ContentVoice = "voice"
)

// ---------------------------------------------------------------------------
// Envelope
// ---------------------------------------------------------------------------

// Envelope is the outer frame: the event name plus the raw payload bytes for
// deferred parsing into a concrete struct. Events with empty payloads
// (leave_chat, partner_typing, ...) omit or null the data field.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ---------------------------------------------------------------------------
// Client -> Server payloads
// ---------------------------------------------------------------------------

// Filters is a caller's constraint on acceptable partner attributes.
// Empty or "any" values match everyone.
type Filters struct {
	Gender  string `json:"gender,omitempty"`
	Country string `json:"country,omitempty"`
}

// ReconnectUserMsg re-associates a stable user identity with the current
// connection, restoring an in-progress pairing if one exists.
type ReconnectUserMsg struct {
	UserID string `json:"userId"`
}

// JoinQueueMsg enters the matching queue with the caller's attributes and
// optional partner filters.
type JoinQueueMsg struct {
	UserID  string  `json:"userId"`
	Tier    string  `json:"tier"`
	Gender  string  `json:"gender"`
	Country string  `json:"country"`
	Filters Filters `json:"filters"`
}

// SendMessageMsg carries a chat message to the partner. ContentType is one
// of the Content* constants; ReplyTo optionally references a prior message.
type SendMessageMsg struct {
	Room        string `json:"room"`
	Message     string `json:"message"`
	ContentType string `json:"type"`
	ReplyTo     string `json:"replyTo,omitempty"`
}

// TypingMsg signals that the client started typing in a room.
type TypingMsg struct {
	Room string `json:"room"`
}

// StopTypingMsg signals that the client stopped typing in a room.
type StopTypingMsg struct {
	Room string `json:"room"`
}

// ReportUserMsg reports the current chat partner for abuse.
type ReportUserMsg struct {
	Reason string `json:"reason"`
}

// LeaveChatMsg ends the current chat or cancels a pending queue entry.
// The payload is empty.
type LeaveChatMsg struct{}

// PingMsg is a client-initiated keepalive ping. The payload is empty.
type PingMsg struct{}

// ---------------------------------------------------------------------------
// Server -> Client payloads
// ---------------------------------------------------------------------------

// MatchFoundMsg is sent to both sides when a compatible partner has been
// found, carrying the fresh room id and the partner attributes to reveal.
type MatchFoundMsg struct {
	Room           string `json:"room"`
	PartnerGender  string `json:"partnerGender"`
	PartnerTier    string `json:"partnerTier"`
	PartnerCountry string `json:"partnerCountry"`
}

// ReceiveMessageMsg is a chat message relayed from the partner.
type ReceiveMessageMsg struct {
	Message     string `json:"message"`
	SenderID    string `json:"senderId"`
	Timestamp   int64  `json:"timestamp"`
	ContentType string `json:"type"`
	ReplyTo     string `json:"replyTo,omitempty"`
}

// PartnerTypingMsg relays the partner's typing indicator. Empty payload.
type PartnerTypingMsg struct{}

// PartnerStopTypingMsg relays the partner's stop-typing indicator.
// Empty payload.
type PartnerStopTypingMsg struct{}

// PartnerDisconnectedMsg is sent when the chat partner has left or
// disconnected. Empty payload.
type PartnerDisconnectedMsg struct{}

// SystemMessageMsg is a one-line informational notice for the client
// (moderation notices, report acknowledgements, queue eviction).
type SystemMessageMsg struct {
	Text string `json:"text"`
}

// ErrorMsg communicates a policy rejection.
type ErrorMsg struct {
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping. Empty payload.
type PongMsg struct{}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client event.
// It returns the event type string, the decoded payload struct, and any
// error encountered during parsing. An error is returned for unknown or
// server-only event types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}
	if env.Type == "" {
		return "", nil, fmt.Errorf("protocol: missing or empty \"type\" field")
	}

	// Treat an absent data field as an empty object so payloads with no
	// required fields decode cleanly.
	raw := env.Data
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeReconnectUser:
		var m ReconnectUserMsg
		err = json.Unmarshal(raw, &m)
		msg = m
	case TypeJoinQueue:
		var m JoinQueueMsg
		err = json.Unmarshal(raw, &m)
		msg = m
	case TypeSendMessage:
		var m SendMessageMsg
		err = json.Unmarshal(raw, &m)
		msg = m
	case TypeTyping:
		var m TypingMsg
		err = json.Unmarshal(raw, &m)
		msg = m
	case TypeStopTyping:
		var m StopTypingMsg
		err = json.Unmarshal(raw, &m)
		msg = m
	case TypeReportUser:
		var m ReportUserMsg
		err = json.Unmarshal(raw, &m)
		msg = m
	case TypeLeaveChat:
		var m LeaveChatMsg
		err = json.Unmarshal(raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates the JSON-encoded bytes for a server event: the
// envelope with the event name and the marshalled payload.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	out, err := json.Marshal(Envelope{Type: msgType, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
