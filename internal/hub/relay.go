package hub

import (
	"context"
	"log"
	"time"

	"github.com/veilchat/server/internal/history"
	"github.com/veilchat/server/internal/metrics"
	"github.com/veilchat/server/internal/presence"
	"github.com/veilchat/server/internal/protocol"
	"github.com/veilchat/server/internal/report"
)

// SendMessage handles a send_message event: it validates that the sender is
// in the named room, screens text payloads through the moderation filter,
// and forwards the event to the partner. A sender with no active room is a
// silent no-op. When the filter flags a message, the partner receives the
// cleaned text and the sender — not the recipient — is told it was filtered.
func (h *Hub) SendMessage(ctx context.Context, connID string, msg protocol.SendMessageMsg) {
	contentType := msg.ContentType
	if contentType == "" {
		contentType = protocol.ContentText
	}

	if contentType == protocol.ContentText {
		if err := ValidateMessage(msg.Message); err != nil {
			data, _ := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
				Message: err.Error(),
			})
			h.flush([]outbound{{connID: connID, data: data}})
			return
		}
	}

	if h.limits != nil && !h.limits.AllowMessage(ctx, connID) {
		metrics.MessagesTotal.WithLabelValues("limited").Inc()
		data, _ := protocol.NewServerMessage(protocol.TypeSystemMessage, protocol.SystemMessageMsg{
			Text: "you are sending messages too quickly",
		})
		h.flush([]outbound{{connID: connID, data: data}})
		return
	}

	h.mu.Lock()
	staged := h.relay(connID, contentType, msg)
	h.mu.Unlock()

	h.flush(staged)
}

// relay performs the forwarding decision under the hub lock.
func (h *Hub) relay(connID, contentType string, msg protocol.SendMessageMsg) []outbound {
	c := h.registry.Get(connID)
	if c == nil || c.PartnerID == "" || c.Room == "" {
		return nil // not in a chat: drop, no error (client/server state race)
	}
	if msg.Room != "" && msg.Room != c.Room {
		return nil // stale room reference from a previous pairing
	}
	partner := h.registry.Get(c.PartnerID)
	if partner == nil {
		return nil
	}

	c.LastActive = time.Now()

	out := msg.Message
	var staged []outbound

	// Only text is content-inspected; image and voice payloads are opaque
	// upload URLs produced by the upload collaborator.
	if contentType == protocol.ContentText && h.filter != nil {
		clean, triggered := h.filter.Sanitize(msg.Message)
		if triggered {
			out = clean
			metrics.MessagesTotal.WithLabelValues("filtered").Inc()
			if h.events != nil {
				h.events.MessageFlagged(c.Room, senderLabel(c), "")
			}
			notice, _ := protocol.NewServerMessage(protocol.TypeSystemMessage, protocol.SystemMessageMsg{
				Text: "your message was filtered",
			})
			staged = append(staged, outbound{connID: connID, data: notice})
		}
	}

	ts := time.Now().UnixMilli()
	data, err := protocol.NewServerMessage(protocol.TypeReceiveMessage, protocol.ReceiveMessageMsg{
		Message:     out,
		SenderID:    senderLabel(c),
		Timestamp:   ts,
		ContentType: contentType,
		ReplyTo:     msg.ReplyTo,
	})
	if err != nil {
		log.Printf("[hub] build receive_message for room=%s: %v", c.Room, err)
		return staged
	}
	staged = append(staged, outbound{connID: partner.ConnID, data: data})

	metrics.MessagesTotal.WithLabelValues("relayed").Inc()

	if contentType == protocol.ContentText {
		h.history.Add(c.Room, history.Entry{
			SenderID: senderLabel(c),
			Text:     out,
			Ts:       ts,
		})
	}
	return staged
}

// Typing relays a typing signal to the partner. No moderation, no
// persistence, at-most-once: if the sender has no partner the signal is
// dropped.
func (h *Hub) Typing(connID string) {
	h.relaySignal(connID, protocol.TypePartnerTyping)
}

// StopTyping relays a stop-typing signal to the partner.
func (h *Hub) StopTyping(connID string) {
	h.relaySignal(connID, protocol.TypePartnerStopTyping)
}

func (h *Hub) relaySignal(connID, eventType string) {
	h.mu.Lock()
	var staged []outbound
	if c := h.registry.Get(connID); c != nil && c.PartnerID != "" {
		if partner := h.registry.Get(c.PartnerID); partner != nil {
			data, _ := protocol.NewServerMessage(eventType, struct{}{})
			staged = append(staged, outbound{connID: partner.ConnID, data: data})
		}
	}
	h.mu.Unlock()

	h.flush(staged)
}

// ReportUser files an abuse report against the sender's current partner:
// the report is persisted with a snapshot of the recent room messages, the
// reported user's offense counter is bumped (which may auto-ban), and the
// reporter gets an acknowledgement. Reporting with no active partner is a
// silent no-op.
func (h *Hub) ReportUser(ctx context.Context, connID, reason string) {
	h.mu.Lock()
	c := h.registry.Get(connID)
	var (
		roomID               string
		reporterID, reported string
		snapshot             []history.Entry
	)
	if c != nil && c.PartnerID != "" {
		if partner := h.registry.Get(c.PartnerID); partner != nil {
			roomID = c.Room
			reporterID = senderLabel(c)
			reported = senderLabel(partner)
			snapshot = h.history.Get(c.Room)
		}
	}
	h.mu.Unlock()

	if roomID == "" {
		return
	}

	if h.reports != nil {
		entries := make([]report.MessageEntry, 0, len(snapshot))
		for _, e := range snapshot {
			entries = append(entries, report.MessageEntry{
				From: e.SenderID,
				Text: e.Text,
				Ts:   e.Ts,
			})
		}
		r := &report.Report{
			ReporterID: reporterID,
			ReportedID: reported,
			RoomID:     roomID,
			Reason:     reason,
			Messages:   entries,
		}
		if err := h.reports.Create(ctx, r); err != nil {
			log.Printf("[hub] persist report room=%s: %v", roomID, err)
		}
	}

	if h.bans != nil {
		banned, duration, err := h.bans.ReportAndCheck(ctx, reported, reason)
		if err != nil {
			log.Printf("[hub] report escalation for %s: %v", reported, err)
		} else if banned {
			log.Printf("[hub] auto-ban applied user=%s duration=%s", reported, duration)
		}
	}

	if h.events != nil {
		h.events.ReportFiled(roomID, reporterID, reported, reason)
	}
	metrics.ReportsTotal.Inc()

	ack, _ := protocol.NewServerMessage(protocol.TypeSystemMessage, protocol.SystemMessageMsg{
		Text: "your report has been received",
	})
	h.flush([]outbound{{connID: connID, data: ack}})
	log.Printf("[hub] report filed room=%s reporter=%s reason=%q", roomID, reporterID, reason)
}

// senderLabel is the identity revealed to the peer and stored in report
// snapshots: the stable user id when attached, else the connection id.
func senderLabel(c *presence.Client) string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.ConnID
}
