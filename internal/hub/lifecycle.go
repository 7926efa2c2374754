package hub

import (
	"log"
	"time"

	"github.com/veilchat/server/internal/metrics"
	"github.com/veilchat/server/internal/presence"
	"github.com/veilchat/server/internal/protocol"
)

// Register creates a presence record for a freshly upgraded connection.
func (h *Hub) Register(connID string) *presence.Client {
	c := h.registry.Register(connID)
	metrics.ConnectionsTotal.Set(float64(h.registry.Count()))
	return c
}

// ReconnectUser binds a stable user id to the connection. If the user id was
// previously mapped to a connection that currently holds a partner, the old
// record is migrated onto this connection and the partner's back-reference
// is repointed, so an in-progress chat survives the client reconnect without
// re-matching. The old record is discarded either way; its dead transport is
// reaped by the heartbeat.
func (h *Hub) ReconnectUser(connID, userID string) {
	if userID == "" {
		return
	}

	h.mu.Lock()
	staged := h.reconnect(connID, userID)
	h.mu.Unlock()

	h.flush(staged)
}

// reconnect runs the re-link under the hub lock and returns the events to
// deliver once it is released.
func (h *Hub) reconnect(connID, userID string) []outbound {
	// The connection claiming the identity may itself be searching, or even
	// paired from an earlier identity. Break that state first: the migrated
	// pairing must be the only one this connection ends up holding, and its
	// abandoned partner (if any) is owed a notification.
	staged := h.detach(connID, "reconnected")

	prev := h.registry.AttachUser(connID, userID)
	if prev == nil {
		return staged
	}

	if prev.Searching {
		// The ghost connection was waiting; its queue slot does not carry
		// over. The client rejoins explicitly if it still wants a match.
		h.queue.remove(prev.ConnID)
		prev.Searching = false
		metrics.MatchQueueSize.Set(float64(h.queue.len()))
	}

	if prev.PartnerID == "" {
		return staged
	}

	migrated := h.registry.Migrate(connID, prev)
	if migrated == nil {
		return staged
	}
	if partner := h.registry.Get(migrated.PartnerID); partner != nil {
		partner.PartnerID = connID
	}
	metrics.ConnectionsTotal.Set(float64(h.registry.Count()))
	log.Printf("[hub] re-linked user=%s onto conn=%s room=%s (was conn=%s)",
		userID, connID, migrated.Room, prev.ConnID)
	return staged
}

// LeaveChat handles a leave_chat event. If the caller is paired, the pairing
// is torn down and the partner is notified; if the caller is merely waiting,
// its queue entry is cancelled. Leaving while idle is a no-op.
func (h *Hub) LeaveChat(connID string) {
	h.mu.Lock()
	staged := h.detach(connID, "left")
	h.mu.Unlock()

	h.flush(staged)
}

// Disconnect handles a transport-level disconnect: same teardown as
// LeaveChat, after which the connection's record is fully deleted from the
// registry (and, if it was the current mapping, from the user-socket map).
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	staged := h.detach(connID, "disconnected")
	h.registry.Remove(connID)
	metrics.ConnectionsTotal.Set(float64(h.registry.Count()))
	h.mu.Unlock()

	h.flush(staged)
}

// detach breaks whichever of {queue membership, pairing} the connection
// holds, clearing the partner's back-reference so it is never left dangling.
// Must be called with the hub lock held.
func (h *Hub) detach(connID, reason string) []outbound {
	c := h.registry.Get(connID)
	if c == nil {
		return nil
	}

	if c.Searching {
		h.queue.remove(connID)
		c.Searching = false
		metrics.MatchQueueSize.Set(float64(h.queue.len()))
		return nil
	}

	if c.PartnerID == "" {
		return nil
	}

	roomID := c.Room
	partner := h.registry.Get(c.PartnerID)
	c.PartnerID = ""
	c.Room = ""
	c.LastActive = time.Now()

	var staged []outbound
	if partner != nil {
		partner.PartnerID = ""
		partner.Room = ""
		data, _ := protocol.NewServerMessage(protocol.TypePartnerDisconnected, protocol.PartnerDisconnectedMsg{})
		staged = append(staged, outbound{connID: partner.ConnID, data: data})
	}

	h.history.Remove(roomID)
	metrics.ActiveRooms.Dec()
	if h.events != nil {
		h.events.RoomClosed(roomID, reason)
	}
	log.Printf("[hub] room=%s closed (conn=%s %s)", roomID, connID, reason)
	return staged
}
